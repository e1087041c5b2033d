package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MinDurationSec = 60
	MaxDurationSec = 21600

	// Single attempt per olympiad is a platform rule, not a tunable.
	DefaultAttemptsLimit = 1
)

type Olympiad struct {
	ID          uint     `json:"id" gorm:"primaryKey"`
	Title       string   `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string  `json:"description" gorm:"type:text" validate:"omitempty,max=5000"`
	AgeGroup    AgeGroup `json:"age_group" gorm:"not null;size:50"`

	AttemptsLimit int       `json:"attempts_limit" gorm:"not null;default:1"`
	DurationSec   int       `json:"duration_sec" gorm:"not null" validate:"required,min=60,max=21600"`
	AvailableFrom time.Time `json:"available_from" gorm:"not null;index"`
	AvailableTo   time.Time `json:"available_to" gorm:"not null;index"`
	PassPercent   int       `json:"pass_percent" gorm:"not null;default:50" validate:"min=0,max=100"`

	IsPublished     bool `json:"is_published" gorm:"not null;default:false;index"`
	ResultsReleased bool `json:"results_released" gorm:"not null;default:false"`

	CreatedBy uint           `json:"created_by" gorm:"not null;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tasks    []OlympiadTask `json:"tasks,omitempty" gorm:"foreignKey:OlympiadID"`
	Attempts []Attempt      `json:"-" gorm:"foreignKey:OlympiadID"`
	Creator  User           `json:"-" gorm:"foreignKey:CreatedBy"`
}

func (Olympiad) TableName() string {
	return "olympiads"
}

// IsOpenAt reports whether the availability window covers the given instant.
func (o *Olympiad) IsOpenAt(now time.Time) bool {
	return !now.Before(o.AvailableFrom) && !now.After(o.AvailableTo)
}

// OlympiadTask attaches a task to an olympiad with presentation order and
// scoring weight. SortOrder is stable over the life of the olympiad.
type OlympiadTask struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	OlympiadID uint `json:"olympiad_id" gorm:"not null;index;uniqueIndex:idx_olympiad_task"`
	TaskID     uint `json:"task_id" gorm:"not null;index;uniqueIndex:idx_olympiad_task"`
	SortOrder  int  `json:"sort_order" gorm:"not null"`
	MaxScore   int  `json:"max_score" gorm:"not null;default:1" validate:"min=1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Olympiad Olympiad `json:"-" gorm:"foreignKey:OlympiadID"`
	Task     Task     `json:"task" gorm:"foreignKey:TaskID"`
}

func (OlympiadTask) TableName() string {
	return "olympiad_tasks"
}
