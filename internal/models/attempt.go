package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptActive    AttemptStatus = "active"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptExpired   AttemptStatus = "expired"
)

// IsTerminal reports whether the status admits no further transitions.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSubmitted || s == AttemptExpired
}

// Attempt is the singleton record of one student's engagement with one
// olympiad. Unique on (olympiad_id, user_id).
type Attempt struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	OlympiadID uint `json:"olympiad_id" gorm:"not null;index;uniqueIndex:idx_olympiad_user"`
	UserID     uint `json:"user_id" gorm:"not null;index;uniqueIndex:idx_olympiad_user"`

	Status AttemptStatus `json:"status" gorm:"not null;default:active;index"`

	// Timing. DeadlineAt = min(StartedAt + DurationSec, olympiad.AvailableTo).
	StartedAt   time.Time `json:"started_at" gorm:"not null"`
	DeadlineAt  time.Time `json:"deadline_at" gorm:"not null;index"`
	DurationSec int       `json:"duration_sec" gorm:"not null"`

	// Scoring, populated by the grading transaction.
	ScoreTotal int        `json:"score_total" gorm:"not null;default:0"`
	ScoreMax   int        `json:"score_max" gorm:"not null;default:0"`
	Passed     bool       `json:"passed" gorm:"not null;default:false"`
	GradedAt   *time.Time `json:"graded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Olympiad Olympiad           `json:"-" gorm:"foreignKey:OlympiadID"`
	User     User               `json:"-" gorm:"foreignKey:UserID"`
	Answers  []AttemptAnswer    `json:"-" gorm:"foreignKey:AttemptID"`
	Grades   []AttemptTaskGrade `json:"-" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// DeadlinePassed reports whether the attempt deadline is behind the given
// instant.
func (a *Attempt) DeadlinePassed(now time.Time) bool {
	return now.After(a.DeadlineAt)
}

// AttemptAnswer holds the validator-normalized answer for one task of an
// attempt. Unique on (attempt_id, task_id); last writer wins.
type AttemptAnswer struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	AttemptID uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_task_answer"`
	TaskID    uint `json:"task_id" gorm:"not null;index;uniqueIndex:idx_attempt_task_answer"`

	Answer datatypes.JSON `json:"answer" gorm:"type:jsonb;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// AttemptTaskGrade is one row of the grade set of a terminal attempt.
// A complete set exists after grading; partial sets are never visible.
type AttemptTaskGrade struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	AttemptID uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_task_grade"`
	TaskID    uint `json:"task_id" gorm:"not null;index;uniqueIndex:idx_attempt_task_grade"`

	IsCorrect bool      `json:"is_correct" gorm:"not null"`
	Score     int       `json:"score" gorm:"not null"`
	MaxScore  int       `json:"max_score" gorm:"not null"`
	GradedAt  time.Time `json:"graded_at" gorm:"not null"`
}

func (AttemptTaskGrade) TableName() string {
	return "attempt_task_grades"
}
