package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskType string

const (
	TaskSingleChoice TaskType = "single_choice"
	TaskMultiChoice  TaskType = "multi_choice"
	TaskShortText    TaskType = "short_text"
)

type ShortTextSubtype string

const (
	ShortTextInt   ShortTextSubtype = "int"
	ShortTextFloat ShortTextSubtype = "float"
	ShortTextText  ShortTextSubtype = "text"
)

type Task struct {
	ID      uint     `json:"id" gorm:"primaryKey"`
	Subject string   `json:"subject" gorm:"not null;size:100;index" validate:"required,max=100"`
	Title   string   `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Content string   `json:"content" gorm:"type:text;not null" validate:"required"`
	Type    TaskType `json:"task_type" gorm:"not null;index"`

	// Opaque object-store handle; never dereferenced by this service.
	ImageKey *string `json:"image_key" gorm:"size:500"`

	// Type-specific document, see TaskPayload.
	Payload datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`

	CreatedBy uint           `json:"created_by" gorm:"not null;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Creator User `json:"-" gorm:"foreignKey:CreatedBy"`
}

func (Task) TableName() string {
	return "tasks"
}

// ===== TASK PAYLOAD VARIANTS =====

// TaskOption is one selectable option of a choice task.
type TaskOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SingleChoicePayload: exactly one option is correct.
type SingleChoicePayload struct {
	Options         []TaskOption `json:"options"`
	CorrectOptionID string       `json:"correct_option_id"`
}

// MultiChoicePayload: the full correct subset must be selected.
type MultiChoicePayload struct {
	Options          []TaskOption `json:"options"`
	CorrectOptionIDs []string     `json:"correct_option_ids"`
}

// ShortTextPayload: free-text answer compared per subtype.
type ShortTextPayload struct {
	Subtype  ShortTextSubtype `json:"subtype"`
	Expected string           `json:"expected"`
	// Epsilon is the absolute tolerance for float comparison; required > 0
	// for the float subtype.
	Epsilon float64 `json:"epsilon,omitempty"`
	// CaseInsensitive defaults to true for the text subtype.
	CaseInsensitive *bool `json:"case_insensitive,omitempty"`
	// CollapseSpaces defaults to false.
	CollapseSpaces *bool `json:"collapse_spaces,omitempty"`
}

func (p *ShortTextPayload) IsCaseInsensitive() bool {
	return p.CaseInsensitive == nil || *p.CaseInsensitive
}

func (p *ShortTextPayload) ShouldCollapseSpaces() bool {
	return p.CollapseSpaces != nil && *p.CollapseSpaces
}

// ===== ANSWER PAYLOAD VARIANTS =====

// SingleChoiceAnswer is the canonical answer for single_choice tasks.
type SingleChoiceAnswer struct {
	ChoiceID string `json:"choice_id"`
}

// MultiChoiceAnswer is the canonical answer for multi_choice tasks.
type MultiChoiceAnswer struct {
	ChoiceIDs []string `json:"choice_ids"`
}

// ShortTextAnswer is the canonical answer for short_text tasks.
type ShortTextAnswer struct {
	Text string `json:"text"`
}
