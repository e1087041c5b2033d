package validator

import (
	"encoding/json"
	"time"
)

// ===== OLYMPIAD DTOs =====

type OlympiadCreateRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	AgeGroup    string    `json:"age_group" validate:"required,age_group"`
	DurationSec int       `json:"duration_sec" validate:"required,min=60,max=21600"`
	From        time.Time `json:"available_from" validate:"required"`
	To          time.Time `json:"available_to" validate:"required,gtfield=From"`
	PassPercent int       `json:"pass_percent" validate:"min=0,max=100"`
}

type OlympiadUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	AgeGroup    *string    `json:"age_group" validate:"omitempty,age_group"`
	DurationSec *int       `json:"duration_sec" validate:"omitempty,min=60,max=21600"`
	From        *time.Time `json:"available_from"`
	To          *time.Time `json:"available_to"`
	PassPercent *int       `json:"pass_percent" validate:"omitempty,min=0,max=100"`
}

type AttachTaskRequest struct {
	TaskID    uint `json:"task_id" validate:"required"`
	SortOrder int  `json:"sort_order" validate:"min=0"`
	MaxScore  int  `json:"max_score" validate:"required,min=1"`
}

type ReorderTasksRequest struct {
	Orders []TaskOrder `json:"orders" validate:"required,min=1,dive"`
}

type TaskOrder struct {
	TaskID    uint `json:"task_id" validate:"required"`
	SortOrder int  `json:"sort_order" validate:"min=0"`
}

type ReleaseResultsRequest struct {
	Released bool `json:"released"`
}

// ===== TASK DTOs =====

type TaskCreateRequest struct {
	Subject  string          `json:"subject" validate:"required,max=100"`
	Title    string          `json:"title" validate:"required,min=1,max=200"`
	Content  string          `json:"content" validate:"required"`
	Type     string          `json:"task_type" validate:"required,task_type"`
	ImageKey *string         `json:"image_key" validate:"omitempty,max=500"`
	Payload  json.RawMessage `json:"payload" validate:"required"`
}

type TaskUpdateRequest struct {
	Subject  *string         `json:"subject" validate:"omitempty,max=100"`
	Title    *string         `json:"title" validate:"omitempty,min=1,max=200"`
	Content  *string         `json:"content"`
	ImageKey *string         `json:"image_key" validate:"omitempty,max=500"`
	Payload  json.RawMessage `json:"payload"`
}

// ===== ATTEMPT DTOs =====

type StartAttemptRequest struct {
	OlympiadID uint `json:"olympiad_id" validate:"required"`
}

type UpsertAnswerRequest struct {
	TaskID uint            `json:"task_id" validate:"required"`
	Answer json.RawMessage `json:"answer_payload" validate:"required"`
}

// ===== USER DTOs =====

type LinkStudentRequest struct {
	StudentID uint `json:"student_id" validate:"required"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student teacher admin"`
}
