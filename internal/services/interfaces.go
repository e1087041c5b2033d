package services

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/ratelimit"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Request shapes live with the input validator.
type CreateOlympiadRequest = validator.OlympiadCreateRequest
type UpdateOlympiadRequest = validator.OlympiadUpdateRequest
type AttachTaskRequest = validator.AttachTaskRequest
type ReorderTasksRequest = validator.ReorderTasksRequest
type CreateTaskRequest = validator.TaskCreateRequest
type UpdateTaskRequest = validator.TaskUpdateRequest
type StartAttemptRequest = validator.StartAttemptRequest
type UpsertAnswerRequest = validator.UpsertAnswerRequest

type OlympiadResponse struct {
	*models.Olympiad
	TaskCount int64 `json:"task_count"`
	CanEdit   bool  `json:"can_edit"`
	CanDelete bool  `json:"can_delete"`
}

type OlympiadListResponse struct {
	Olympiads []*OlympiadResponse `json:"olympiads"`
	Total     int64               `json:"total"`
}

type TaskListResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Total int64          `json:"total"`
}

// TaskForAttempt is one task row as a student sees it: composition fields
// plus the payload stripped of correct answers.
type TaskForAttempt struct {
	TaskID    uint            `json:"task_id"`
	SortOrder int             `json:"sort_order"`
	MaxScore  int             `json:"max_score"`
	Subject   string          `json:"subject"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Type      models.TaskType `json:"task_type"`
	ImageKey  *string         `json:"image_key,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// AttemptView is the student-facing read model of one attempt.
type AttemptView struct {
	*models.Attempt
	OlympiadTitle string                   `json:"olympiad_title"`
	Tasks         []TaskForAttempt         `json:"tasks"`
	Answers       map[uint]json.RawMessage `json:"answers"`
}

// AttemptResult is the released-or-not score card for one attempt.
type AttemptResult struct {
	AttemptID       uint                 `json:"attempt_id"`
	OlympiadID      uint                 `json:"olympiad_id"`
	OlympiadTitle   string               `json:"olympiad_title"`
	Status          models.AttemptStatus `json:"status"`
	ScoreTotal      int                  `json:"score_total"`
	ScoreMax        int                  `json:"score_max"`
	Percent         int                  `json:"percent"`
	Passed          bool                 `json:"passed"`
	GradedAt        *time.Time           `json:"graded_at"`
	ResultsReleased bool                 `json:"results_released"`
}

// UpsertAnswerOutcome carries the rate-limit decision alongside the write so
// the HTTP edge can emit X-RateLimit headers on every response.
type UpsertAnswerOutcome struct {
	RateLimit ratelimit.Result
}

type ImportTasksResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	Start(ctx context.Context, userID uint, req *StartAttemptRequest) (*models.Attempt, error)
	View(ctx context.Context, userID uint, attemptID uint) (*AttemptView, error)
	UpsertAnswer(ctx context.Context, userID uint, attemptID uint, req *UpsertAnswerRequest) (*UpsertAnswerOutcome, error)
	Submit(ctx context.Context, userID uint, attemptID uint) (models.AttemptStatus, error)
	Result(ctx context.Context, userID uint, attemptID uint) (*AttemptResult, error)
	Results(ctx context.Context, userID uint) ([]*AttemptResult, error)

	// ResultFor serves teachers and admins reading someone else's attempt;
	// it grades expired-but-ungraded rows on first read.
	ResultFor(ctx context.Context, viewer *models.User, attemptID uint) (*AttemptResult, error)

	// GradeExpired finalizes one expired attempt's grade record. Used by
	// the reconciler and the administrative read path.
	GradeExpired(ctx context.Context, attemptID uint) error
}

type OlympiadService interface {
	Create(ctx context.Context, actor *models.User, req *CreateOlympiadRequest) (*models.Olympiad, error)
	GetByID(ctx context.Context, actor *models.User, id uint) (*OlympiadResponse, error)
	Update(ctx context.Context, actor *models.User, id uint, req *UpdateOlympiadRequest) (*models.Olympiad, error)
	Delete(ctx context.Context, actor *models.User, id uint) error
	List(ctx context.Context, actor *models.User, filters repositories.OlympiadFilters) (*OlympiadListResponse, error)

	AttachTask(ctx context.Context, actor *models.User, olympiadID uint, req *AttachTaskRequest) error
	DetachTask(ctx context.Context, actor *models.User, olympiadID, taskID uint) error
	ReorderTasks(ctx context.Context, actor *models.User, olympiadID uint, req *ReorderTasksRequest) error
	GetTasks(ctx context.Context, actor *models.User, olympiadID uint) ([]*models.OlympiadTask, error)

	Publish(ctx context.Context, actor *models.User, id uint) (*models.Olympiad, error)
	Unpublish(ctx context.Context, actor *models.User, id uint) (*models.Olympiad, error)
	ReleaseResults(ctx context.Context, actor *models.User, id uint, released bool) (*models.Olympiad, error)

	ListAttempts(ctx context.Context, actor *models.User, olympiadID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error)
}

type TaskService interface {
	Create(ctx context.Context, actor *models.User, req *CreateTaskRequest) (*models.Task, error)
	GetByID(ctx context.Context, actor *models.User, id uint) (*models.Task, error)
	Update(ctx context.Context, actor *models.User, id uint, req *UpdateTaskRequest) (*models.Task, error)
	Delete(ctx context.Context, actor *models.User, id uint) error
	List(ctx context.Context, actor *models.User, filters repositories.TaskFilters) (*TaskListResponse, error)
}

type UserService interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	List(ctx context.Context, actor *models.User, filters repositories.UserFilters) ([]*models.User, int64, error)
	UpdateRole(ctx context.Context, actor *models.User, id uint, role models.UserRole) error

	LinkStudent(ctx context.Context, actor *models.User, teacherID, studentID uint) error
	UnlinkStudent(ctx context.Context, actor *models.User, teacherID, studentID uint) error
	ListStudents(ctx context.Context, actor *models.User, teacherID uint) ([]*models.User, error)
	StudentResults(ctx context.Context, actor *models.User, studentID uint) ([]*AttemptResult, error)
}

// AuditService records handled requests out-of-band; a failed write is
// logged and dropped.
type AuditService interface {
	Record(ctx context.Context, record *models.AuditRecord)
}

type ImportExportService interface {
	ImportTasks(ctx context.Context, actor *models.User, r io.Reader) (*ImportTasksResult, error)
	ExportTasks(ctx context.Context, actor *models.User, filters repositories.TaskFilters) ([]byte, error)
	ExportResults(ctx context.Context, actor *models.User, olympiadID uint) ([]byte, error)
}

// ServiceManager hands out service instances behind one wiring point.
type ServiceManager interface {
	Attempt() AttemptService
	Olympiad() OlympiadService
	Task() TaskService
	User() UserService
	Audit() AuditService
	ImportExport() ImportExportService

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
