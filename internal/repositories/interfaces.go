package repositories

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/eduolymp/olympiad-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type OlympiadFilters struct {
	IsPublished *bool      `json:"is_published"`
	CreatedBy   *uint      `json:"created_by"`
	OpenAt      *time.Time `json:"open_at"`
	ClassGrade  *int       `json:"class_grade"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
	SortBy      string     `json:"sort_by"`    // "created_at", "title", "available_from"
	SortOrder   string     `json:"sort_order"` // "asc", "desc"
}

type TaskFilters struct {
	Subject   *string          `json:"subject"`
	Type      *models.TaskType `json:"type"`
	CreatedBy *uint            `json:"created_by"`
	Search    *string          `json:"search"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
}

type AttemptFilters struct {
	Status     *models.AttemptStatus `json:"status"`
	OlympiadID *uint                 `json:"olympiad_id"`
	UserID     *uint                 `json:"user_id"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

type UserFilters struct {
	Role       *models.UserRole `json:"role"`
	ClassGrade *int             `json:"class_grade"`
	Search     *string          `json:"search"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// GradeRow carries one row of a grade set into the terminal-state
// transaction.
type GradeRow struct {
	TaskID    uint
	IsCorrect bool
	Score     int
	MaxScore  int
}

// ===== REPOSITORY INTERFACES =====

type OlympiadRepository interface {
	Create(ctx context.Context, tx *gorm.DB, olympiad *models.Olympiad) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Olympiad, error)
	Update(ctx context.Context, tx *gorm.DB, olympiad *models.Olympiad) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters OlympiadFilters) ([]*models.Olympiad, int64, error)

	// ListOpenIDs returns ids of published olympiads whose availability
	// window covers now. Used by the cache warmup job.
	ListOpenIDs(ctx context.Context, tx *gorm.DB, now time.Time) ([]uint, error)

	HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

type TaskRepository interface {
	Create(ctx context.Context, tx *gorm.DB, task *models.Task) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error)
	Update(ctx context.Context, tx *gorm.DB, task *models.Task) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters TaskFilters) ([]*models.Task, int64, error)

	// ReferringOlympiadIDs returns every olympiad that includes the task;
	// editors use it to evict stale cache entries.
	ReferringOlympiadIDs(ctx context.Context, tx *gorm.DB, taskID uint) ([]uint, error)
}

type OlympiadTaskRepository interface {
	Attach(ctx context.Context, tx *gorm.DB, row *models.OlympiadTask) error
	Detach(ctx context.Context, tx *gorm.DB, olympiadID, taskID uint) error
	Reorder(ctx context.Context, tx *gorm.DB, olympiadID uint, orders map[uint]int) error

	// GetByOlympiad returns the task list with tasks preloaded, ordered by
	// sort_order. This is the authoritative composition grading reads.
	GetByOlympiad(ctx context.Context, tx *gorm.DB, olympiadID uint) ([]*models.OlympiadTask, error)
	CountByOlympiad(ctx context.Context, tx *gorm.DB, olympiadID uint) (int64, error)
}

type AttemptRepository interface {
	// CreateIdempotent inserts the attempt honoring the unique
	// (olympiad_id, user_id) constraint; on conflict it returns the
	// existing row with created=false.
	CreateIdempotent(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) (*models.Attempt, bool, error)

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByOlympiadAndUser(ctx context.Context, tx *gorm.DB, olympiadID, userID uint) (*models.Attempt, error)
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.Attempt, int64, error)

	// UpdateStatusIfActive transitions active -> status and reports whether
	// a row changed; terminal rows are left untouched.
	UpdateStatusIfActive(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) (bool, error)

	// UpsertAnswer is an atomic insert-or-replace on (attempt_id, task_id).
	UpsertAnswer(ctx context.Context, tx *gorm.DB, attemptID, taskID uint, answer datatypes.JSON, now time.Time) error
	GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error)

	// MarkTerminalWithGrades atomically replaces the grade set and writes
	// the terminal attempt row: delete old grades, insert the new set,
	// update the attempt. All or nothing.
	MarkTerminalWithGrades(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, grades []GradeRow) error
	GetGrades(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptTaskGrade, error)

	// ListExpiredUngraded feeds the reconciler: expired attempts whose
	// grade record was never completed.
	ListExpiredUngraded(ctx context.Context, tx *gorm.DB, limit int) ([]*models.Attempt, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)
	GetByLogin(ctx context.Context, tx *gorm.DB, login string) (*models.User, error)
	List(ctx context.Context, tx *gorm.DB, filters UserFilters) ([]*models.User, int64, error)
	UpdateRole(ctx context.Context, tx *gorm.DB, id uint, role models.UserRole) error

	LinkStudent(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) error
	UnlinkStudent(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) error
	ListStudents(ctx context.Context, tx *gorm.DB, teacherID uint) ([]*models.User, error)
	IsTeacherOf(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) (bool, error)
}

type AuditRepository interface {
	Create(ctx context.Context, tx *gorm.DB, record *models.AuditRecord) error
}
