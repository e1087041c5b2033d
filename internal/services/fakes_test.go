package services

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

// fakeRepo is an in-memory repositories.Repository for service tests.
type fakeRepo struct {
	olympiads     map[uint]*models.Olympiad
	olympiadTasks map[uint][]*models.OlympiadTask
	users         map[uint]*models.User
	attempts      map[uint]*models.Attempt
	answers       map[uint]map[uint]*models.AttemptAnswer
	grades        map[uint][]*models.AttemptTaskGrade
	links         map[uint]map[uint]bool

	nextAttemptID     uint
	markTerminalCalls int

	// now pins the clock used by ListExpiredUngraded.
	now time.Time

	// onAttemptRead runs after each attempt GetByID snapshots the row,
	// letting tests interleave a concurrent writer between a service's
	// consecutive reads.
	onAttemptRead func(id uint)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		olympiads:     make(map[uint]*models.Olympiad),
		olympiadTasks: make(map[uint][]*models.OlympiadTask),
		users:         make(map[uint]*models.User),
		attempts:      make(map[uint]*models.Attempt),
		answers:       make(map[uint]map[uint]*models.AttemptAnswer),
		grades:        make(map[uint][]*models.AttemptTaskGrade),
		links:         make(map[uint]map[uint]bool),
	}
}

func (r *fakeRepo) Olympiad() repositories.OlympiadRepository         { return &fakeOlympiads{r} }
func (r *fakeRepo) Task() repositories.TaskRepository                 { return &fakeTasks{r} }
func (r *fakeRepo) OlympiadTask() repositories.OlympiadTaskRepository { return &fakeOlympiadTasks{r} }
func (r *fakeRepo) Attempt() repositories.AttemptRepository           { return &fakeAttempts{r} }
func (r *fakeRepo) User() repositories.UserRepository                 { return &fakeUsers{r} }
func (r *fakeRepo) Audit() repositories.AuditRepository               { return &fakeAudit{} }

func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }
func (r *fakeRepo) Close() error                   { return nil }

// ===== OLYMPIADS =====

type fakeOlympiads struct{ r *fakeRepo }

func (f *fakeOlympiads) Create(ctx context.Context, tx *gorm.DB, olympiad *models.Olympiad) error {
	if olympiad.ID == 0 {
		olympiad.ID = uint(len(f.r.olympiads) + 1)
	}
	f.r.olympiads[olympiad.ID] = olympiad
	return nil
}

func (f *fakeOlympiads) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Olympiad, error) {
	o, ok := f.r.olympiads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOlympiads) Update(ctx context.Context, tx *gorm.DB, olympiad *models.Olympiad) error {
	f.r.olympiads[olympiad.ID] = olympiad
	return nil
}

func (f *fakeOlympiads) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	delete(f.r.olympiads, id)
	return nil
}

func (f *fakeOlympiads) List(ctx context.Context, tx *gorm.DB, filters repositories.OlympiadFilters) ([]*models.Olympiad, int64, error) {
	out := make([]*models.Olympiad, 0, len(f.r.olympiads))
	for _, o := range f.r.olympiads {
		out = append(out, o)
	}
	return out, int64(len(out)), nil
}

func (f *fakeOlympiads) ListOpenIDs(ctx context.Context, tx *gorm.DB, now time.Time) ([]uint, error) {
	var ids []uint
	for id, o := range f.r.olympiads {
		if o.IsPublished && o.IsOpenAt(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeOlympiads) HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	for _, a := range f.r.attempts {
		if a.OlympiadID == id {
			return true, nil
		}
	}
	return false, nil
}

// ===== TASKS =====

type fakeTasks struct{ r *fakeRepo }

func (f *fakeTasks) Create(ctx context.Context, tx *gorm.DB, task *models.Task) error { return nil }

func (f *fakeTasks) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error) {
	for _, rows := range f.r.olympiadTasks {
		for _, row := range rows {
			if row.TaskID == id {
				copied := row.Task
				return &copied, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTasks) Update(ctx context.Context, tx *gorm.DB, task *models.Task) error { return nil }
func (f *fakeTasks) Delete(ctx context.Context, tx *gorm.DB, id uint) error           { return nil }

func (f *fakeTasks) List(ctx context.Context, tx *gorm.DB, filters repositories.TaskFilters) ([]*models.Task, int64, error) {
	return nil, 0, nil
}

func (f *fakeTasks) ReferringOlympiadIDs(ctx context.Context, tx *gorm.DB, taskID uint) ([]uint, error) {
	var ids []uint
	for olympiadID, rows := range f.r.olympiadTasks {
		for _, row := range rows {
			if row.TaskID == taskID {
				ids = append(ids, olympiadID)
			}
		}
	}
	return ids, nil
}

// ===== OLYMPIAD TASKS =====

type fakeOlympiadTasks struct{ r *fakeRepo }

func (f *fakeOlympiadTasks) Attach(ctx context.Context, tx *gorm.DB, row *models.OlympiadTask) error {
	f.r.olympiadTasks[row.OlympiadID] = append(f.r.olympiadTasks[row.OlympiadID], row)
	return nil
}

func (f *fakeOlympiadTasks) Detach(ctx context.Context, tx *gorm.DB, olympiadID, taskID uint) error {
	rows := f.r.olympiadTasks[olympiadID]
	kept := rows[:0]
	for _, row := range rows {
		if row.TaskID != taskID {
			kept = append(kept, row)
		}
	}
	f.r.olympiadTasks[olympiadID] = kept
	return nil
}

func (f *fakeOlympiadTasks) Reorder(ctx context.Context, tx *gorm.DB, olympiadID uint, orders map[uint]int) error {
	for _, row := range f.r.olympiadTasks[olympiadID] {
		if order, ok := orders[row.TaskID]; ok {
			row.SortOrder = order
		}
	}
	return nil
}

func (f *fakeOlympiadTasks) GetByOlympiad(ctx context.Context, tx *gorm.DB, olympiadID uint) ([]*models.OlympiadTask, error) {
	return f.r.olympiadTasks[olympiadID], nil
}

func (f *fakeOlympiadTasks) CountByOlympiad(ctx context.Context, tx *gorm.DB, olympiadID uint) (int64, error) {
	return int64(len(f.r.olympiadTasks[olympiadID])), nil
}

// ===== ATTEMPTS =====

type fakeAttempts struct{ r *fakeRepo }

func (f *fakeAttempts) CreateIdempotent(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) (*models.Attempt, bool, error) {
	for _, existing := range f.r.attempts {
		if existing.OlympiadID == attempt.OlympiadID && existing.UserID == attempt.UserID {
			copied := *existing
			return &copied, false, nil
		}
	}
	f.r.nextAttemptID++
	attempt.ID = f.r.nextAttemptID
	stored := *attempt
	f.r.attempts[attempt.ID] = &stored
	return attempt, true, nil
}

func (f *fakeAttempts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	a, ok := f.r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	if f.r.onAttemptRead != nil {
		f.r.onAttemptRead(id)
	}
	return &copied, nil
}

func (f *fakeAttempts) GetByOlympiadAndUser(ctx context.Context, tx *gorm.DB, olympiadID, userID uint) (*models.Attempt, error) {
	for _, a := range f.r.attempts {
		if a.OlympiadID == olympiadID && a.UserID == userID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttempts) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var out []*models.Attempt
	for _, a := range f.r.attempts {
		if filters.UserID != nil && a.UserID != *filters.UserID {
			continue
		}
		if filters.OlympiadID != nil && a.OlympiadID != *filters.OlympiadID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttempts) UpdateStatusIfActive(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) (bool, error) {
	a, ok := f.r.attempts[id]
	if !ok || a.Status != models.AttemptActive {
		return false, nil
	}
	a.Status = status
	return true, nil
}

func (f *fakeAttempts) UpsertAnswer(ctx context.Context, tx *gorm.DB, attemptID, taskID uint, answer datatypes.JSON, now time.Time) error {
	byTask, ok := f.r.answers[attemptID]
	if !ok {
		byTask = make(map[uint]*models.AttemptAnswer)
		f.r.answers[attemptID] = byTask
	}
	if row, ok := byTask[taskID]; ok {
		row.Answer = answer
		row.UpdatedAt = now
		return nil
	}
	byTask[taskID] = &models.AttemptAnswer{
		AttemptID: attemptID,
		TaskID:    taskID,
		Answer:    answer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (f *fakeAttempts) GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error) {
	var out []*models.AttemptAnswer
	for _, row := range f.r.answers[attemptID] {
		copied := *row
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeAttempts) MarkTerminalWithGrades(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, grades []repositories.GradeRow) error {
	stored, ok := f.r.attempts[attempt.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	f.r.markTerminalCalls++

	rows := make([]*models.AttemptTaskGrade, 0, len(grades))
	for _, g := range grades {
		rows = append(rows, &models.AttemptTaskGrade{
			AttemptID: attempt.ID,
			TaskID:    g.TaskID,
			IsCorrect: g.IsCorrect,
			Score:     g.Score,
			MaxScore:  g.MaxScore,
			GradedAt:  *attempt.GradedAt,
		})
	}
	f.r.grades[attempt.ID] = rows

	stored.Status = attempt.Status
	stored.ScoreTotal = attempt.ScoreTotal
	stored.ScoreMax = attempt.ScoreMax
	stored.Passed = attempt.Passed
	stored.GradedAt = attempt.GradedAt
	return nil
}

func (f *fakeAttempts) GetGrades(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptTaskGrade, error) {
	return f.r.grades[attemptID], nil
}

func (f *fakeAttempts) ListExpiredUngraded(ctx context.Context, tx *gorm.DB, limit int) ([]*models.Attempt, error) {
	var out []*models.Attempt
	now := f.r.now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	for _, a := range f.r.attempts {
		if len(out) >= limit {
			break
		}
		if (a.Status == models.AttemptActive && a.DeadlinePassed(now)) ||
			(a.Status == models.AttemptExpired && a.GradedAt == nil) {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

// ===== USERS =====

type fakeUsers struct{ r *fakeRepo }

func (f *fakeUsers) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	u, ok := f.r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) GetByLogin(ctx context.Context, tx *gorm.DB, login string) (*models.User, error) {
	for _, u := range f.r.users {
		if u.Login == login {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) List(ctx context.Context, tx *gorm.DB, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range f.r.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsers) UpdateRole(ctx context.Context, tx *gorm.DB, id uint, role models.UserRole) error {
	u, ok := f.r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Role = role
	return nil
}

func (f *fakeUsers) LinkStudent(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) error {
	if f.r.links[teacherID] == nil {
		f.r.links[teacherID] = make(map[uint]bool)
	}
	f.r.links[teacherID][studentID] = true
	return nil
}

func (f *fakeUsers) UnlinkStudent(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) error {
	delete(f.r.links[teacherID], studentID)
	return nil
}

func (f *fakeUsers) ListStudents(ctx context.Context, tx *gorm.DB, teacherID uint) ([]*models.User, error) {
	var out []*models.User
	for studentID := range f.r.links[teacherID] {
		if u, ok := f.r.users[studentID]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) IsTeacherOf(ctx context.Context, tx *gorm.DB, teacherID, studentID uint) (bool, error) {
	return f.r.links[teacherID][studentID], nil
}

// ===== AUDIT =====

type fakeAudit struct{}

func (f *fakeAudit) Create(ctx context.Context, tx *gorm.DB, record *models.AuditRecord) error {
	return nil
}
