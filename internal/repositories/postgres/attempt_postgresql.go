package postgres

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	pool *pools
}

func NewAttemptPostgreSQL(pool *pools) repositories.AttemptRepository {
	return &AttemptPostgreSQL{pool: pool}
}

// CreateIdempotent relies on the unique (olympiad_id, user_id) index: the
// insert is a no-op when a row already exists, and the surviving row is
// re-read so concurrent starts all see the same attempt.
func (r *AttemptPostgreSQL) CreateIdempotent(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) (*models.Attempt, bool, error) {
	db := r.pool.write(tx).WithContext(ctx)

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "olympiad_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(attempt)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return attempt, true, nil
	}

	var existing models.Attempt
	err := db.Where("olympiad_id = ? AND user_id = ?", attempt.OlympiadID, attempt.UserID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).First(&attempt, id).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) GetByOlympiadAndUser(ctx context.Context, tx *gorm.DB, olympiadID, userID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).
			Where("olympiad_id = ? AND user_id = ?", olympiadID, userID).
			First(&attempt).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var attempts []*models.Attempt
	var total int64

	query := r.pool.read(tx).WithContext(ctx).Model(&models.Attempt{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.OlympiadID != nil {
		query = query.Where("olympiad_id = ?", *filters.OlympiadID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset)
	if err := query.Order("started_at DESC").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (r *AttemptPostgreSQL) UpdateStatusIfActive(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) (bool, error) {
	result := r.pool.write(tx).WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, models.AttemptActive).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *AttemptPostgreSQL) UpsertAnswer(ctx context.Context, tx *gorm.DB, attemptID, taskID uint, answer datatypes.JSON, now time.Time) error {
	row := models.AttemptAnswer{
		AttemptID: attemptID,
		TaskID:    taskID,
		Answer:    answer,
		UpdatedAt: now,
	}
	return r.pool.write(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "updated_at"}),
	}).Create(&row).Error
}

func (r *AttemptPostgreSQL) GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error) {
	var answers []*models.AttemptAnswer
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).
			Where("attempt_id = ?", attemptID).
			Order("task_id ASC").
			Find(&answers).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return answers, nil
}

// MarkTerminalWithGrades writes the whole grade record in one transaction
// so an attempt is never observable half-graded.
func (r *AttemptPostgreSQL) MarkTerminalWithGrades(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, grades []repositories.GradeRow) error {
	db := r.pool.write(tx)
	return db.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Where("attempt_id = ?", attempt.ID).
			Delete(&models.AttemptTaskGrade{}).Error; err != nil {
			return err
		}

		if len(grades) > 0 {
			rows := make([]models.AttemptTaskGrade, 0, len(grades))
			gradedAt := time.Now().UTC()
			if attempt.GradedAt != nil {
				gradedAt = *attempt.GradedAt
			}
			for _, g := range grades {
				rows = append(rows, models.AttemptTaskGrade{
					AttemptID: attempt.ID,
					TaskID:    g.TaskID,
					IsCorrect: g.IsCorrect,
					Score:     g.Score,
					MaxScore:  g.MaxScore,
					GradedAt:  gradedAt,
				})
			}
			if err := inner.Create(&rows).Error; err != nil {
				return err
			}
		}

		return inner.Model(&models.Attempt{}).
			Where("id = ?", attempt.ID).
			Updates(map[string]interface{}{
				"status":      attempt.Status,
				"score_total": attempt.ScoreTotal,
				"score_max":   attempt.ScoreMax,
				"passed":      attempt.Passed,
				"graded_at":   attempt.GradedAt,
			}).Error
	})
}

func (r *AttemptPostgreSQL) GetGrades(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptTaskGrade, error) {
	var grades []*models.AttemptTaskGrade
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).
			Where("attempt_id = ?", attemptID).
			Order("task_id ASC").
			Find(&grades).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return grades, nil
}

// ListExpiredUngraded picks up attempts whose deadline passed while they were
// still active, or that went terminal without a graded_at stamp.
func (r *AttemptPostgreSQL) ListExpiredUngraded(ctx context.Context, tx *gorm.DB, limit int) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	now := time.Now().UTC()
	query := r.pool.write(tx).WithContext(ctx).
		Where("(status = ? AND deadline_at < ?) OR (status = ? AND graded_at IS NULL)",
			models.AttemptActive, now, models.AttemptExpired)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("deadline_at ASC").Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
