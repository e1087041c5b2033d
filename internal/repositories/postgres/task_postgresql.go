package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

type TaskPostgreSQL struct {
	pool *pools
}

func NewTaskPostgreSQL(pool *pools) repositories.TaskRepository {
	return &TaskPostgreSQL{pool: pool}
}

func (t *TaskPostgreSQL) Create(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	return t.pool.write(tx).WithContext(ctx).Create(task).Error
}

func (t *TaskPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	err := t.pool.read(tx).WithContext(ctx).First(&task, id).Error
	err = t.pool.readFallback(tx, err, func(db *gorm.DB) error {
		return db.WithContext(ctx).First(&task, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *TaskPostgreSQL) Update(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	return t.pool.write(tx).WithContext(ctx).Save(task).Error
}

func (t *TaskPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return t.pool.write(tx).WithContext(ctx).Delete(&models.Task{}, id).Error
}

func (t *TaskPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.TaskFilters) ([]*models.Task, int64, error) {
	var tasks []*models.Task
	var total int64

	query := t.pool.read(tx).WithContext(ctx).Model(&models.Task{})
	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Search != nil {
		query = query.Where("title ILIKE ?", "%"+*filters.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset)
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (t *TaskPostgreSQL) ReferringOlympiadIDs(ctx context.Context, tx *gorm.DB, taskID uint) ([]uint, error) {
	var ids []uint
	err := t.pool.read(tx).WithContext(ctx).
		Model(&models.OlympiadTask{}).
		Where("task_id = ?", taskID).
		Distinct().
		Pluck("olympiad_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
