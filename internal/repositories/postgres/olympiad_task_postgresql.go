package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

type OlympiadTaskPostgreSQL struct {
	pool *pools
}

func NewOlympiadTaskPostgreSQL(pool *pools) repositories.OlympiadTaskRepository {
	return &OlympiadTaskPostgreSQL{pool: pool}
}

func (r *OlympiadTaskPostgreSQL) Attach(ctx context.Context, tx *gorm.DB, row *models.OlympiadTask) error {
	return r.pool.write(tx).WithContext(ctx).Create(row).Error
}

func (r *OlympiadTaskPostgreSQL) Detach(ctx context.Context, tx *gorm.DB, olympiadID, taskID uint) error {
	result := r.pool.write(tx).WithContext(ctx).
		Where("olympiad_id = ? AND task_id = ?", olympiadID, taskID).
		Delete(&models.OlympiadTask{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *OlympiadTaskPostgreSQL) Reorder(ctx context.Context, tx *gorm.DB, olympiadID uint, orders map[uint]int) error {
	db := r.pool.write(tx)
	return db.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		for taskID, order := range orders {
			result := inner.Model(&models.OlympiadTask{}).
				Where("olympiad_id = ? AND task_id = ?", olympiadID, taskID).
				Update("sort_order", order)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("task %d is not attached to olympiad %d: %w", taskID, olympiadID, gorm.ErrRecordNotFound)
			}
		}
		return nil
	})
}

func (r *OlympiadTaskPostgreSQL) GetByOlympiad(ctx context.Context, tx *gorm.DB, olympiadID uint) ([]*models.OlympiadTask, error) {
	var rows []*models.OlympiadTask
	query := func(db *gorm.DB) error {
		return db.WithContext(ctx).
			Where("olympiad_id = ?", olympiadID).
			Preload("Task").
			Order("sort_order ASC").
			Find(&rows).Error
	}
	err := query(r.pool.read(tx))
	err = r.pool.readFallback(tx, err, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OlympiadTaskPostgreSQL) CountByOlympiad(ctx context.Context, tx *gorm.DB, olympiadID uint) (int64, error) {
	var count int64
	err := r.pool.read(tx).WithContext(ctx).
		Model(&models.OlympiadTask{}).
		Where("olympiad_id = ?", olympiadID).
		Count(&count).Error
	return count, err
}
