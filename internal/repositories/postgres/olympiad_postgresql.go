package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

type OlympiadPostgreSQL struct {
	pool *pools
}

func NewOlympiadPostgreSQL(pool *pools) repositories.OlympiadRepository {
	return &OlympiadPostgreSQL{pool: pool}
}

func (o *OlympiadPostgreSQL) Create(ctx context.Context, tx *gorm.DB, olympiad *models.Olympiad) error {
	return o.pool.write(tx).WithContext(ctx).Create(olympiad).Error
}

func (o *OlympiadPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Olympiad, error) {
	var olympiad models.Olympiad
	db := o.pool.read(tx)
	err := db.WithContext(ctx).First(&olympiad, id).Error
	err = o.pool.readFallback(tx, err, func(db *gorm.DB) error {
		return db.WithContext(ctx).First(&olympiad, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &olympiad, nil
}

func (o *OlympiadPostgreSQL) Update(ctx context.Context, tx *gorm.DB, olympiad *models.Olympiad) error {
	return o.pool.write(tx).WithContext(ctx).Save(olympiad).Error
}

func (o *OlympiadPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := o.pool.write(tx).WithContext(ctx)
	if err := db.Where("olympiad_id = ?", id).Delete(&models.OlympiadTask{}).Error; err != nil {
		return fmt.Errorf("failed to delete olympiad tasks: %w", err)
	}
	return db.Delete(&models.Olympiad{}, id).Error
}

func (o *OlympiadPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.OlympiadFilters) ([]*models.Olympiad, int64, error) {
	var olympiads []*models.Olympiad
	var total int64

	query := o.pool.read(tx).WithContext(ctx).Model(&models.Olympiad{})
	query = o.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset)
	query = o.applySort(query, filters)

	if err := query.Find(&olympiads).Error; err != nil {
		return nil, 0, err
	}

	// Age-group filtering needs the canonical set expanded, so it happens
	// after the query.
	if filters.ClassGrade != nil {
		filtered := olympiads[:0]
		for _, ol := range olympiads {
			if ol.AgeGroup.Contains(*filters.ClassGrade) {
				filtered = append(filtered, ol)
			}
		}
		olympiads = filtered
		total = int64(len(olympiads))
	}

	return olympiads, total, nil
}

func (o *OlympiadPostgreSQL) ListOpenIDs(ctx context.Context, tx *gorm.DB, now time.Time) ([]uint, error) {
	var ids []uint
	err := o.pool.read(tx).WithContext(ctx).
		Model(&models.Olympiad{}).
		Where("is_published = ? AND available_from <= ? AND available_to >= ?", true, now, now).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (o *OlympiadPostgreSQL) HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := o.pool.read(tx).WithContext(ctx).
		Model(&models.Attempt{}).
		Where("olympiad_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (o *OlympiadPostgreSQL) applyFilters(query *gorm.DB, filters repositories.OlympiadFilters) *gorm.DB {
	if filters.IsPublished != nil {
		query = query.Where("is_published = ?", *filters.IsPublished)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.OpenAt != nil {
		query = query.Where("available_from <= ? AND available_to >= ?", *filters.OpenAt, *filters.OpenAt)
	}
	return query
}

func (o *OlympiadPostgreSQL) applySort(query *gorm.DB, filters repositories.OlympiadFilters) *gorm.DB {
	column := "created_at"
	switch filters.SortBy {
	case "title":
		column = "title"
	case "available_from":
		column = "available_from"
	}
	direction := "DESC"
	if filters.SortOrder == "asc" {
		direction = "ASC"
	}
	return query.Order(fmt.Sprintf("%s %s", column, direction))
}
