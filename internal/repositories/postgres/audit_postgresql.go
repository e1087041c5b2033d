package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

type AuditPostgreSQL struct {
	pool *pools
}

func NewAuditPostgreSQL(pool *pools) repositories.AuditRepository {
	return &AuditPostgreSQL{pool: pool}
}

func (r *AuditPostgreSQL) Create(ctx context.Context, tx *gorm.DB, record *models.AuditRecord) error {
	return r.pool.write(tx).WithContext(ctx).Create(record).Error
}
