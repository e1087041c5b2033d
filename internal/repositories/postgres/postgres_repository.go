package postgres

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/eduolymp/olympiad-service/internal/repositories"
)

// PostgreSQLRepository implements the aggregate Repository interface over a
// writer pool, an optional reader pool, and a best-effort redis cache.
type PostgreSQLRepository struct {
	writer      *gorm.DB
	reader      *gorm.DB
	redisClient *redis.Client

	olympiad     repositories.OlympiadRepository
	task         repositories.TaskRepository
	olympiadTask repositories.OlympiadTaskRepository
	attempt      repositories.AttemptRepository
	user         repositories.UserRepository
	audit        repositories.AuditRepository
}

// RepositoryConfig holds dependencies for repository initialization.
type RepositoryConfig struct {
	Writer      *gorm.DB
	Reader      *gorm.DB
	RedisClient *redis.Client
}

func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	repo := &PostgreSQLRepository{
		writer:      config.Writer,
		reader:      config.Reader,
		redisClient: config.RedisClient,
	}

	pool := newPools(config.Writer, config.Reader)

	repo.olympiad = NewOlympiadPostgreSQL(pool)
	repo.task = NewTaskPostgreSQL(pool)
	repo.olympiadTask = NewOlympiadTaskPostgreSQL(pool)
	repo.attempt = NewAttemptPostgreSQL(pool)
	repo.user = NewUserPostgreSQL(pool)
	repo.audit = NewAuditPostgreSQL(pool)

	return repo
}

func (r *PostgreSQLRepository) Olympiad() repositories.OlympiadRepository         { return r.olympiad }
func (r *PostgreSQLRepository) Task() repositories.TaskRepository                 { return r.task }
func (r *PostgreSQLRepository) OlympiadTask() repositories.OlympiadTaskRepository { return r.olympiadTask }
func (r *PostgreSQLRepository) Attempt() repositories.AttemptRepository           { return r.attempt }
func (r *PostgreSQLRepository) User() repositories.UserRepository                 { return r.user }
func (r *PostgreSQLRepository) Audit() repositories.AuditRepository               { return r.audit }

// WithTransaction runs fn inside one writer transaction; every repository
// call made through the nested Repository uses that transaction.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.writer.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nested := NewPostgreSQLRepository(RepositoryConfig{
			Writer:      tx,
			RedisClient: r.redisClient,
		})
		return fn(nested)
	})
}

func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.writer.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgreSQLRepository) Close() error {
	for _, g := range []*gorm.DB{r.writer, r.reader} {
		if g == nil {
			continue
		}
		if sqlDB, err := g.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
