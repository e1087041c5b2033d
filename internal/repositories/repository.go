package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates all repository interfaces behind one handle.
type Repository interface {
	Olympiad() OlympiadRepository
	Task() TaskRepository
	OlympiadTask() OlympiadTaskRepository
	Attempt() AttemptRepository
	User() UserRepository
	Audit() AuditRepository

	// WithTransaction runs fn inside one database transaction; the nested
	// Repository routes every call through that transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// IsNotFoundError reports whether err is the storage layer's row-not-found.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
