package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eduolymp/olympiad-service/internal/cache"
	"github.com/eduolymp/olympiad-service/internal/events"
	"github.com/eduolymp/olympiad-service/internal/locks"
	"github.com/eduolymp/olympiad-service/internal/ratelimit"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

// ServiceManagerConfig holds everything the services need beyond the
// repository.
type ServiceManagerConfig struct {
	Cache     *cache.OlympiadCache
	Lock      *locks.SubmitLock
	Limiter   *ratelimit.TokenBucket
	Publisher events.EventPublisher
	Logger    *slog.Logger
	Validator *validator.Validator
}

type serviceManager struct {
	repo   repositories.Repository
	config ServiceManagerConfig

	attemptService      AttemptService
	olympiadService     OlympiadService
	taskService         TaskService
	userService         UserService
	auditService        AuditService
	importExportService ImportExportService

	shutdown bool
	mu       sync.RWMutex
}

func NewServiceManager(repo repositories.Repository, config ServiceManagerConfig) ServiceManager {
	m := &serviceManager{repo: repo, config: config}

	m.attemptService = NewAttemptService(
		repo, config.Cache, config.Lock, config.Limiter,
		config.Publisher, config.Logger, config.Validator)
	m.olympiadService = NewOlympiadService(
		repo, config.Cache, config.Publisher, config.Logger, config.Validator)
	m.taskService = NewTaskService(repo, config.Cache, config.Logger, config.Validator)
	m.userService = NewUserService(repo, m.attemptService, config.Logger, config.Validator)
	m.auditService = NewAuditService(repo, config.Publisher, config.Logger)
	m.importExportService = NewImportExportService(repo, config.Logger, config.Validator)

	return m
}

func (m *serviceManager) Attempt() AttemptService           { return m.attemptService }
func (m *serviceManager) Olympiad() OlympiadService         { return m.olympiadService }
func (m *serviceManager) Task() TaskService                 { return m.taskService }
func (m *serviceManager) User() UserService                 { return m.userService }
func (m *serviceManager) Audit() AuditService               { return m.auditService }
func (m *serviceManager) ImportExport() ImportExportService { return m.importExportService }

func (m *serviceManager) HealthCheck(ctx context.Context) error {
	if err := m.repo.Ping(ctx); err != nil {
		return err
	}
	// Cache health is advisory: report it in logs, do not fail readiness.
	if err := m.config.Cache.HealthCheck(ctx); err != nil {
		m.config.Logger.Warn("cache health check failed", "error", err)
	}
	return nil
}

func (m *serviceManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil
	}
	m.shutdown = true

	if err := m.config.Publisher.Close(); err != nil {
		m.config.Logger.Warn("failed to close event publisher", "error", err)
	}
	return m.repo.Close()
}
