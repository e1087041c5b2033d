package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/eduolymp/olympiad-service/internal/events"
	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

type auditService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewAuditService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger) AuditService {
	return &auditService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Record persists one audit row and mirrors it to the event stream. Both
// writes are best-effort; a failure never reaches the request path.
func (s *auditService) Record(ctx context.Context, record *models.AuditRecord) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Audit().Create(ctx, nil, record); err != nil {
		s.logger.Error("failed to write audit record",
			"action", record.Action,
			"request_id", record.RequestID,
			"error", err)
	}

	if err := s.publisher.Publish(ctx, "audit."+record.Action, record); err != nil {
		s.logger.Warn("failed to publish audit event",
			"action", record.Action,
			"request_id", record.RequestID,
			"error", err)
	}
}
