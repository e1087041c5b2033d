package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduolymp/olympiad-service/internal/cache"
	"github.com/eduolymp/olympiad-service/internal/events"
	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

type olympiadService struct {
	repo      repositories.Repository
	cache     *cache.OlympiadCache
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewOlympiadService(
	repo repositories.Repository,
	olympiadCache *cache.OlympiadCache,
	publisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
) OlympiadService {
	return &olympiadService{
		repo:      repo,
		cache:     olympiadCache,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

// ===== CRUD =====

func (s *olympiadService) Create(ctx context.Context, actor *models.User, req *CreateOlympiadRequest) (*models.Olympiad, error) {
	if err := requireAdmin(actor, 0, "olympiad", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	ageGroup, err := models.ParseAgeGroup(req.AgeGroup)
	if err != nil {
		return nil, &BusinessRuleError{Rule: "age_group", Err: err}
	}

	passPercent := req.PassPercent
	olympiad := &models.Olympiad{
		Title:         req.Title,
		Description:   req.Description,
		AgeGroup:      ageGroup,
		AttemptsLimit: models.DefaultAttemptsLimit,
		DurationSec:   req.DurationSec,
		AvailableFrom: req.From.UTC(),
		AvailableTo:   req.To.UTC(),
		PassPercent:   passPercent,
		CreatedBy:     actor.ID,
	}

	if err := s.repo.Olympiad().Create(ctx, nil, olympiad); err != nil {
		return nil, fmt.Errorf("failed to create olympiad: %w", err)
	}

	s.logger.Info("olympiad created", "olympiad_id", olympiad.ID, "created_by", actor.ID)
	return olympiad, nil
}

func (s *olympiadService) GetByID(ctx context.Context, actor *models.User, id uint) (*OlympiadResponse, error) {
	olympiad, err := s.getOlympiad(ctx, id)
	if err != nil {
		return nil, err
	}

	// Students only see published olympiads through this surface.
	if actor.IsStudent() && !olympiad.IsPublished {
		return nil, ErrOlympiadNotFound
	}

	count, err := s.repo.OlympiadTask().CountByOlympiad(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	return &OlympiadResponse{
		Olympiad:  olympiad,
		TaskCount: count,
		CanEdit:   actor.IsAdmin(),
		CanDelete: actor.IsAdmin() && !olympiad.IsPublished,
	}, nil
}

func (s *olympiadService) Update(ctx context.Context, actor *models.User, id uint, req *UpdateOlympiadRequest) (*models.Olympiad, error) {
	if err := requireAdmin(actor, id, "olympiad", "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	olympiad, err := s.getOlympiad(ctx, id)
	if err != nil {
		return nil, err
	}

	// Published rules are frozen: timing fields reject edits until the
	// olympiad is unpublished.
	if olympiad.IsPublished && (req.DurationSec != nil || req.From != nil || req.To != nil) {
		return nil, &BusinessRuleError{Rule: "published_rules_frozen", Err: ErrOlympiadPublished}
	}

	if req.Title != nil {
		olympiad.Title = *req.Title
	}
	if req.Description != nil {
		olympiad.Description = req.Description
	}
	if req.AgeGroup != nil {
		ageGroup, err := models.ParseAgeGroup(*req.AgeGroup)
		if err != nil {
			return nil, &BusinessRuleError{Rule: "age_group", Err: err}
		}
		olympiad.AgeGroup = ageGroup
	}
	if req.DurationSec != nil {
		olympiad.DurationSec = *req.DurationSec
	}
	if req.From != nil {
		olympiad.AvailableFrom = req.From.UTC()
	}
	if req.To != nil {
		olympiad.AvailableTo = req.To.UTC()
	}
	if req.PassPercent != nil {
		olympiad.PassPercent = *req.PassPercent
	}
	if !olympiad.AvailableTo.After(olympiad.AvailableFrom) {
		return nil, &BusinessRuleError{Rule: "availability_window", Err: fmt.Errorf("available_to must be after available_from")}
	}

	if err := s.repo.Olympiad().Update(ctx, nil, olympiad); err != nil {
		return nil, fmt.Errorf("failed to update olympiad: %w", err)
	}

	s.cache.Evict(ctx, id)
	return olympiad, nil
}

func (s *olympiadService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if err := requireAdmin(actor, id, "olympiad", "delete"); err != nil {
		return err
	}

	if _, err := s.getOlympiad(ctx, id); err != nil {
		return err
	}

	hasAttempts, err := s.repo.Olympiad().HasAttempts(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts {
		return &BusinessRuleError{Rule: "olympiad_referenced_by_attempts", Err: ErrOlympiadHasAttempts}
	}

	if err := s.repo.Olympiad().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete olympiad: %w", err)
	}

	s.cache.Evict(ctx, id)
	s.logger.Info("olympiad deleted", "olympiad_id", id, "deleted_by", actor.ID)
	return nil
}

func (s *olympiadService) List(ctx context.Context, actor *models.User, filters repositories.OlympiadFilters) (*OlympiadListResponse, error) {
	// Students see only published olympiads matching their class grade.
	if actor.IsStudent() {
		published := true
		filters.IsPublished = &published
		filters.ClassGrade = actor.ClassGrade
	}

	olympiads, total, err := s.repo.Olympiad().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list olympiads: %w", err)
	}

	responses := make([]*OlympiadResponse, len(olympiads))
	for i, olympiad := range olympiads {
		responses[i] = &OlympiadResponse{
			Olympiad:  olympiad,
			CanEdit:   actor.IsAdmin(),
			CanDelete: actor.IsAdmin() && !olympiad.IsPublished,
		}
	}

	return &OlympiadListResponse{Olympiads: responses, Total: total}, nil
}

// ===== TASK COMPOSITION =====

func (s *olympiadService) AttachTask(ctx context.Context, actor *models.User, olympiadID uint, req *AttachTaskRequest) error {
	if err := requireAdmin(actor, olympiadID, "olympiad", "attach_task"); err != nil {
		return err
	}
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	if _, err := s.getOlympiad(ctx, olympiadID); err != nil {
		return err
	}
	if _, err := s.repo.Task().GetByID(ctx, nil, req.TaskID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to get task: %w", err)
	}

	existing, err := s.repo.OlympiadTask().GetByOlympiad(ctx, nil, olympiadID)
	if err != nil {
		return fmt.Errorf("failed to get olympiad tasks: %w", err)
	}
	for _, row := range existing {
		if row.TaskID == req.TaskID {
			return &BusinessRuleError{Rule: "task_already_attached", Err: ErrTaskAlreadyAttached}
		}
	}

	row := &models.OlympiadTask{
		OlympiadID: olympiadID,
		TaskID:     req.TaskID,
		SortOrder:  req.SortOrder,
		MaxScore:   req.MaxScore,
	}
	if err := s.repo.OlympiadTask().Attach(ctx, nil, row); err != nil {
		return fmt.Errorf("failed to attach task: %w", err)
	}

	s.cache.Evict(ctx, olympiadID)
	return nil
}

func (s *olympiadService) DetachTask(ctx context.Context, actor *models.User, olympiadID, taskID uint) error {
	if err := requireAdmin(actor, olympiadID, "olympiad", "detach_task"); err != nil {
		return err
	}

	if err := s.repo.OlympiadTask().Detach(ctx, nil, olympiadID, taskID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to detach task: %w", err)
	}

	s.cache.Evict(ctx, olympiadID)
	return nil
}

func (s *olympiadService) ReorderTasks(ctx context.Context, actor *models.User, olympiadID uint, req *ReorderTasksRequest) error {
	if err := requireAdmin(actor, olympiadID, "olympiad", "reorder_tasks"); err != nil {
		return err
	}
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	orders := make(map[uint]int, len(req.Orders))
	for _, order := range req.Orders {
		orders[order.TaskID] = order.SortOrder
	}
	if err := s.repo.OlympiadTask().Reorder(ctx, nil, olympiadID, orders); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to reorder tasks: %w", err)
	}

	s.cache.Evict(ctx, olympiadID)
	return nil
}

func (s *olympiadService) GetTasks(ctx context.Context, actor *models.User, olympiadID uint) ([]*models.OlympiadTask, error) {
	if err := requireAdmin(actor, olympiadID, "olympiad", "view_tasks"); err != nil {
		return nil, err
	}
	if _, err := s.getOlympiad(ctx, olympiadID); err != nil {
		return nil, err
	}
	return s.repo.OlympiadTask().GetByOlympiad(ctx, nil, olympiadID)
}

// ===== LIFECYCLE =====

func (s *olympiadService) Publish(ctx context.Context, actor *models.User, id uint) (*models.Olympiad, error) {
	if err := requireAdmin(actor, id, "olympiad", "publish"); err != nil {
		return nil, err
	}

	olympiad, err := s.getOlympiad(ctx, id)
	if err != nil {
		return nil, err
	}
	if olympiad.IsPublished {
		return olympiad, nil
	}

	count, err := s.repo.OlympiadTask().CountByOlympiad(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	if count == 0 {
		return nil, ErrOlympiadHasNoTasks
	}

	olympiad.IsPublished = true
	if err := s.repo.Olympiad().Update(ctx, nil, olympiad); err != nil {
		return nil, fmt.Errorf("failed to publish olympiad: %w", err)
	}

	s.cache.Evict(ctx, id)
	s.logger.Info("olympiad published", "olympiad_id", id, "published_by", actor.ID)
	s.emitOlympiadEvent(ctx, events.EventOlympiadPublished, id, actor.ID)
	return olympiad, nil
}

func (s *olympiadService) Unpublish(ctx context.Context, actor *models.User, id uint) (*models.Olympiad, error) {
	if err := requireAdmin(actor, id, "olympiad", "unpublish"); err != nil {
		return nil, err
	}

	olympiad, err := s.getOlympiad(ctx, id)
	if err != nil {
		return nil, err
	}
	if !olympiad.IsPublished {
		return olympiad, nil
	}

	olympiad.IsPublished = false
	if err := s.repo.Olympiad().Update(ctx, nil, olympiad); err != nil {
		return nil, fmt.Errorf("failed to unpublish olympiad: %w", err)
	}

	s.cache.Evict(ctx, id)
	s.logger.Info("olympiad unpublished", "olympiad_id", id, "unpublished_by", actor.ID)
	return olympiad, nil
}

func (s *olympiadService) ReleaseResults(ctx context.Context, actor *models.User, id uint, released bool) (*models.Olympiad, error) {
	if err := requireAdmin(actor, id, "olympiad", "release_results"); err != nil {
		return nil, err
	}

	olympiad, err := s.getOlympiad(ctx, id)
	if err != nil {
		return nil, err
	}

	olympiad.ResultsReleased = released
	if err := s.repo.Olympiad().Update(ctx, nil, olympiad); err != nil {
		return nil, fmt.Errorf("failed to update results flag: %w", err)
	}

	s.cache.Evict(ctx, id)
	if released {
		s.emitOlympiadEvent(ctx, events.EventResultsReleased, id, actor.ID)
	}
	return olympiad, nil
}

func (s *olympiadService) ListAttempts(ctx context.Context, actor *models.User, olympiadID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	if !actor.IsAdmin() && !actor.IsTeacher() {
		return nil, 0, NewPermissionError(actor.ID, olympiadID, "olympiad", "view_attempts", "insufficient role")
	}
	if _, err := s.getOlympiad(ctx, olympiadID); err != nil {
		return nil, 0, err
	}

	filters.OlympiadID = &olympiadID
	return s.repo.Attempt().List(ctx, nil, filters)
}

// ===== HELPERS =====

func (s *olympiadService) getOlympiad(ctx context.Context, id uint) (*models.Olympiad, error) {
	olympiad, err := s.repo.Olympiad().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrOlympiadNotFound
		}
		return nil, fmt.Errorf("failed to get olympiad: %w", err)
	}
	return olympiad, nil
}

func (s *olympiadService) emitOlympiadEvent(ctx context.Context, name string, olympiadID, actorID uint) {
	event := events.OlympiadEvent{
		OlympiadID: olympiadID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, name, event); err != nil {
		s.logger.Warn("failed to publish olympiad event", "event", name, "olympiad_id", olympiadID, "error", err)
	}
}

func requireAdmin(actor *models.User, resourceID uint, resource, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	return NewPermissionError(actor.ID, resourceID, resource, action, "admin role required")
}
