package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/eduolymp/olympiad-service/internal/cache"
	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

type taskService struct {
	repo      repositories.Repository
	cache     *cache.OlympiadCache
	logger    *slog.Logger
	validator *validator.Validator
}

func NewTaskService(repo repositories.Repository, olympiadCache *cache.OlympiadCache, logger *slog.Logger, v *validator.Validator) TaskService {
	return &taskService{
		repo:      repo,
		cache:     olympiadCache,
		logger:    logger,
		validator: v,
	}
}

func (s *taskService) Create(ctx context.Context, actor *models.User, req *CreateTaskRequest) (*models.Task, error) {
	if err := requireAdmin(actor, 0, "task", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	taskType := models.TaskType(req.Type)
	if errs := validator.ValidateTaskPayload(taskType, req.Payload); len(errs) > 0 {
		return nil, errs
	}

	task := &models.Task{
		Subject:   req.Subject,
		Title:     req.Title,
		Content:   req.Content,
		Type:      taskType,
		ImageKey:  req.ImageKey,
		Payload:   datatypes.JSON(req.Payload),
		CreatedBy: actor.ID,
	}

	if err := s.repo.Task().Create(ctx, nil, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created", "task_id", task.ID, "task_type", task.Type, "created_by", actor.ID)
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, actor *models.User, id uint) (*models.Task, error) {
	if !actor.IsAdmin() && !actor.IsTeacher() {
		return nil, NewPermissionError(actor.ID, id, "task", "read", "insufficient role")
	}
	return s.getTask(ctx, id)
}

func (s *taskService) Update(ctx context.Context, actor *models.User, id uint, req *UpdateTaskRequest) (*models.Task, error) {
	if err := requireAdmin(actor, id, "task", "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Subject != nil {
		task.Subject = *req.Subject
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Content != nil {
		task.Content = *req.Content
	}
	if req.ImageKey != nil {
		task.ImageKey = req.ImageKey
	}
	if len(req.Payload) > 0 {
		if errs := validator.ValidateTaskPayload(task.Type, req.Payload); len(errs) > 0 {
			return nil, errs
		}
		task.Payload = datatypes.JSON(req.Payload)
	}

	if err := s.repo.Task().Update(ctx, nil, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	// Every olympiad carrying this task may now serve a stale composition.
	s.evictReferring(ctx, id)

	return task, nil
}

func (s *taskService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if err := requireAdmin(actor, id, "task", "delete"); err != nil {
		return err
	}

	if _, err := s.getTask(ctx, id); err != nil {
		return err
	}

	referring, err := s.repo.Task().ReferringOlympiadIDs(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check task references: %w", err)
	}
	if len(referring) > 0 {
		return &BusinessRuleError{Rule: "task_referenced_by_olympiads", Err: ErrTaskInUse}
	}

	if err := s.repo.Task().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Info("task deleted", "task_id", id, "deleted_by", actor.ID)
	return nil
}

func (s *taskService) List(ctx context.Context, actor *models.User, filters repositories.TaskFilters) (*TaskListResponse, error) {
	if !actor.IsAdmin() && !actor.IsTeacher() {
		return nil, NewPermissionError(actor.ID, 0, "task", "list", "insufficient role")
	}

	tasks, total, err := s.repo.Task().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return &TaskListResponse{Tasks: tasks, Total: total}, nil
}

func (s *taskService) getTask(ctx context.Context, id uint) (*models.Task, error) {
	task, err := s.repo.Task().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (s *taskService) evictReferring(ctx context.Context, taskID uint) {
	referring, err := s.repo.Task().ReferringOlympiadIDs(ctx, nil, taskID)
	if err != nil {
		s.logger.Error("failed to compute referring olympiads for eviction", "task_id", taskID, "error", err)
		return
	}
	if len(referring) > 0 {
		s.cache.Evict(ctx, referring...)
	}
}
