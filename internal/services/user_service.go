package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

type userService struct {
	repo      repositories.Repository
	attempts  AttemptService
	logger    *slog.Logger
	validator *validator.Validator
}

func NewUserService(repo repositories.Repository, attempts AttemptService, logger *slog.Logger, v *validator.Validator) UserService {
	return &userService{
		repo:      repo,
		attempts:  attempts,
		logger:    logger,
		validator: v,
	}
}

func (s *userService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, actor *models.User, filters repositories.UserFilters) ([]*models.User, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, NewPermissionError(actor.ID, 0, "user", "list", "admin role required")
	}
	return s.repo.User().List(ctx, nil, filters)
}

func (s *userService) UpdateRole(ctx context.Context, actor *models.User, id uint, role models.UserRole) error {
	if !actor.IsAdmin() {
		return NewPermissionError(actor.ID, id, "user", "update_role", "admin role required")
	}

	if err := s.repo.User().UpdateRole(ctx, nil, id, role); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	s.logger.Info("user role updated", "user_id", id, "role", role, "updated_by", actor.ID)
	return nil
}

// ===== TEACHER / STUDENT LINKS =====

func (s *userService) LinkStudent(ctx context.Context, actor *models.User, teacherID, studentID uint) error {
	if err := s.checkLinkPermission(actor, teacherID, "link_student"); err != nil {
		return err
	}

	student, err := s.GetByID(ctx, studentID)
	if err != nil {
		return err
	}
	if !student.IsStudent() {
		return &BusinessRuleError{Rule: "link_target_must_be_student", Err: fmt.Errorf("user %d is not a student", studentID)}
	}
	teacher, err := s.GetByID(ctx, teacherID)
	if err != nil {
		return err
	}
	if !teacher.IsTeacher() {
		return &BusinessRuleError{Rule: "link_owner_must_be_teacher", Err: fmt.Errorf("user %d is not a teacher", teacherID)}
	}

	if err := s.repo.User().LinkStudent(ctx, nil, teacherID, studentID); err != nil {
		return fmt.Errorf("failed to link student: %w", err)
	}
	return nil
}

func (s *userService) UnlinkStudent(ctx context.Context, actor *models.User, teacherID, studentID uint) error {
	if err := s.checkLinkPermission(actor, teacherID, "unlink_student"); err != nil {
		return err
	}

	if err := s.repo.User().UnlinkStudent(ctx, nil, teacherID, studentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to unlink student: %w", err)
	}
	return nil
}

func (s *userService) ListStudents(ctx context.Context, actor *models.User, teacherID uint) ([]*models.User, error) {
	if err := s.checkLinkPermission(actor, teacherID, "list_students"); err != nil {
		return nil, err
	}
	return s.repo.User().ListStudents(ctx, nil, teacherID)
}

func (s *userService) StudentResults(ctx context.Context, actor *models.User, studentID uint) ([]*AttemptResult, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		linked, err := s.repo.User().IsTeacherOf(ctx, nil, actor.ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("failed to check teacher link: %w", err)
		}
		if !linked {
			return nil, NewPermissionError(actor.ID, studentID, "user", "view_results", "student not linked to teacher")
		}
	default:
		return nil, NewPermissionError(actor.ID, studentID, "user", "view_results", "insufficient role")
	}

	attempts, _, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{UserID: &studentID})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	results := make([]*AttemptResult, 0, len(attempts))
	for _, attempt := range attempts {
		result, err := s.attempts.ResultFor(ctx, actor, attempt.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// checkLinkPermission allows admins to manage any teacher's roster and
// teachers to manage their own.
func (s *userService) checkLinkPermission(actor *models.User, teacherID uint, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsTeacher() && actor.ID == teacherID {
		return nil
	}
	return NewPermissionError(actor.ID, teacherID, "teacher_roster", action, "not the roster owner")
}
