package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduolymp/olympiad-service/internal/cache"
	"github.com/eduolymp/olympiad-service/internal/events"
	"github.com/eduolymp/olympiad-service/internal/locks"
	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/ratelimit"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/validator"
	"gorm.io/datatypes"
)

type attemptService struct {
	repo      repositories.Repository
	cache     *cache.OlympiadCache
	lock      *locks.SubmitLock
	limiter   *ratelimit.TokenBucket
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator

	// now is swapped out by tests.
	now func() time.Time
}

func NewAttemptService(
	repo repositories.Repository,
	olympiadCache *cache.OlympiadCache,
	lock *locks.SubmitLock,
	limiter *ratelimit.TokenBucket,
	publisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
) AttemptService {
	return &attemptService{
		repo:      repo,
		cache:     olympiadCache,
		lock:      lock,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		validator: v,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ===== START =====

func (s *attemptService) Start(ctx context.Context, userID uint, req *StartAttemptRequest) (*models.Attempt, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	olympiad, err := s.getOlympiadMeta(ctx, req.OlympiadID)
	if err != nil {
		return nil, err
	}
	if !olympiad.IsPublished {
		return nil, ErrOlympiadNotPublished
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	// An existing attempt short-circuits the remaining preconditions: the
	// student already holds their single attempt for this olympiad.
	existing, err := s.repo.Attempt().GetByOlympiadAndUser(ctx, nil, olympiad.ID, userID)
	if err == nil {
		return existing, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up attempt: %w", err)
	}

	now := s.now()
	if !olympiad.IsOpenAt(now) {
		return nil, ErrOlympiadNotAvailable
	}
	if user.ClassGrade == nil || !olympiad.AgeGroup.Contains(*user.ClassGrade) {
		return nil, ErrOlympiadAgeGroupMismatch
	}

	tasks, err := s.getOlympiadTasks(ctx, olympiad.ID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrOlympiadHasNoTasks
	}

	deadline := now.Add(time.Duration(olympiad.DurationSec) * time.Second)
	if deadline.After(olympiad.AvailableTo) {
		deadline = olympiad.AvailableTo
	}

	attempt := &models.Attempt{
		OlympiadID:  olympiad.ID,
		UserID:      userID,
		Status:      models.AttemptActive,
		StartedAt:   now,
		DeadlineAt:  deadline,
		DurationSec: olympiad.DurationSec,
	}

	attempt, created, err := s.repo.Attempt().CreateIdempotent(ctx, nil, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	if created {
		s.logger.Info("attempt started",
			"attempt_id", attempt.ID,
			"olympiad_id", olympiad.ID,
			"user_id", userID,
			"deadline_at", attempt.DeadlineAt)
		s.emitAttemptEvent(ctx, events.EventAttemptStarted, attempt)
	}

	return attempt, nil
}

// ===== VIEW =====

func (s *attemptService) View(ctx context.Context, userID uint, attemptID uint) (*AttemptView, error) {
	attempt, err := s.getOwnedAttempt(ctx, userID, attemptID, "view")
	if err != nil {
		return nil, err
	}

	// Lazy expiry: flip the status so the student sees the truth, but leave
	// grading to submit or the reconciler. Read paths stay cheap.
	if attempt.Status == models.AttemptActive && attempt.DeadlinePassed(s.now()) {
		flipped, err := s.repo.Attempt().UpdateStatusIfActive(ctx, nil, attempt.ID, models.AttemptExpired)
		if err != nil {
			return nil, fmt.Errorf("failed to expire attempt: %w", err)
		}
		if flipped {
			attempt.Status = models.AttemptExpired
			s.emitAttemptEvent(ctx, events.EventAttemptExpired, attempt)
		} else {
			// A concurrent submit finalized the attempt first; report the
			// status it settled on.
			attempt, err = s.repo.Attempt().GetByID(ctx, nil, attempt.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to re-read attempt: %w", err)
			}
		}
	}

	olympiad, err := s.getOlympiadMeta(ctx, attempt.OlympiadID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.getOlympiadTasks(ctx, attempt.OlympiadID)
	if err != nil {
		return nil, err
	}
	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}

	return buildAttemptView(attempt, olympiad, tasks, answers)
}

// ===== UPSERT ANSWER =====

func (s *attemptService) UpsertAnswer(ctx context.Context, userID uint, attemptID uint, req *UpsertAnswerRequest) (*UpsertAnswerOutcome, error) {
	// Metering happens before any database work.
	decision := s.limiter.Allow(ctx, fmt.Sprintf("%d:%d", userID, attemptID))
	outcome := &UpsertAnswerOutcome{RateLimit: decision}
	if !decision.Allowed {
		return outcome, ErrRateLimited
	}

	if err := s.validator.Validate(req); err != nil {
		return outcome, err
	}

	attempt, err := s.getOwnedAttempt(ctx, userID, attemptID, "answer")
	if err != nil {
		return outcome, err
	}
	if attempt.Status != models.AttemptActive {
		return outcome, ErrAttemptNotActive
	}

	now := s.now()
	if attempt.DeadlinePassed(now) {
		if _, err := s.repo.Attempt().UpdateStatusIfActive(ctx, nil, attempt.ID, models.AttemptExpired); err != nil {
			s.logger.Error("failed to expire attempt on late answer", "attempt_id", attempt.ID, "error", err)
		} else {
			s.emitAttemptEvent(ctx, events.EventAttemptExpired, attempt)
		}
		return outcome, ErrAttemptExpired
	}

	task := s.findAttemptTask(ctx, attempt.OlympiadID, req.TaskID)
	if task == nil {
		return outcome, ErrTaskNotFound
	}

	normalized, err := validator.NormalizeAnswer(task.Task.Type, task.Task.Payload, req.Answer)
	if err != nil {
		return outcome, err
	}

	if err := s.repo.Attempt().UpsertAnswer(ctx, nil, attempt.ID, req.TaskID, datatypes.JSON(normalized), now); err != nil {
		return outcome, fmt.Errorf("failed to upsert answer: %w", err)
	}
	return outcome, nil
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, userID uint, attemptID uint) (models.AttemptStatus, error) {
	attempt, err := s.getOwnedAttempt(ctx, userID, attemptID, "submit")
	if err != nil {
		return "", err
	}
	if attempt.Status.IsTerminal() {
		return attempt.Status, nil
	}

	token, err := s.lock.Acquire(ctx, attempt.ID)
	if errors.Is(err, locks.ErrLockHeld) {
		// Someone else is finalizing this attempt. Report whatever state
		// they left behind.
		fresh, err := s.repo.Attempt().GetByID(ctx, nil, attempt.ID)
		if err != nil {
			return "", fmt.Errorf("failed to re-read attempt: %w", err)
		}
		return fresh.Status, nil
	}
	if err != nil {
		return "", err
	}
	defer func() {
		if err := s.lock.Release(ctx, attempt.ID, token); err != nil {
			s.logger.Warn("failed to release submit lock", "attempt_id", attempt.ID, "error", err)
		}
	}()

	// Re-read under the lock; a concurrent submitter may have won the race
	// before we acquired it.
	attempt, err = s.repo.Attempt().GetByID(ctx, nil, attempt.ID)
	if err != nil {
		return "", fmt.Errorf("failed to re-read attempt: %w", err)
	}
	if attempt.Status.IsTerminal() {
		return attempt.Status, nil
	}

	status := models.AttemptSubmitted
	if attempt.DeadlinePassed(s.now()) {
		status = models.AttemptExpired
	}

	if err := s.gradeAndFinalize(ctx, attempt, status); err != nil {
		return "", err
	}

	s.logger.Info("attempt finalized",
		"attempt_id", attempt.ID,
		"status", attempt.Status,
		"score_total", attempt.ScoreTotal,
		"score_max", attempt.ScoreMax,
		"passed", attempt.Passed)
	s.emitAttemptEvent(ctx, events.EventAttemptSubmitted, attempt)

	return attempt.Status, nil
}

// ===== RESULTS =====

func (s *attemptService) Result(ctx context.Context, userID uint, attemptID uint) (*AttemptResult, error) {
	attempt, err := s.getOwnedAttempt(ctx, userID, attemptID, "result")
	if err != nil {
		return nil, err
	}
	return s.buildResult(ctx, attempt)
}

func (s *attemptService) Results(ctx context.Context, userID uint) ([]*AttemptResult, error) {
	attempts, _, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	results := make([]*AttemptResult, 0, len(attempts))
	for _, attempt := range attempts {
		result, err := s.buildResult(ctx, attempt)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *attemptService) ResultFor(ctx context.Context, viewer *models.User, attemptID uint) (*AttemptResult, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	switch {
	case viewer.IsAdmin():
	case viewer.IsTeacher():
		linked, err := s.repo.User().IsTeacherOf(ctx, nil, viewer.ID, attempt.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check teacher link: %w", err)
		}
		if !linked {
			return nil, NewPermissionError(viewer.ID, attemptID, "attempt", "view_result", "student not linked to teacher")
		}
	default:
		return nil, NewPermissionError(viewer.ID, attemptID, "attempt", "view_result", "insufficient role")
	}

	// Settle any grade debt left by lazy expiry before reporting.
	if needsGrading(attempt, s.now()) {
		if err := s.GradeExpired(ctx, attempt.ID); err != nil {
			return nil, err
		}
		attempt, err = s.repo.Attempt().GetByID(ctx, nil, attemptID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read attempt: %w", err)
		}
	}

	return s.buildResult(ctx, attempt)
}

// GradeExpired finalizes an attempt that went past its deadline without a
// grade record. Safe to call concurrently with submit: the terminal check
// under the lock makes the late writer a no-op.
func (s *attemptService) GradeExpired(ctx context.Context, attemptID uint) error {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if !needsGrading(attempt, s.now()) {
		return nil
	}

	token, err := s.lock.Acquire(ctx, attempt.ID)
	if errors.Is(err, locks.ErrLockHeld) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Release(ctx, attempt.ID, token); err != nil {
			s.logger.Warn("failed to release submit lock", "attempt_id", attempt.ID, "error", err)
		}
	}()

	attempt, err = s.repo.Attempt().GetByID(ctx, nil, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to re-read attempt: %w", err)
	}
	if !needsGrading(attempt, s.now()) {
		return nil
	}

	if err := s.gradeAndFinalize(ctx, attempt, models.AttemptExpired); err != nil {
		return err
	}

	s.logger.Info("expired attempt graded",
		"attempt_id", attempt.ID,
		"score_total", attempt.ScoreTotal,
		"score_max", attempt.ScoreMax)
	s.emitAttemptEvent(ctx, events.EventAttemptSubmitted, attempt)
	return nil
}
