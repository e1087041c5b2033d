package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eduolymp/olympiad-service/internal/events"
	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
)

// getOlympiadMeta reads olympiad metadata through the cache; a cache-layer
// failure falls back to the store inside the cache helper.
func (s *attemptService) getOlympiadMeta(ctx context.Context, olympiadID uint) (*models.Olympiad, error) {
	olympiad, err := s.cache.MetaOrFetch(ctx, olympiadID, func() (*models.Olympiad, error) {
		return s.repo.Olympiad().GetByID(ctx, nil, olympiadID)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrOlympiadNotFound
		}
		return nil, fmt.Errorf("failed to get olympiad: %w", err)
	}
	return olympiad, nil
}

func (s *attemptService) getOlympiadTasks(ctx context.Context, olympiadID uint) ([]*models.OlympiadTask, error) {
	tasks, err := s.cache.TasksOrFetch(ctx, olympiadID, func() ([]*models.OlympiadTask, error) {
		return s.repo.OlympiadTask().GetByOlympiad(ctx, nil, olympiadID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get olympiad tasks: %w", err)
	}
	return tasks, nil
}

// getOwnedAttempt loads the attempt and enforces student ownership.
func (s *attemptService) getOwnedAttempt(ctx context.Context, userID, attemptID uint, action string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", action, "not owned by user")
	}
	return attempt, nil
}

// findAttemptTask locates one task of the attempt's olympiad, via the cache.
func (s *attemptService) findAttemptTask(ctx context.Context, olympiadID, taskID uint) *models.OlympiadTask {
	tasks, err := s.getOlympiadTasks(ctx, olympiadID)
	if err != nil {
		return nil
	}
	for _, row := range tasks {
		if row.TaskID == taskID {
			return row
		}
	}
	return nil
}

// gradeAndFinalize computes the full grade set against the authoritative
// task list from the store (never the cache) and writes the terminal row
// atomically. Mutates attempt in place.
func (s *attemptService) gradeAndFinalize(ctx context.Context, attempt *models.Attempt, status models.AttemptStatus) error {
	tasks, err := s.repo.OlympiadTask().GetByOlympiad(ctx, nil, attempt.OlympiadID)
	if err != nil {
		return fmt.Errorf("failed to get task list for grading: %w", err)
	}
	olympiad, err := s.repo.Olympiad().GetByID(ctx, nil, attempt.OlympiadID)
	if err != nil {
		return fmt.Errorf("failed to get olympiad for grading: %w", err)
	}
	answerRows, err := s.repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to get answers for grading: %w", err)
	}

	answers := make(map[uint]json.RawMessage, len(answerRows))
	for _, row := range answerRows {
		answers[row.TaskID] = json.RawMessage(row.Answer)
	}

	grades := make([]repositories.GradeRow, 0, len(tasks))
	scoreTotal, scoreMax := 0, 0
	for _, row := range tasks {
		correct := Grade(row.Task.Type, row.Task.Payload, answers[row.TaskID])
		score := 0
		if correct {
			score = row.MaxScore
		}
		grades = append(grades, repositories.GradeRow{
			TaskID:    row.TaskID,
			IsCorrect: correct,
			Score:     score,
			MaxScore:  row.MaxScore,
		})
		scoreTotal += score
		scoreMax += row.MaxScore
	}

	now := s.now()
	attempt.Status = status
	attempt.ScoreTotal = scoreTotal
	attempt.ScoreMax = scoreMax
	attempt.Passed = scoreTotal >= passThreshold(scoreMax, olympiad.PassPercent)
	attempt.GradedAt = &now

	if err := s.repo.Attempt().MarkTerminalWithGrades(ctx, nil, attempt, grades); err != nil {
		return fmt.Errorf("failed to write grade set: %w", err)
	}
	return nil
}

// passThreshold is ceil(scoreMax * passPercent / 100).
func passThreshold(scoreMax, passPercent int) int {
	return (scoreMax*passPercent + 99) / 100
}

// needsGrading reports whether the attempt's grade record is still owed:
// either the deadline passed while active, or it went expired without one.
func needsGrading(attempt *models.Attempt, now time.Time) bool {
	if attempt.Status == models.AttemptActive {
		return attempt.DeadlinePassed(now)
	}
	return attempt.Status == models.AttemptExpired && attempt.GradedAt == nil
}

func (s *attemptService) buildResult(ctx context.Context, attempt *models.Attempt) (*AttemptResult, error) {
	olympiad, err := s.getOlympiadMeta(ctx, attempt.OlympiadID)
	if err != nil {
		return nil, err
	}

	percent := 0
	if attempt.ScoreMax > 0 {
		percent = (attempt.ScoreTotal*100 + attempt.ScoreMax/2) / attempt.ScoreMax
	}

	return &AttemptResult{
		AttemptID:       attempt.ID,
		OlympiadID:      attempt.OlympiadID,
		OlympiadTitle:   olympiad.Title,
		Status:          attempt.Status,
		ScoreTotal:      attempt.ScoreTotal,
		ScoreMax:        attempt.ScoreMax,
		Percent:         percent,
		Passed:          attempt.Passed,
		GradedAt:        attempt.GradedAt,
		ResultsReleased: olympiad.ResultsReleased,
	}, nil
}

func (s *attemptService) emitAttemptEvent(ctx context.Context, name string, attempt *models.Attempt) {
	event := events.AttemptEvent{
		AttemptID:  attempt.ID,
		OlympiadID: attempt.OlympiadID,
		UserID:     attempt.UserID,
		Status:     string(attempt.Status),
		ScoreTotal: attempt.ScoreTotal,
		ScoreMax:   attempt.ScoreMax,
		Passed:     attempt.Passed,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, name, event); err != nil {
		s.logger.Warn("failed to publish attempt event", "event", name, "attempt_id", attempt.ID, "error", err)
	}
}

// buildAttemptView assembles the student-facing read model with sanitized
// task payloads.
func buildAttemptView(attempt *models.Attempt, olympiad *models.Olympiad, tasks []*models.OlympiadTask, answerRows []*models.AttemptAnswer) (*AttemptView, error) {
	viewTasks := make([]TaskForAttempt, 0, len(tasks))
	for _, row := range tasks {
		sanitized, err := SanitizeTaskPayload(row.Task.Type, row.Task.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to sanitize payload for task %d: %w", row.TaskID, err)
		}
		viewTasks = append(viewTasks, TaskForAttempt{
			TaskID:    row.TaskID,
			SortOrder: row.SortOrder,
			MaxScore:  row.MaxScore,
			Subject:   row.Task.Subject,
			Title:     row.Task.Title,
			Content:   row.Task.Content,
			Type:      row.Task.Type,
			ImageKey:  row.Task.ImageKey,
			Payload:   sanitized,
		})
	}

	answers := make(map[uint]json.RawMessage, len(answerRows))
	for _, row := range answerRows {
		answers[row.TaskID] = json.RawMessage(row.Answer)
	}

	return &AttemptView{
		Attempt:       attempt,
		OlympiadTitle: olympiad.Title,
		Tasks:         viewTasks,
		Answers:       answers,
	}, nil
}

// SanitizeTaskPayload strips everything that gives the answer away: choice
// tasks lose the correct-option fields, short-text keeps only the subtype.
func SanitizeTaskPayload(taskType models.TaskType, payload []byte) (json.RawMessage, error) {
	switch taskType {
	case models.TaskSingleChoice:
		var p models.SingleChoicePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"options": p.Options})

	case models.TaskMultiChoice:
		var p models.MultiChoicePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"options": p.Options})

	case models.TaskShortText:
		var p models.ShortTextPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"subtype": p.Subtype})

	default:
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
}
