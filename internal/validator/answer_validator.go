package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/eduolymp/olympiad-service/internal/models"
)

// ErrInvalidAnswerPayload is the single rejection kind for answers that do
// not match the task's option set or subtype. The grader never sees a
// payload this validator did not accept.
var ErrInvalidAnswerPayload = errors.New("invalid answer payload")

var (
	intPattern   = regexp.MustCompile(`^-?\d+$`)
	floatPattern = regexp.MustCompile(`^-?\d+([.,]\d+)?$`)
)

// NormalizeAnswer validates a raw answer against the task payload and
// returns the canonical form stored verbatim. Accepted values are fixed
// points: re-normalizing the output yields the same bytes.
func NormalizeAnswer(taskType models.TaskType, taskPayload []byte, raw json.RawMessage) (json.RawMessage, error) {
	switch taskType {
	case models.TaskSingleChoice:
		return normalizeSingleChoice(taskPayload, raw)
	case models.TaskMultiChoice:
		return normalizeMultiChoice(taskPayload, raw)
	case models.TaskShortText:
		return normalizeShortText(taskPayload, raw)
	default:
		return nil, fmt.Errorf("%w: unknown task type %q", ErrInvalidAnswerPayload, taskType)
	}
}

func normalizeSingleChoice(taskPayload []byte, raw json.RawMessage) (json.RawMessage, error) {
	var payload models.SingleChoicePayload
	if err := json.Unmarshal(taskPayload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode task payload: %w", err)
	}

	var answer models.SingleChoiceAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("%w: expected {choice_id}", ErrInvalidAnswerPayload)
	}
	if answer.ChoiceID == "" {
		return nil, fmt.Errorf("%w: choice_id is required", ErrInvalidAnswerPayload)
	}
	if !optionExists(payload.Options, answer.ChoiceID) {
		return nil, fmt.Errorf("%w: unknown option %q", ErrInvalidAnswerPayload, answer.ChoiceID)
	}

	return json.Marshal(answer)
}

func normalizeMultiChoice(taskPayload []byte, raw json.RawMessage) (json.RawMessage, error) {
	var payload models.MultiChoicePayload
	if err := json.Unmarshal(taskPayload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode task payload: %w", err)
	}

	var answer models.MultiChoiceAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("%w: expected {choice_ids}", ErrInvalidAnswerPayload)
	}
	if len(answer.ChoiceIDs) == 0 {
		return nil, fmt.Errorf("%w: choice_ids must not be empty", ErrInvalidAnswerPayload)
	}

	seen := make(map[string]bool, len(answer.ChoiceIDs))
	for _, id := range answer.ChoiceIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate option %q", ErrInvalidAnswerPayload, id)
		}
		seen[id] = true
		if !optionExists(payload.Options, id) {
			return nil, fmt.Errorf("%w: unknown option %q", ErrInvalidAnswerPayload, id)
		}
	}

	// Canonical order keeps re-validation a no-op and makes stored answers
	// comparable.
	sort.Strings(answer.ChoiceIDs)
	return json.Marshal(answer)
}

func normalizeShortText(taskPayload []byte, raw json.RawMessage) (json.RawMessage, error) {
	var payload models.ShortTextPayload
	if err := json.Unmarshal(taskPayload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode task payload: %w", err)
	}

	var answer models.ShortTextAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("%w: expected {text}", ErrInvalidAnswerPayload)
	}

	answer.Text = strings.TrimSpace(answer.Text)
	if answer.Text == "" {
		return nil, fmt.Errorf("%w: text must not be empty", ErrInvalidAnswerPayload)
	}

	switch payload.Subtype {
	case models.ShortTextInt:
		if !intPattern.MatchString(answer.Text) {
			return nil, fmt.Errorf("%w: expected an integer", ErrInvalidAnswerPayload)
		}
	case models.ShortTextFloat:
		if !floatPattern.MatchString(answer.Text) {
			return nil, fmt.Errorf("%w: expected a number", ErrInvalidAnswerPayload)
		}
	case models.ShortTextText:
		// Free text, any non-empty value is acceptable.
	default:
		return nil, fmt.Errorf("failed to decode task payload: unknown subtype %q", payload.Subtype)
	}

	return json.Marshal(answer)
}

func optionExists(options []models.TaskOption, id string) bool {
	for _, opt := range options {
		if opt.ID == id {
			return true
		}
	}
	return false
}
