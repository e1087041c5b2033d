package services

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/eduolymp/olympiad-service/internal/models"
)

// Grade decides whether a stored answer is correct for its task. Pure and
// total: a missing or unparseable answer grades incorrect, never errors.
// Answers reach here already normalized, so shape failures mean the task
// payload changed after the answer was stored.
func Grade(taskType models.TaskType, taskPayload []byte, answer json.RawMessage) bool {
	if len(answer) == 0 {
		return false
	}

	switch taskType {
	case models.TaskSingleChoice:
		return gradeSingleChoice(taskPayload, answer)
	case models.TaskMultiChoice:
		return gradeMultiChoice(taskPayload, answer)
	case models.TaskShortText:
		return gradeShortText(taskPayload, answer)
	default:
		return false
	}
}

func gradeSingleChoice(taskPayload []byte, answer json.RawMessage) bool {
	var payload models.SingleChoicePayload
	if err := json.Unmarshal(taskPayload, &payload); err != nil {
		return false
	}
	var got models.SingleChoiceAnswer
	if err := json.Unmarshal(answer, &got); err != nil {
		return false
	}
	return got.ChoiceID == payload.CorrectOptionID
}

func gradeMultiChoice(taskPayload []byte, answer json.RawMessage) bool {
	var payload models.MultiChoicePayload
	if err := json.Unmarshal(taskPayload, &payload); err != nil {
		return false
	}
	var got models.MultiChoiceAnswer
	if err := json.Unmarshal(answer, &got); err != nil {
		return false
	}

	// Set equality, order-insensitive.
	if len(got.ChoiceIDs) != len(payload.CorrectOptionIDs) {
		return false
	}
	correct := make(map[string]bool, len(payload.CorrectOptionIDs))
	for _, id := range payload.CorrectOptionIDs {
		correct[id] = true
	}
	for _, id := range got.ChoiceIDs {
		if !correct[id] {
			return false
		}
	}
	return true
}

func gradeShortText(taskPayload []byte, answer json.RawMessage) bool {
	var payload models.ShortTextPayload
	if err := json.Unmarshal(taskPayload, &payload); err != nil {
		return false
	}
	var got models.ShortTextAnswer
	if err := json.Unmarshal(answer, &got); err != nil {
		return false
	}

	switch payload.Subtype {
	case models.ShortTextInt:
		expected, err1 := strconv.ParseInt(strings.TrimSpace(payload.Expected), 10, 64)
		actual, err2 := strconv.ParseInt(strings.TrimSpace(got.Text), 10, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		return expected == actual

	case models.ShortTextFloat:
		expected, err1 := parseDecimal(payload.Expected)
		actual, err2 := parseDecimal(got.Text)
		if err1 != nil || err2 != nil {
			return false
		}
		diff := expected - actual
		if diff < 0 {
			diff = -diff
		}
		return diff <= payload.Epsilon

	case models.ShortTextText:
		return textEqual(&payload, payload.Expected, got.Text)

	default:
		return false
	}
}

// parseDecimal accepts both comma and dot as the decimal separator.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

func textEqual(payload *models.ShortTextPayload, expected, got string) bool {
	if payload.ShouldCollapseSpaces() {
		expected = collapseSpaces(expected)
		got = collapseSpaces(got)
	}
	if payload.IsCaseInsensitive() {
		return strings.EqualFold(expected, got)
	}
	return expected == got
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
