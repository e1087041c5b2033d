package validator

import (
	"encoding/json"
	"fmt"

	"github.com/eduolymp/olympiad-service/internal/models"
)

// ValidateTaskPayload checks the type-specific payload contract at task
// create/update time, so the grader can rely on well-formed documents.
func ValidateTaskPayload(taskType models.TaskType, payload json.RawMessage) ValidationErrors {
	switch taskType {
	case models.TaskSingleChoice:
		return validateSingleChoicePayload(payload)
	case models.TaskMultiChoice:
		return validateMultiChoicePayload(payload)
	case models.TaskShortText:
		return validateShortTextPayload(payload)
	default:
		return ValidationErrors{{Field: "task_type", Message: fmt.Sprintf("unknown task type %q", taskType), Rule: "task_type"}}
	}
}

func validateSingleChoicePayload(raw json.RawMessage) ValidationErrors {
	var p models.SingleChoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payloadShapeError(err)
	}

	var errs ValidationErrors
	errs = append(errs, validateOptions(p.Options)...)
	if p.CorrectOptionID == "" {
		errs = append(errs, ValidationError{Field: "payload.correct_option_id", Message: "is required", Rule: "required"})
	} else if !optionExists(p.Options, p.CorrectOptionID) {
		errs = append(errs, ValidationError{Field: "payload.correct_option_id", Message: "must reference an option", Value: p.CorrectOptionID, Rule: "option_ref"})
	}
	return errs
}

func validateMultiChoicePayload(raw json.RawMessage) ValidationErrors {
	var p models.MultiChoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payloadShapeError(err)
	}

	var errs ValidationErrors
	errs = append(errs, validateOptions(p.Options)...)
	if len(p.CorrectOptionIDs) == 0 {
		errs = append(errs, ValidationError{Field: "payload.correct_option_ids", Message: "must not be empty", Rule: "min"})
	}
	seen := make(map[string]bool)
	for _, id := range p.CorrectOptionIDs {
		if seen[id] {
			errs = append(errs, ValidationError{Field: "payload.correct_option_ids", Message: fmt.Sprintf("duplicate option %q", id), Rule: "unique"})
			continue
		}
		seen[id] = true
		if !optionExists(p.Options, id) {
			errs = append(errs, ValidationError{Field: "payload.correct_option_ids", Message: fmt.Sprintf("unknown option %q", id), Rule: "option_ref"})
		}
	}
	return errs
}

func validateShortTextPayload(raw json.RawMessage) ValidationErrors {
	var p models.ShortTextPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payloadShapeError(err)
	}

	var errs ValidationErrors
	switch p.Subtype {
	case models.ShortTextInt:
		if !intPattern.MatchString(p.Expected) {
			errs = append(errs, ValidationError{Field: "payload.expected", Message: "must be an integer", Value: p.Expected, Rule: "int"})
		}
	case models.ShortTextFloat:
		if !floatPattern.MatchString(p.Expected) {
			errs = append(errs, ValidationError{Field: "payload.expected", Message: "must be a number", Value: p.Expected, Rule: "float"})
		}
		if p.Epsilon <= 0 {
			errs = append(errs, ValidationError{Field: "payload.epsilon", Message: "must be positive for float subtype", Value: p.Epsilon, Rule: "gt"})
		}
	case models.ShortTextText:
		if p.Expected == "" {
			errs = append(errs, ValidationError{Field: "payload.expected", Message: "is required", Rule: "required"})
		}
	default:
		errs = append(errs, ValidationError{Field: "payload.subtype", Message: "must be one of int, float, text", Value: string(p.Subtype), Rule: "oneof"})
	}
	return errs
}

func validateOptions(options []models.TaskOption) ValidationErrors {
	var errs ValidationErrors
	if len(options) < 2 {
		errs = append(errs, ValidationError{Field: "payload.options", Message: "must contain at least 2 options", Rule: "min"})
	}
	seen := make(map[string]bool)
	for _, opt := range options {
		if opt.ID == "" {
			errs = append(errs, ValidationError{Field: "payload.options", Message: "option id is required", Rule: "required"})
			continue
		}
		if seen[opt.ID] {
			errs = append(errs, ValidationError{Field: "payload.options", Message: fmt.Sprintf("duplicate option id %q", opt.ID), Rule: "unique"})
		}
		seen[opt.ID] = true
	}
	return errs
}

func payloadShapeError(err error) ValidationErrors {
	return ValidationErrors{{Field: "payload", Message: fmt.Sprintf("malformed document: %v", err), Rule: "json"}}
}
