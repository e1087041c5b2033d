package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eduolymp/olympiad-service/internal/models"
)

// Validator wraps go-playground/validator with the platform's domain rules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// age_group: canonical set of class grades, e.g. "7-8" or "1,2,5".
	v.RegisterValidation("age_group", func(fl validator.FieldLevel) bool {
		_, err := models.ParseAgeGroup(fl.Field().String())
		return err == nil
	})

	// task_type: closed variant tag.
	v.RegisterValidation("task_type", func(fl validator.FieldLevel) bool {
		switch models.TaskType(fl.Field().String()) {
		case models.TaskSingleChoice, models.TaskMultiChoice, models.TaskShortText:
			return true
		}
		return false
	})

	// future_or_now: timestamp must not be in the past beyond clock skew.
	v.RegisterValidation("future_or_now", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return t.After(time.Now().UTC().Add(-time.Minute))
	})

	return &Validator{validate: v}
}

// Validate runs struct-tag validation and converts failures into
// ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidationError is one rejected field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return strings.Join(msgs, "; ")
}

// ToValidationErrors converts validator.ValidationErrors into the exported
// shape.
func ToValidationErrors(err error) ValidationErrors {
	var out ValidationErrors
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: messageForTag(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
		return out
	}
	return ValidationErrors{{Field: "", Message: err.Error(), Rule: "struct"}}
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "age_group":
		return "must be a set of class grades between 1 and 8, e.g. \"7-8\""
	case "task_type":
		return "must be one of single_choice, multi_choice, short_text"
	case "future_or_now":
		return "must not be in the past"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed rule %q", fe.Tag())
	}
}
