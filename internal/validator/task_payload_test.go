package validator

import (
	"encoding/json"
	"testing"

	"github.com/eduolymp/olympiad-service/internal/models"
)

func TestValidateTaskPayload(t *testing.T) {
	tests := []struct {
		name     string
		taskType models.TaskType
		payload  string
		wantErrs int
	}{
		{
			name:     "single choice ok",
			taskType: models.TaskSingleChoice,
			payload:  `{"options":[{"id":"a","text":"3"},{"id":"b","text":"4"}],"correct_option_id":"b"}`,
		},
		{
			name:     "single choice too few options",
			taskType: models.TaskSingleChoice,
			payload:  `{"options":[{"id":"a","text":"3"}],"correct_option_id":"a"}`,
			wantErrs: 1,
		},
		{
			name:     "single choice dangling correct option",
			taskType: models.TaskSingleChoice,
			payload:  `{"options":[{"id":"a","text":""},{"id":"b","text":""}],"correct_option_id":"z"}`,
			wantErrs: 1,
		},
		{
			name:     "single choice duplicate option ids",
			taskType: models.TaskSingleChoice,
			payload:  `{"options":[{"id":"a","text":""},{"id":"a","text":""}],"correct_option_id":"a"}`,
			wantErrs: 1,
		},
		{
			name:     "multi choice ok",
			taskType: models.TaskMultiChoice,
			payload:  `{"options":[{"id":"a","text":""},{"id":"b","text":""}],"correct_option_ids":["a","b"]}`,
		},
		{
			name:     "multi choice empty correct set",
			taskType: models.TaskMultiChoice,
			payload:  `{"options":[{"id":"a","text":""},{"id":"b","text":""}],"correct_option_ids":[]}`,
			wantErrs: 1,
		},
		{
			name:     "multi choice duplicate correct id",
			taskType: models.TaskMultiChoice,
			payload:  `{"options":[{"id":"a","text":""},{"id":"b","text":""}],"correct_option_ids":["a","a"]}`,
			wantErrs: 1,
		},
		{
			name:     "short text int ok",
			taskType: models.TaskShortText,
			payload:  `{"subtype":"int","expected":"42"}`,
		},
		{
			name:     "short text int with non-integer expected",
			taskType: models.TaskShortText,
			payload:  `{"subtype":"int","expected":"4.2"}`,
			wantErrs: 1,
		},
		{
			name:     "short text float requires positive epsilon",
			taskType: models.TaskShortText,
			payload:  `{"subtype":"float","expected":"3.14"}`,
			wantErrs: 1,
		},
		{
			name:     "short text float ok",
			taskType: models.TaskShortText,
			payload:  `{"subtype":"float","expected":"3,14","epsilon":0.01}`,
		},
		{
			name:     "short text unknown subtype",
			taskType: models.TaskShortText,
			payload:  `{"subtype":"essay","expected":"x"}`,
			wantErrs: 1,
		},
		{
			name:     "malformed document",
			taskType: models.TaskSingleChoice,
			payload:  `{"options":`,
			wantErrs: 1,
		},
		{
			name:     "unknown task type",
			taskType: models.TaskType("matching"),
			payload:  `{}`,
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateTaskPayload(tt.taskType, json.RawMessage(tt.payload))
			if len(errs) != tt.wantErrs {
				t.Errorf("ValidateTaskPayload() = %d errors (%v), want %d", len(errs), errs, tt.wantErrs)
			}
		})
	}
}

func TestValidatorDomainRules(t *testing.T) {
	v := New()

	if err := v.Validate(&StartAttemptRequest{OlympiadID: 1}); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if err := v.Validate(&StartAttemptRequest{}); err == nil {
		t.Error("zero olympiad_id must be rejected")
	}

	if err := v.Validate(&UpdateUserRoleRequest{Role: "teacher"}); err != nil {
		t.Errorf("valid role rejected: %v", err)
	}
	if err := v.Validate(&UpdateUserRoleRequest{Role: "superuser"}); err == nil {
		t.Error("unknown role must be rejected")
	}

	type ageGroupProbe struct {
		AgeGroup string `validate:"age_group"`
	}
	for _, valid := range []string{"7-8", "1,2,5", "1-3,5"} {
		if err := v.Validate(&ageGroupProbe{AgeGroup: valid}); err != nil {
			t.Errorf("age group %q rejected: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "0-3", "9", "8-7", "abc"} {
		if err := v.Validate(&ageGroupProbe{AgeGroup: invalid}); err == nil {
			t.Errorf("age group %q must be rejected", invalid)
		}
	}
}
