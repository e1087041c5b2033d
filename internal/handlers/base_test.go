package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

func discardLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "permission", err: services.NewPermissionError(1, 2, "attempt", "view", "not owned"), wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "validation", err: validator.ValidationErrors{{Field: "title", Message: "is required", Rule: "required"}}, wantStatus: http.StatusUnprocessableEntity, wantCode: "validation_error"},
		{name: "invalid answer", err: validator.ErrInvalidAnswerPayload, wantStatus: http.StatusUnprocessableEntity, wantCode: "invalid_answer_payload"},
		{name: "olympiad not found", err: services.ErrOlympiadNotFound, wantStatus: http.StatusNotFound, wantCode: "olympiad_not_found"},
		{name: "attempt not found", err: services.ErrAttemptNotFound, wantStatus: http.StatusNotFound, wantCode: "attempt_not_found"},
		{name: "not published", err: services.ErrOlympiadNotPublished, wantStatus: http.StatusConflict, wantCode: "olympiad_not_published"},
		{name: "email not verified", err: services.ErrEmailNotVerified, wantStatus: http.StatusConflict, wantCode: "email_not_verified"},
		{name: "window closed", err: services.ErrOlympiadNotAvailable, wantStatus: http.StatusConflict, wantCode: "olympiad_not_available"},
		{name: "age group", err: services.ErrOlympiadAgeGroupMismatch, wantStatus: http.StatusConflict, wantCode: "olympiad_age_group_mismatch"},
		{name: "no tasks", err: services.ErrOlympiadHasNoTasks, wantStatus: http.StatusConflict, wantCode: "olympiad_has_no_tasks"},
		{name: "attempt expired", err: services.ErrAttemptExpired, wantStatus: http.StatusConflict, wantCode: "attempt_expired"},
		{name: "attempt not active", err: services.ErrAttemptNotActive, wantStatus: http.StatusConflict, wantCode: "attempt_not_active"},
		{name: "rate limited", err: services.ErrRateLimited, wantStatus: http.StatusTooManyRequests, wantCode: "rate_limited"},
		{name: "business rule", err: &services.BusinessRuleError{Rule: "published_rules_frozen", Err: services.ErrOlympiadPublished}, wantStatus: http.StatusConflict, wantCode: "olympiad_published"},
		{name: "wrapped sentinel", err: errors.Join(errors.New("ctx"), services.ErrTaskNotFound), wantStatus: http.StatusNotFound, wantCode: "task_not_found"},
		{name: "unknown error", err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set("request_id", "req-123")

			h := NewBaseHandler(discardLogger())
			h.handleServiceError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
			if resp.RequestID != "req-123" {
				t.Errorf("request_id = %q, want propagated id", resp.RequestID)
			}
		})
	}
}

func TestParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBaseHandler(discardLogger())

	tests := []struct {
		name  string
		value string
		want  uint
	}{
		{name: "valid", value: "42", want: 42},
		{name: "zero rejected", value: "0", want: 0},
		{name: "negative rejected", value: "-1", want: 0},
		{name: "not a number", value: "abc", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Params = gin.Params{{Key: "id", Value: tt.value}}

			if got := h.parseIDParam(c, "id"); got != tt.want {
				t.Errorf("parseIDParam() = %d, want %d", got, tt.want)
			}
			if tt.want == 0 && w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 for invalid id", w.Code)
			}
		})
	}
}
