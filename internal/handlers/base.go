package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

// ErrorResponse is the single error envelope every endpoint returns.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...interface{}) {
	h.log(c).Info(msg, args...)
}

// log prefers the request-scoped logger, falling back to the handler's own.
func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	if l := utils.LoggerFromContext(c.Request.Context()); l != nil {
		return l
	}
	return h.logger
}

// respondError writes the error envelope with the request id attached.
func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Error:     ErrorBody{Code: code, Message: message, Details: details},
		RequestID: c.GetString("request_id"),
	})
}

// parseIDParam reads a positive integer path parameter; on failure it writes
// the error response and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid_id", "invalid "+name+" parameter", nil)
		return 0
	}
	return uint(id)
}

// currentUser returns the authenticated user set by the auth middleware.
func currentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		respondError(c, http.StatusUnauthorized, "missing_token", "authentication required", nil)
		return nil, false
	}
	user, ok := value.(*models.User)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing_token", "authentication required", nil)
		return nil, false
	}
	return user, true
}

// handleServiceError maps service errors onto the taxonomy: specific codes
// for domain preconditions, generic internal_error for everything else.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		respondError(c, http.StatusForbidden, "forbidden", "access denied", nil)
		return
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		respondError(c, http.StatusUnprocessableEntity, "validation_error", "request validation failed", validationErrs)
		return
	}

	if errors.Is(err, validator.ErrInvalidAnswerPayload) {
		respondError(c, http.StatusUnprocessableEntity, "invalid_answer_payload", err.Error(), nil)
		return
	}

	switch {
	case errors.Is(err, services.ErrOlympiadNotFound):
		respondError(c, http.StatusNotFound, "olympiad_not_found", "olympiad not found", nil)
	case errors.Is(err, services.ErrAttemptNotFound):
		respondError(c, http.StatusNotFound, "attempt_not_found", "attempt not found", nil)
	case errors.Is(err, services.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "task_not_found", "task not found", nil)
	case errors.Is(err, services.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "user_not_found", "user not found", nil)

	case errors.Is(err, services.ErrOlympiadNotPublished):
		respondError(c, http.StatusConflict, "olympiad_not_published", "olympiad is not published", nil)
	case errors.Is(err, services.ErrEmailNotVerified):
		respondError(c, http.StatusConflict, "email_not_verified", "email address is not verified", nil)
	case errors.Is(err, services.ErrOlympiadNotAvailable):
		respondError(c, http.StatusConflict, "olympiad_not_available", "olympiad is outside its availability window", nil)
	case errors.Is(err, services.ErrOlympiadAgeGroupMismatch):
		respondError(c, http.StatusConflict, "olympiad_age_group_mismatch", "class grade is outside the olympiad age group", nil)
	case errors.Is(err, services.ErrOlympiadHasNoTasks):
		respondError(c, http.StatusConflict, "olympiad_has_no_tasks", "olympiad has no tasks", nil)

	case errors.Is(err, services.ErrAttemptNotActive):
		respondError(c, http.StatusConflict, "attempt_not_active", "attempt is not active", nil)
	case errors.Is(err, services.ErrAttemptExpired):
		respondError(c, http.StatusConflict, "attempt_expired", "attempt deadline has passed", nil)

	case errors.Is(err, services.ErrOlympiadPublished):
		respondError(c, http.StatusConflict, "olympiad_published", "published olympiad rules are frozen", nil)
	case errors.Is(err, services.ErrOlympiadHasAttempts):
		respondError(c, http.StatusConflict, "olympiad_has_attempts", "olympiad is referenced by attempts", nil)
	case errors.Is(err, services.ErrTaskInUse):
		respondError(c, http.StatusConflict, "task_in_use", "task is attached to an olympiad", nil)
	case errors.Is(err, services.ErrTaskAlreadyAttached):
		respondError(c, http.StatusConflict, "task_already_attached", "task is already attached", nil)

	case errors.Is(err, services.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)

	default:
		var ruleErr *services.BusinessRuleError
		if errors.As(err, &ruleErr) {
			respondError(c, http.StatusConflict, "business_rule_violation", ruleErr.Error(), nil)
			return
		}
		h.log(c).Error("unhandled service error", "error", err)
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
