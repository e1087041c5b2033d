package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(attemptService services.AttemptService, v *validator.Validator, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      v,
	}
}

// StartAttempt starts (or idempotently returns) the caller's attempt.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	h.LogRequest(c, "starting attempt", "olympiad_id", req.OlympiadID, "user_id", user.ID)

	attempt, err := h.attemptService.Start(c.Request.Context(), user.ID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// GetAttempt returns the attempt view with sanitized tasks and answers.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	view, err := h.attemptService.View(c.Request.Context(), user.ID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// UpsertAnswer saves one answer, emitting rate-limit headers either way.
func (h *AttemptHandler) UpsertAnswer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpsertAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	outcome, err := h.attemptService.UpsertAnswer(c.Request.Context(), user.ID, id, &req)
	if outcome != nil {
		setRateLimitHeaders(c, outcome)
	}
	if err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			c.Header("Retry-After", strconv.Itoa(outcome.RateLimit.RetryAfterSec))
		}
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// SubmitAttempt finalizes the attempt; repeat calls return the settled
// status.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "submitting attempt", "attempt_id", id, "user_id", user.ID)

	status, err := h.attemptService.Submit(c.Request.Context(), user.ID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// GetResult returns the caller's score card for one attempt.
func (h *AttemptHandler) GetResult(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	result, err := h.attemptService.Result(c.Request.Context(), user.ID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMyResults returns all of the caller's attempts as score cards.
func (h *AttemptHandler) GetMyResults(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	results, err := h.attemptService.Results(c.Request.Context(), user.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GetResultFor serves teachers and admins reading a student's result.
func (h *AttemptHandler) GetResultFor(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	result, err := h.attemptService.ResultFor(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func setRateLimitHeaders(c *gin.Context, outcome *services.UpsertAnswerOutcome) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(outcome.RateLimit.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(outcome.RateLimit.Remaining))
}
