package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

type OlympiadHandler struct {
	BaseHandler
	olympiadService services.OlympiadService
	exportService   services.ImportExportService
	validator       *validator.Validator
}

func NewOlympiadHandler(
	olympiadService services.OlympiadService,
	exportService services.ImportExportService,
	v *validator.Validator,
	logger utils.Logger,
) *OlympiadHandler {
	return &OlympiadHandler{
		BaseHandler:     NewBaseHandler(logger),
		olympiadService: olympiadService,
		exportService:   exportService,
		validator:       v,
	}
}

func (h *OlympiadHandler) CreateOlympiad(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateOlympiadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	olympiad, err := h.olympiadService.Create(c.Request.Context(), user, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, olympiad)
}

func (h *OlympiadHandler) GetOlympiad(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	olympiad, err := h.olympiadService.GetByID(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, olympiad)
}

func (h *OlympiadHandler) UpdateOlympiad(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateOlympiadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	olympiad, err := h.olympiadService.Update(c.Request.Context(), user, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, olympiad)
}

func (h *OlympiadHandler) DeleteOlympiad(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.olympiadService.Delete(c.Request.Context(), user, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *OlympiadHandler) ListOlympiads(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filters := repositories.OlympiadFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if v := c.Query("is_published"); v != "" {
		published := v == "true"
		filters.IsPublished = &published
	}

	list, err := h.olympiadService.List(c.Request.Context(), user, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ===== TASK COMPOSITION =====

func (h *OlympiadHandler) AttachTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.AttachTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	if err := h.olympiadService.AttachTask(c.Request.Context(), user, id, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *OlympiadHandler) DetachTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	taskID := h.parseIDParam(c, "task_id")
	if taskID == 0 {
		return
	}

	if err := h.olympiadService.DetachTask(c.Request.Context(), user, id, taskID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *OlympiadHandler) ReorderTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ReorderTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	if err := h.olympiadService.ReorderTasks(c.Request.Context(), user, id, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *OlympiadHandler) GetTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	tasks, err := h.olympiadService.GetTasks(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// ===== LIFECYCLE =====

func (h *OlympiadHandler) PublishOlympiad(c *gin.Context) {
	h.lifecycle(c, func(user *models.User, id uint) (*models.Olympiad, error) {
		return h.olympiadService.Publish(c.Request.Context(), user, id)
	})
}

func (h *OlympiadHandler) UnpublishOlympiad(c *gin.Context) {
	h.lifecycle(c, func(user *models.User, id uint) (*models.Olympiad, error) {
		return h.olympiadService.Unpublish(c.Request.Context(), user, id)
	})
}

func (h *OlympiadHandler) ReleaseResults(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.ReleaseResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	olympiad, err := h.olympiadService.ReleaseResults(c.Request.Context(), user, id, req.Released)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, olympiad)
}

func (h *OlympiadHandler) lifecycle(c *gin.Context, op func(*models.User, uint) (*models.Olympiad, error)) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	olympiad, err := op(user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, olympiad)
}

// ===== ATTEMPT OVERSIGHT =====

func (h *OlympiadHandler) ListAttempts(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	filters := repositories.AttemptFilters{
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if v := c.Query("status"); v != "" {
		status := models.AttemptStatus(v)
		filters.Status = &status
	}

	attempts, total, err := h.olympiadService.ListAttempts(c.Request.Context(), user, id, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "total": total})
}

// ExportResults streams the olympiad's results as an xlsx workbook.
func (h *OlympiadHandler) ExportResults(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	data, err := h.exportService.ExportResults(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="results.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
