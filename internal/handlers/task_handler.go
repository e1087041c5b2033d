package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

type TaskHandler struct {
	BaseHandler
	taskService         services.TaskService
	importExportService services.ImportExportService
	validator           *validator.Validator
}

func NewTaskHandler(
	taskService services.TaskService,
	importExportService services.ImportExportService,
	v *validator.Validator,
	logger utils.Logger,
) *TaskHandler {
	return &TaskHandler{
		BaseHandler:         NewBaseHandler(logger),
		taskService:         taskService,
		importExportService: importExportService,
		validator:           v,
	}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), user, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	task, err := h.taskService.GetByID(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), user, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), user, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filters := repositories.TaskFilters{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if v := c.Query("subject"); v != "" {
		filters.Subject = &v
	}
	if v := c.Query("task_type"); v != "" {
		taskType := models.TaskType(v)
		filters.Type = &taskType
	}
	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}

	list, err := h.taskService.List(c.Request.Context(), user, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ===== TASK BANK IMPORT / EXPORT =====

func (h *TaskHandler) ImportTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "multipart file field required", err.Error())
		return
	}
	defer file.Close()

	result, err := h.importExportService.ImportTasks(c.Request.Context(), user, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TaskHandler) ExportTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filters := repositories.TaskFilters{}
	if v := c.Query("subject"); v != "" {
		filters.Subject = &v
	}

	data, err := h.importExportService.ExportTasks(c.Request.Context(), user, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="tasks.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
