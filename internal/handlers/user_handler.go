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

type UserHandler struct {
	BaseHandler
	userService services.UserService
	validator   *validator.Validator
}

func NewUserHandler(userService services.UserService, v *validator.Validator, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userService: userService,
		validator:   v,
	}
}

// GetMe returns the caller's own profile.
func (h *UserHandler) GetMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filters := repositories.UserFilters{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if v := c.Query("role"); v != "" {
		role := models.UserRole(v)
		filters.Role = &role
	}
	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}

	users, total, err := h.userService.List(c.Request.Context(), user, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "total": total})
}

func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	if err := h.userService.UpdateRole(c.Request.Context(), user, id, models.UserRole(req.Role)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== TEACHER ROSTER =====

func (h *UserHandler) LinkStudent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teacherID := h.parseIDParam(c, "id")
	if teacherID == 0 {
		return
	}

	var req validator.LinkStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	if err := h.userService.LinkStudent(c.Request.Context(), user, teacherID, req.StudentID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) UnlinkStudent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teacherID := h.parseIDParam(c, "id")
	if teacherID == 0 {
		return
	}
	studentID := h.parseIDParam(c, "student_id")
	if studentID == 0 {
		return
	}

	if err := h.userService.UnlinkStudent(c.Request.Context(), user, teacherID, studentID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) ListStudents(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teacherID := h.parseIDParam(c, "id")
	if teacherID == 0 {
		return
	}

	students, err := h.userService.ListStudents(c.Request.Context(), user, teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *UserHandler) StudentResults(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	studentID := h.parseIDParam(c, "id")
	if studentID == 0 {
		return
	}

	results, err := h.userService.StudentResults(c.Request.Context(), user, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
