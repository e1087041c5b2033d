package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/repositories/postgres"
	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
	"github.com/eduolymp/olympiad-service/internal/validator"
)

type HandlerManager struct {
	attemptHandler  *AttemptHandler
	olympiadHandler *OlympiadHandler
	taskHandler     *TaskHandler
	userHandler     *UserHandler
	authMiddleware  *AuthMiddleware
	auditService    services.AuditService
	repo            repositories.Repository
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	v *validator.Validator,
	logger utils.Logger,
	jwtSecret string,
	repo repositories.Repository,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), v, logger),
		olympiadHandler: NewOlympiadHandler(serviceManager.Olympiad(), serviceManager.ImportExport(), v, logger),
		taskHandler:     NewTaskHandler(serviceManager.Task(), serviceManager.ImportExport(), v, logger),
		userHandler:     NewUserHandler(serviceManager.User(), v, logger),
		authMiddleware:  NewAuthMiddleware(jwtSecret, repo.User()),
		auditService:    serviceManager.Audit(),
		repo:            repo,
	}
}

// SetupRoutes wires every endpoint under /api/v1.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.Authenticate())
	v1.Use(AuditMiddleware(hm.auditService))
	{
		admin := hm.authMiddleware.RequireRole(models.RoleAdmin)
		staff := hm.authMiddleware.RequireRole(models.RoleAdmin, models.RoleTeacher)

		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/results/my", hm.attemptHandler.GetMyResults)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/answers", hm.attemptHandler.UpsertAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetResult)
			attempts.GET("/:id/result/review", staff, hm.attemptHandler.GetResultFor)
		}

		olympiads := v1.Group("/olympiads")
		{
			olympiads.GET("", hm.olympiadHandler.ListOlympiads)
			olympiads.GET("/:id", hm.olympiadHandler.GetOlympiad)

			olympiads.POST("", admin, hm.olympiadHandler.CreateOlympiad)
			olympiads.PUT("/:id", admin, hm.olympiadHandler.UpdateOlympiad)
			olympiads.DELETE("/:id", admin, hm.olympiadHandler.DeleteOlympiad)

			olympiads.GET("/:id/tasks", admin, hm.olympiadHandler.GetTasks)
			olympiads.POST("/:id/tasks", admin, hm.olympiadHandler.AttachTask)
			olympiads.DELETE("/:id/tasks/:task_id", admin, hm.olympiadHandler.DetachTask)
			olympiads.PUT("/:id/tasks/reorder", admin, hm.olympiadHandler.ReorderTasks)

			olympiads.POST("/:id/publish", admin, hm.olympiadHandler.PublishOlympiad)
			olympiads.POST("/:id/unpublish", admin, hm.olympiadHandler.UnpublishOlympiad)
			olympiads.PUT("/:id/results-release", admin, hm.olympiadHandler.ReleaseResults)

			olympiads.GET("/:id/attempts", staff, hm.olympiadHandler.ListAttempts)
			olympiads.GET("/:id/results/export", admin, hm.olympiadHandler.ExportResults)
		}

		tasks := v1.Group("/tasks")
		{
			tasks.GET("", staff, hm.taskHandler.ListTasks)
			tasks.GET("/:id", staff, hm.taskHandler.GetTask)

			tasks.POST("", admin, hm.taskHandler.CreateTask)
			tasks.PUT("/:id", admin, hm.taskHandler.UpdateTask)
			tasks.DELETE("/:id", admin, hm.taskHandler.DeleteTask)

			tasks.POST("/import", admin, hm.taskHandler.ImportTasks)
			tasks.GET("/export", admin, hm.taskHandler.ExportTasks)
		}

		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetMe)
			users.GET("", admin, hm.userHandler.ListUsers)
			users.PUT("/:id/role", admin, hm.userHandler.UpdateUserRole)
			users.GET("/:id/results", staff, hm.userHandler.StudentResults)
		}

		teachers := v1.Group("/teachers")
		{
			teachers.GET("/:id/students", staff, hm.userHandler.ListStudents)
			teachers.POST("/:id/students", staff, hm.userHandler.LinkStudent)
			teachers.DELETE("/:id/students/:student_id", staff, hm.userHandler.UnlinkStudent)
		}
	}
}

// HealthCheck reports process and database liveness.
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	if err := hm.repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"service":          "olympiad-service",
		"reader_fallbacks": postgres.ReaderFallbacks(),
	})
}
