package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/eduolymp/olympiad-service/internal/models"
	"github.com/eduolymp/olympiad-service/internal/repositories"
	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
)

// SetupMiddleware installs the common middleware chain on the router.
func SetupMiddleware(router *gin.Engine, logger utils.Logger) {
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(SecurityMiddleware())
}

// RequestIDMiddleware propagates or generates the request id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// CORSMiddleware provides CORS support.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
		c.Header("Access-Control-Max-Age", "43200")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SecurityMiddleware adds security headers.
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// ===== AUTH =====

// AuthClaims is the bearer-token payload issued by the identity collaborator.
type AuthClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and loads the caller. The user
// row is authoritative for role and verification flags; the token only
// identifies.
type AuthMiddleware struct {
	secret   []byte
	userRepo repositories.UserRepository
}

func NewAuthMiddleware(secret string, userRepo repositories.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), userRepo: userRepo}
}

func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(c, http.StatusUnauthorized, "missing_token", "authorization header required", nil)
			c.Abort()
			return
		}

		claims := &AuthClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid || claims.UserID == 0 {
			respondError(c, http.StatusUnauthorized, "invalid_token", "invalid or expired token", nil)
			c.Abort()
			return
		}

		user, err := m.userRepo.GetByID(c.Request.Context(), nil, claims.UserID)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid_token", "unknown user", nil)
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// RequireRole allows only the listed roles past.
func (m *AuthMiddleware) RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		respondError(c, http.StatusForbidden, "forbidden", "insufficient role", nil)
		c.Abort()
	}
}

// ===== AUDIT =====

// AuditMiddleware records every handled request after the response is
// written. Recording is best-effort and never alters the response.
func AuditMiddleware(audit services.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		record := &models.AuditRecord{
			Action:     c.Request.Method + " " + c.FullPath(),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: c.Writer.Status(),
			RequestID:  c.GetString("request_id"),
		}
		if userID, exists := c.Get("user_id"); exists {
			if id, ok := userID.(uint); ok {
				record.UserID = &id
			}
		}
		if ip := c.ClientIP(); ip != "" {
			record.IP = &ip
		}
		if ua := c.Request.UserAgent(); ua != "" {
			record.UserAgent = &ua
		}
		if len(c.Errors) > 0 {
			if details, err := json.Marshal(gin.H{"errors": c.Errors.Errors()}); err == nil {
				record.Details = datatypes.JSON(details)
			}
		}

		audit.Record(c.Request.Context(), record)
	}
}
