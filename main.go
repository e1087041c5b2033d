package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eduolymp/olympiad-service/internal/cache"
	"github.com/eduolymp/olympiad-service/internal/config"
	"github.com/eduolymp/olympiad-service/internal/events"
	"github.com/eduolymp/olympiad-service/internal/handlers"
	"github.com/eduolymp/olympiad-service/internal/locks"
	"github.com/eduolymp/olympiad-service/internal/ratelimit"
	"github.com/eduolymp/olympiad-service/internal/repositories/postgres"
	"github.com/eduolymp/olympiad-service/internal/services"
	"github.com/eduolymp/olympiad-service/internal/utils"
	"github.com/eduolymp/olympiad-service/internal/validator"
	"github.com/eduolymp/olympiad-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional: without it the attempt subsystem runs without the
	// cache, submit locks and rate limits, all of which fail open.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Failed to initialize Redis, running degraded", "error", err)
			redisClient = nil
		}
	}

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		Writer:      db.Writer,
		Reader:      db.Reader,
		RedisClient: redisClient,
	})

	var publisher events.EventPublisher = events.NoopPublisher{}
	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err := events.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.AuditTopic, slogLogger)
		if err != nil {
			logger.Warn("Failed to initialize Kafka publisher, events disabled", "error", err)
		} else {
			publisher = kafkaPublisher
		}
	}

	v := validator.New()
	olympiadCache := cache.NewOlympiadCache(redisClient, cfg.CacheTTL)

	serviceManager := services.NewServiceManager(repo, services.ServiceManagerConfig{
		Cache:     olympiadCache,
		Lock:      locks.NewSubmitLock(redisClient, cfg.LockTTL),
		Limiter:   ratelimit.NewTokenBucket(redisClient, cfg.AnswerRateLimit, cfg.AnswerRateWindow),
		Publisher: publisher,
		Logger:    slogLogger,
		Validator: v,
	})

	handlerManager := handlers.NewHandlerManager(serviceManager, v, logger, cfg.JWTSecret, repo)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	// Background jobs: cache warmup for open olympiads and the reconciler
	// that grades attempts whose deadline passed without a submit.
	jobCtx, stopJobs := context.WithCancel(context.Background())
	go services.NewCacheWarmer(repo, olympiadCache, slogLogger, cfg.WarmupInterval).Run(jobCtx)
	go services.NewReconciler(repo, serviceManager.Attempt(), slogLogger, cfg.ReconcileInterval).Run(jobCtx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
