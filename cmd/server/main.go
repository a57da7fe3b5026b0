package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/auth"
	"github.com/yukikurage/project-management-api/internal/config"
	"github.com/yukikurage/project-management-api/internal/database"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/handlers"
	"github.com/yukikurage/project-management-api/internal/logger"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/router"
	"github.com/yukikurage/project-management-api/internal/services"
	"github.com/yukikurage/project-management-api/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)
	logger.Setup(cfg.LogLevel, cfg.GinMode == gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to set up telemetry")
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	// Run migrations
	if err := database.MigrateDatabase(db); err != nil {
		logger.Log.WithError(err).Fatal("Failed to run migrations")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Redis")
	}

	// Setup session store with Redis
	redisOpts, err := database.RedisOptions(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid Redis configuration")
	}
	store, err := redisStore.NewStore(
		10,                 // Redis pool size
		"tcp",              // network type
		redisOpts.Addr,     // Redis address
		redisOpts.Username, // username (empty for default user)
		redisOpts.Password, // password (empty = no password)
		[]byte(cfg.SessionSecret),
	)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to create Redis session store")
	}

	verifier, err := auth.NewVerifier(cfg.ClerkJWTKey, cfg.ClerkAuthorizedParties)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load Clerk JWT key")
	}

	if cfg.Events.SigningKey == "" {
		logger.Log.Warn("EVENT_SIGNING_KEY is not set, inbound events are accepted unsigned")
	}

	publisher := events.NewRedisPublisher(redisClient, cfg.Events.Stream)

	// Initialize repositories and services
	userRepo := repository.NewUserRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	workspaceService := services.NewWorkspaceService(workspaceRepo, userRepo)
	projectService := services.NewProjectService(projectRepo, workspaceRepo, userRepo)
	loc := cfg.Location()
	taskService := services.NewTaskService(taskRepo, projectRepo, publisher, cfg.TaskDeleteStrict, loc)
	commentService := services.NewCommentService(commentRepo, taskRepo, projectRepo)

	r := router.New(router.Handlers{
		Health:    handlers.NewHealthHandler(db),
		Events:    handlers.NewEventHandler(publisher, cfg.Events.SigningKey),
		Workspace: handlers.NewWorkspaceHandler(workspaceService),
		Project:   handlers.NewProjectHandler(projectService, loc),
		Task:      handlers.NewTaskHandler(taskService, loc),
		Comment:   handlers.NewCommentHandler(commentService),
	}, router.Options{
		ServiceName:    cfg.OTel.ServiceName,
		SessionStore:   store,
		Verifier:       verifier,
		SecureCookies:  cfg.GinMode == gin.ReleaseMode,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server shutdown failed")
	}
	if err := redisClient.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close Redis client")
	}
	if err := database.Close(db); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("Failed to flush telemetry")
	}
}
