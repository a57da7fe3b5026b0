package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/config"
	"github.com/yukikurage/project-management-api/internal/database"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/identity"
	"github.com/yukikurage/project-management-api/internal/logger"
	"github.com/yukikurage/project-management-api/internal/mailer"
	"github.com/yukikurage/project-management-api/internal/notification"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/telemetry"
	"github.com/yukikurage/project-management-api/internal/utils"
	"github.com/yukikurage/project-management-api/internal/worker"
	"github.com/yukikurage/project-management-api/internal/workflow"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.GinMode == gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := utils.InitIDs(cfg.NodeID); err != nil {
		logger.Log.WithError(err).Fatal("Invalid NODE_ID")
	}

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to set up telemetry")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.MigrateDatabase(db); err != nil {
		logger.Log.WithError(err).Fatal("Failed to run migrations")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Redis")
	}

	consumer, err := events.NewRedisConsumer(ctx, redisClient, events.ConsumerConfig{
		Stream:    cfg.Events.Stream,
		Group:     cfg.Events.Group,
		Consumer:  cfg.Events.Consumer,
		DLQStream: cfg.Events.DLQStream,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to create event consumer")
	}

	engine := workflow.NewEngine(repository.NewWorkflowRepository(db), workflow.Config{
		MaxAttempts:  cfg.Workflow.MaxAttempts,
		LeaseTimeout: cfg.Workflow.LeaseTimeout,
	})

	userRepo := repository.NewUserRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	if !cfg.SMTP.Enabled() {
		logger.Log.Warn("SMTP_HOST is not set, emails are logged instead of sent")
	}
	notifications := notification.NewWorkflow(taskRepo, mailer.New(cfg.SMTP), cfg.Location())

	fns := append(identity.NewSync(userRepo, workspaceRepo).Functions(), notifications.Function())
	if err := engine.Register(fns...); err != nil {
		logger.Log.WithError(err).Fatal("Failed to register workflow functions")
	}

	w := worker.New(consumer, engine, worker.Config{MaxAttempts: cfg.Events.MaxAttempts})
	reclaimer := worker.NewReclaimer(w, worker.ReclaimerConfig{
		MinIdle:  cfg.Events.ReclaimIdle,
		Interval: cfg.Events.ReclaimInterval,
	})
	scheduler := workflow.NewScheduler(engine, cfg.Workflow.PollInterval)

	// Loops run on a context that outlives the signal so in-flight work finishes before Stop returns
	runCtx, cancelRun := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := w.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Log.WithError(err).Error("Event worker exited")
		}
	}()
	go func() {
		defer wg.Done()
		reclaimer.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		if err := scheduler.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Log.WithError(err).Error("Workflow scheduler exited")
		}
	}()

	logger.Log.WithFields(logger.Fields{
		"stream":   cfg.Events.Stream,
		"group":    cfg.Events.Group,
		"consumer": cfg.Events.Consumer,
	}).Info("Worker running")

	<-ctx.Done()
	logger.Log.Info("Shutting down worker")

	w.Stop()
	reclaimer.Stop()
	scheduler.Stop()
	cancelRun()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

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
