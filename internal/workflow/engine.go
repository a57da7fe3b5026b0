// Package workflow runs event-triggered functions as durable, resumable runs.
//
// A run is a row in workflow_runs. Handlers split their work into named steps
// whose results are stored in workflow_steps, so re-executing a run after a
// sleep, a retry or a crash replays completed steps from storage instead of
// running them again.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/logger"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
)

const maxBackoff = time.Hour

var ErrDuplicateFunction = errors.New("workflow function already registered")

// HandlerFunc is the body of a workflow function.
type HandlerFunc func(ctx context.Context, evt events.Event, step *Step) error

// Function binds a handler to the event name that starts it.
type Function struct {
	ID      string
	Trigger string
	Handler HandlerFunc
}

type Config struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	LeaseTimeout time.Duration
	BatchSize    int
}

type Engine struct {
	repo   repository.WorkflowRepository
	cfg    Config
	now    func() time.Time
	tracer trace.Tracer

	mu        sync.RWMutex
	byID      map[string]Function
	byTrigger map[string][]Function
}

func NewEngine(repo repository.WorkflowRepository, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Engine{
		repo:      repo,
		cfg:       cfg,
		now:       time.Now,
		tracer:    otel.Tracer("github.com/yukikurage/project-management-api/internal/workflow"),
		byID:      make(map[string]Function),
		byTrigger: make(map[string][]Function),
	}
}

// WithClock replaces the time source. Tests use it to move time forward.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Register(fns ...Function) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, fn := range fns {
		if _, exists := e.byID[fn.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateFunction, fn.ID)
		}
		e.byID[fn.ID] = fn
		e.byTrigger[fn.Trigger] = append(e.byTrigger[fn.Trigger], fn)
	}
	return nil
}

// Dispatch starts one run per function triggered by the event and executes it
// right away. Redelivered events are ignored because a run already exists for
// the (function, event id) pair. Only storage failures are returned; handler
// failures are retried by the engine.
func (e *Engine) Dispatch(ctx context.Context, evt events.Event) error {
	if err := evt.Normalize(e.now()); err != nil {
		return err
	}

	e.mu.RLock()
	fns := e.byTrigger[evt.Name]
	e.mu.RUnlock()

	if len(fns) == 0 {
		logger.Log.WithFields(logger.Fields{
			"event_id":   evt.ID,
			"event_name": evt.Name,
		}).Debug("no workflow function for event")
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	for _, fn := range fns {
		now := e.now()
		run := &models.WorkflowRun{
			FunctionID: fn.ID,
			EventID:    evt.ID,
			EventName:  evt.Name,
			Event:      datatypes.JSON(payload),
			Status:     models.RunQueued,
			WakeAt:     now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		created, err := e.repo.CreateRun(ctx, run)
		if err != nil {
			return fmt.Errorf("creating run for %s: %w", fn.ID, err)
		}
		if !created {
			logger.Log.WithFields(logger.Fields{
				"function_id": fn.ID,
				"event_id":    evt.ID,
			}).Info("duplicate event delivery, run already exists")
			continue
		}

		if err := e.claimAndExecute(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// ResumeDue executes waiting runs whose wake time has passed and running runs
// whose lease expired. It returns the number of runs it executed.
func (e *Engine) ResumeDue(ctx context.Context) (int, error) {
	now := e.now()
	runs, err := e.repo.ListDue(ctx, now, now.Add(-e.cfg.LeaseTimeout), e.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing due runs: %w", err)
	}

	executed := 0
	for i := range runs {
		run := &runs[i]
		if run.Status == models.RunRunning {
			logger.Log.WithFields(logger.Fields{
				"run_id":      run.ID,
				"function_id": run.FunctionID,
			}).Warn("reclaiming run with expired lease")
		}

		claimed, err := e.claim(ctx, run)
		if err != nil {
			return executed, err
		}
		if !claimed {
			continue
		}
		if err := e.execute(ctx, run); err != nil {
			return executed, err
		}
		executed++
	}
	return executed, nil
}

func (e *Engine) claim(ctx context.Context, run *models.WorkflowRun) (bool, error) {
	claimed, err := e.repo.Claim(ctx, run, e.now())
	if err != nil {
		return false, fmt.Errorf("claiming run %d: %w", run.ID, err)
	}
	return claimed, nil
}

func (e *Engine) claimAndExecute(ctx context.Context, run *models.WorkflowRun) error {
	claimed, err := e.claim(ctx, run)
	if err != nil || !claimed {
		return err
	}
	return e.execute(ctx, run)
}

func (e *Engine) execute(ctx context.Context, run *models.WorkflowRun) error {
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.function_id", run.FunctionID),
		attribute.Int64("workflow.run_id", run.ID),
		attribute.String("workflow.event_id", run.EventID),
		attribute.Int("workflow.attempts", run.Attempts),
	))
	defer span.End()

	log := logger.Log.WithFields(logger.Fields{
		"run_id":      run.ID,
		"function_id": run.FunctionID,
		"event_id":    run.EventID,
	})

	e.mu.RLock()
	fn, ok := e.byID[run.FunctionID]
	e.mu.RUnlock()

	if !ok {
		run.Status = models.RunFailed
		run.LastError = "function not registered"
		log.Error("workflow function not registered")
		return e.saveState(ctx, run)
	}

	var evt events.Event
	if err := json.Unmarshal(run.Event, &evt); err != nil {
		run.Status = models.RunFailed
		run.LastError = fmt.Sprintf("decoding event: %v", err)
		log.WithError(err).Error("stored event is unreadable")
		return e.saveState(ctx, run)
	}

	step := &Step{engine: e, run: run}
	handlerErr := e.callSafe(ctx, fn, evt, step)

	var sleep *sleepSignal
	switch {
	case handlerErr == nil:
		run.Status = models.RunCompleted
		run.LastError = ""
		log.Info("workflow run completed")

	case errors.As(handlerErr, &sleep):
		run.Status = models.RunSleeping
		run.WakeAt = sleep.until
		log.WithFields(logger.Fields{
			"step_id": sleep.stepID,
			"wake_at": sleep.until,
		}).Info("workflow run sleeping")

	default:
		run.Attempts++
		run.LastError = handlerErr.Error()
		span.RecordError(handlerErr)
		span.SetStatus(codes.Error, handlerErr.Error())

		if run.Attempts >= e.cfg.MaxAttempts {
			run.Status = models.RunFailed
			log.WithError(handlerErr).WithField("attempts", run.Attempts).Error("workflow run failed permanently")
		} else {
			run.Status = models.RunRetrying
			run.WakeAt = e.now().Add(e.backoff(run.Attempts))
			log.WithError(handlerErr).WithFields(logger.Fields{
				"attempts": run.Attempts,
				"retry_at": run.WakeAt,
			}).Warn("workflow run failed, scheduling retry")
		}
	}

	return e.saveState(ctx, run)
}

func (e *Engine) callSafe(ctx context.Context, fn Function, evt events.Event, step *Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logger.Fields{
				"panic":       r,
				"function_id": fn.ID,
				"run_id":      step.run.ID,
			}).Error("panic recovered in workflow handler")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn.Handler(ctx, evt, step)
}

func (e *Engine) saveState(ctx context.Context, run *models.WorkflowRun) error {
	run.UpdatedAt = e.now()
	if err := e.repo.SaveState(ctx, run); err != nil {
		return fmt.Errorf("saving run %d: %w", run.ID, err)
	}
	return nil
}

func (e *Engine) backoff(attempts int) time.Duration {
	d := e.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
