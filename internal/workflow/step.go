package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/project-management-api/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Step gives a handler access to memoized steps and durable sleeps for one run.
type Step struct {
	engine *Engine
	run    *models.WorkflowRun
}

// sleepSignal unwinds the handler when a run has to wait.
type sleepSignal struct {
	stepID string
	until  time.Time
}

func (s *sleepSignal) Error() string {
	return fmt.Sprintf("sleeping at step %q until %s", s.stepID, s.until.Format(time.RFC3339))
}

// IsSleep reports whether err is the signal returned by SleepUntil.
func IsSleep(err error) bool {
	var sleep *sleepSignal
	return errors.As(err, &sleep)
}

func (s *Step) RunID() int64 {
	return s.run.ID
}

// Attempt is 1 on the first execution and grows with every failed attempt.
func (s *Step) Attempt() int {
	return s.run.Attempts + 1
}

// Now is the engine clock.
func (s *Step) Now() time.Time {
	return s.engine.now()
}

// Do runs fn once per run. Later executions of the run skip it.
func (s *Step) Do(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, s, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// SleepUntil suspends the run until the given time. The handler must return
// the error it gets back unchanged; the run resumes from the top once the
// time has passed and this call then returns nil.
func (s *Step) SleepUntil(ctx context.Context, id string, until time.Time) error {
	done, err := s.load(ctx, id, nil)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	if s.engine.now().Before(until) {
		return &sleepSignal{stepID: id, until: until}
	}
	return s.save(ctx, id, map[string]time.Time{"until": until})
}

// Run executes fn as the named step, or returns its stored output when the
// step already completed in an earlier execution of the same run.
func Run[T any](ctx context.Context, s *Step, id string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	done, err := s.load(ctx, id, &out)
	if err != nil {
		return out, err
	}
	if done {
		return out, nil
	}

	ctx, span := s.engine.tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("workflow.step_id", id),
		attribute.Int64("workflow.run_id", s.run.ID),
	))
	defer span.End()

	out, err = fn(ctx)
	if err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("step %s: %w", id, err)
	}

	if err := s.save(ctx, id, out); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Step) load(ctx context.Context, id string, into interface{}) (bool, error) {
	record, err := s.engine.repo.FindStep(ctx, s.run.ID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("loading step %s: %w", id, err)
	}

	if into != nil && len(record.Output) > 0 {
		if err := json.Unmarshal(record.Output, into); err != nil {
			return false, fmt.Errorf("decoding step %s: %w", id, err)
		}
	}
	return true, nil
}

func (s *Step) save(ctx context.Context, id string, output interface{}) error {
	raw, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encoding step %s: %w", id, err)
	}

	err = s.engine.repo.SaveStep(ctx, &models.WorkflowStep{
		RunID:       s.run.ID,
		StepID:      id,
		Output:      datatypes.JSON(raw),
		CompletedAt: s.engine.now(),
	})
	if err != nil {
		return fmt.Errorf("saving step %s: %w", id, err)
	}
	return nil
}
