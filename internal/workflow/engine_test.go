package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/testutil"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type EngineTestSuite struct {
	suite.Suite
	db     *gorm.DB
	clock  *fakeClock
	engine *Engine
	ctx    context.Context
}

func (suite *EngineTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.clock = &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	suite.engine = NewEngine(repository.NewWorkflowRepository(suite.db), Config{
		MaxAttempts:  3,
		BaseBackoff:  time.Minute,
		LeaseTimeout: 10 * time.Minute,
	}).WithClock(suite.clock.Now)
	suite.ctx = context.Background()
}

func (suite *EngineTestSuite) event(id string) events.Event {
	return events.Event{ID: id, Name: "test/event", Data: []byte(`{"value":"x"}`)}
}

func (suite *EngineTestSuite) loadRun() models.WorkflowRun {
	var run models.WorkflowRun
	suite.Require().NoError(suite.db.First(&run).Error)
	return run
}

func (suite *EngineTestSuite) TestCompletesRunAndMemoizesSteps() {
	calls := 0
	suite.Require().NoError(suite.engine.Register(Function{
		ID:      "fn",
		Trigger: "test/event",
		Handler: func(ctx context.Context, evt events.Event, step *Step) error {
			v, err := Run(ctx, step, "compute", func(ctx context.Context) (string, error) {
				calls++
				return "computed", nil
			})
			if err != nil {
				return err
			}
			suite.Equal("computed", v)
			return nil
		},
	}))

	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))

	run := suite.loadRun()
	suite.Equal(models.RunCompleted, run.Status)
	suite.Equal(1, calls)

	var steps int64
	suite.db.Model(&models.WorkflowStep{}).Where("run_id = ?", run.ID).Count(&steps)
	suite.Equal(int64(1), steps)
}

func (suite *EngineTestSuite) TestDuplicateDeliveryIsIgnored() {
	calls := 0
	suite.Require().NoError(suite.engine.Register(Function{
		ID:      "fn",
		Trigger: "test/event",
		Handler: func(ctx context.Context, evt events.Event, step *Step) error {
			calls++
			return nil
		},
	}))

	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))
	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))

	var count int64
	suite.db.Model(&models.WorkflowRun{}).Count(&count)
	suite.Equal(int64(1), count)
	suite.Equal(1, calls)
}

func (suite *EngineTestSuite) TestSleepAndResume() {
	wakeAt := suite.clock.Now().Add(48 * time.Hour)
	before, after := 0, 0

	suite.Require().NoError(suite.engine.Register(Function{
		ID:      "sleeper",
		Trigger: "test/event",
		Handler: func(ctx context.Context, evt events.Event, step *Step) error {
			if err := step.Do(ctx, "before", func(ctx context.Context) error {
				before++
				return nil
			}); err != nil {
				return err
			}
			if err := step.SleepUntil(ctx, "wait", wakeAt); err != nil {
				return err
			}
			return step.Do(ctx, "after", func(ctx context.Context) error {
				after++
				return nil
			})
		},
	}))

	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))
	run := suite.loadRun()
	suite.Equal(models.RunSleeping, run.Status)
	suite.True(run.WakeAt.Equal(wakeAt))
	suite.Equal(1, before)
	suite.Equal(0, after)

	// not due yet
	suite.clock.Advance(24 * time.Hour)
	n, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, n)

	suite.clock.Advance(25 * time.Hour)
	n, err = suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, n)

	run = suite.loadRun()
	suite.Equal(models.RunCompleted, run.Status)
	suite.Equal(1, before, "completed steps are replayed from storage")
	suite.Equal(1, after)
}

func (suite *EngineTestSuite) TestRetriesWithBackoffThenFails() {
	attempts := 0
	suite.Require().NoError(suite.engine.Register(Function{
		ID:      "flaky",
		Trigger: "test/event",
		Handler: func(ctx context.Context, evt events.Event, step *Step) error {
			attempts++
			return errors.New("smtp unavailable")
		},
	}))

	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))
	run := suite.loadRun()
	suite.Equal(models.RunRetrying, run.Status)
	suite.Equal(1, run.Attempts)
	suite.True(run.WakeAt.Equal(suite.clock.Now().Add(time.Minute)))
	suite.Equal("smtp unavailable", run.LastError)

	suite.clock.Advance(time.Minute)
	_, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	run = suite.loadRun()
	suite.Equal(models.RunRetrying, run.Status)
	suite.True(run.WakeAt.Equal(suite.clock.Now().Add(2*time.Minute)))

	suite.clock.Advance(2 * time.Minute)
	_, err = suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	run = suite.loadRun()
	suite.Equal(models.RunFailed, run.Status)
	suite.Equal(3, attempts)

	suite.clock.Advance(time.Hour)
	n, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, n)
}

func (suite *EngineTestSuite) TestRetryDoesNotRepeatCompletedSteps() {
	sent := 0
	fail := true
	suite.Require().NoError(suite.engine.Register(Function{
		ID:      "partial",
		Trigger: "test/event",
		Handler: func(ctx context.Context, evt events.Event, step *Step) error {
			if err := step.Do(ctx, "send", func(ctx context.Context) error {
				sent++
				return nil
			}); err != nil {
				return err
			}
			return step.Do(ctx, "second", func(ctx context.Context) error {
				if fail {
					return errors.New("boom")
				}
				return nil
			})
		},
	}))

	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))
	suite.Equal(models.RunRetrying, suite.loadRun().Status)

	fail = false
	suite.clock.Advance(time.Minute)
	_, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)

	suite.Equal(models.RunCompleted, suite.loadRun().Status)
	suite.Equal(1, sent)
}

func (suite *EngineTestSuite) TestPanicIsRecordedAsFailure() {
	suite.Require().NoError(suite.engine.Register(Function{
		ID:      "panics",
		Trigger: "test/event",
		Handler: func(ctx context.Context, evt events.Event, step *Step) error {
			panic("nil map")
		},
	}))

	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))
	run := suite.loadRun()
	suite.Equal(models.RunRetrying, run.Status)
	suite.Contains(run.LastError, "panic: nil map")
}

func (suite *EngineTestSuite) TestReclaimsExpiredLease() {
	calls := 0
	suite.Require().NoError(suite.engine.Register(Function{
		ID:      "fn",
		Trigger: "test/event",
		Handler: func(ctx context.Context, evt events.Event, step *Step) error {
			calls++
			return nil
		},
	}))

	// a worker crashed while the run was executing
	now := suite.clock.Now()
	suite.Require().NoError(suite.db.Create(&models.WorkflowRun{
		ID:         42,
		FunctionID: "fn",
		EventID:    "evt_crashed",
		EventName:  "test/event",
		Event:      []byte(`{"id":"evt_crashed","name":"test/event","data":{}}`),
		Status:     models.RunRunning,
		WakeAt:     now,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error)

	n, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, n)

	suite.clock.Advance(11 * time.Minute)
	n, err = suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, n)
	suite.Equal(1, calls)
	suite.Equal(models.RunCompleted, suite.loadRun().Status)
}

func (suite *EngineTestSuite) TestUnknownEventAndDuplicateRegistration() {
	suite.NoError(suite.engine.Dispatch(suite.ctx, suite.event("evt_1")))

	fn := Function{ID: "fn", Trigger: "test/event", Handler: func(context.Context, events.Event, *Step) error { return nil }}
	suite.Require().NoError(suite.engine.Register(fn))
	suite.ErrorIs(suite.engine.Register(fn), ErrDuplicateFunction)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
