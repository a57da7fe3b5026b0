package workflow

import (
	"context"
	"time"

	"github.com/yukikurage/project-management-api/internal/logger"
)

// Scheduler periodically resumes due runs.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		engine:    engine,
		interval:  interval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", s.interval).Info("workflow scheduler started")

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			logger.Log.Info("workflow scheduler stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

func (s *Scheduler) tick(ctx context.Context) {
	n, err := s.engine.ResumeDue(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("resuming due workflow runs")
		return
	}
	if n > 0 {
		logger.Log.WithField("runs", n).Debug("resumed workflow runs")
	}
}
