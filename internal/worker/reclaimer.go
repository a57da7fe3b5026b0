package worker

import (
	"context"
	"time"

	"github.com/yukikurage/project-management-api/internal/logger"
)

type ReclaimerConfig struct {
	MinIdle  time.Duration
	Interval time.Duration
}

// Reclaimer periodically takes over stream entries that were read but never
// acknowledged, and runs them through the worker.
type Reclaimer struct {
	worker *Worker
	cfg    ReclaimerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewReclaimer(worker *Worker, cfg ReclaimerConfig) *Reclaimer {
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reclaimer{
		worker:    worker,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	logger.Log.WithFields(logger.Fields{
		"interval": r.cfg.Interval,
		"min_idle": r.cfg.MinIdle,
	}).Info("reclaimer started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			logger.Log.Info("reclaimer stopping")
			return
		case <-ticker.C:
			r.reclaimOnce(ctx)
		}
	}
}

func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *Reclaimer) reclaimOnce(ctx context.Context) {
	messages, err := r.worker.consumer.ClaimStale(ctx, r.cfg.MinIdle)
	if err != nil {
		logger.Log.WithError(err).Error("reclaim cycle error")
		return
	}
	if len(messages) == 0 {
		return
	}

	logger.Log.WithField("count", len(messages)).Info("reclaimed stale messages")
	r.worker.processMessages(ctx, messages)
}
