// Package worker consumes events from the stream and hands them to the workflow engine.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/logger"
)

// Consumer is the stream side of the worker, implemented by events.RedisConsumer.
type Consumer interface {
	Read(ctx context.Context) ([]events.Message, error)
	ClaimStale(ctx context.Context, minIdle time.Duration) ([]events.Message, error)
	Ack(ctx context.Context, msg events.Message) error
	Requeue(ctx context.Context, msg events.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg events.Message, errMsg string) error
}

// Dispatcher starts workflow runs for an event, implemented by workflow.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt events.Event) error
}

type Config struct {
	MaxAttempts int
	// ErrorBackoff is how long the loop pauses after a failed read.
	ErrorBackoff time.Duration
}

type Worker struct {
	consumer   Consumer
	dispatcher Dispatcher
	cfg        Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, dispatcher Dispatcher, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:   consumer,
		dispatcher: dispatcher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	logger.Log.Info("event worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			logger.Log.Info("event worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				logger.Log.WithError(err).Error("batch processing error")
				select {
				case <-time.After(w.cfg.ErrorBackoff):
				case <-w.stopCh:
				case <-ctx.Done():
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	w.processMessages(ctx, messages)
	return nil
}

func (w *Worker) processMessages(ctx context.Context, messages []events.Message) {
	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			logger.Log.WithError(err).WithFields(logger.Fields{
				"message_id": msg.ID,
				"event_id":   msg.Event.ID,
				"event_name": msg.Event.Name,
			}).Error("message processing failed")
			w.handleFailedMessage(ctx, msg, err)
		}
	}
}

func (w *Worker) processMessageSafe(ctx context.Context, msg events.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logger.Fields{
				"panic":      r,
				"message_id": msg.ID,
			}).Error("panic recovered in message processing")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage dispatches one message and acks it once its runs are recorded.
func (w *Worker) ProcessMessage(ctx context.Context, msg events.Message) error {
	logger.Log.WithFields(logger.Fields{
		"message_id": msg.ID,
		"event_id":   msg.Event.ID,
		"event_name": msg.Event.Name,
		"attempt":    msg.Attempt,
	}).Debug("processing message")

	if err := w.dispatcher.Dispatch(ctx, msg.Event); err != nil {
		// not acked: the message is requeued or dead-lettered by the caller
		return fmt.Errorf("dispatching %s: %w", msg.Event.Name, err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// the run exists, so a redelivery is a no-op
		logger.Log.WithError(err).WithField("message_id", msg.ID).Warn("failed to ACK message")
	}
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg events.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		logger.Log.WithFields(logger.Fields{
			"message_id": msg.ID,
			"event_id":   msg.Event.ID,
			"attempts":   msg.Attempt,
		}).Error("max attempts reached, sending to DLQ")
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			logger.Log.WithError(dlqErr).Error("failed to send to DLQ")
		}
		return
	}

	logger.Log.WithFields(logger.Fields{
		"message_id": msg.ID,
		"event_id":   msg.Event.ID,
		"attempt":    msg.Attempt,
	}).Warn("requeuing failed message")
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		logger.Log.WithError(requeueErr).Error("failed to requeue message")
	}
}
