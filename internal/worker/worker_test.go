package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/project-management-api/internal/events"
)

type fakeConsumer struct {
	mu       sync.Mutex
	batches  [][]events.Message
	stale    []events.Message
	readErr  error
	acked    []string
	requeued []string
	dlq      []string
}

func (c *fakeConsumer) Read(ctx context.Context) ([]events.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	if len(c.batches) == 0 {
		return nil, nil
	}
	batch := c.batches[0]
	c.batches = c.batches[1:]
	return batch, nil
}

func (c *fakeConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) ([]events.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stale := c.stale
	c.stale = nil
	return stale, nil
}

func (c *fakeConsumer) Ack(ctx context.Context, msg events.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, msg.ID)
	return nil
}

func (c *fakeConsumer) Requeue(ctx context.Context, msg events.Message, errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requeued = append(c.requeued, msg.ID)
	return nil
}

func (c *fakeConsumer) SendDLQ(ctx context.Context, msg events.Message, errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dlq = append(c.dlq, msg.ID)
	return nil
}

type dispatchFunc func(ctx context.Context, evt events.Event) error

func (f dispatchFunc) Dispatch(ctx context.Context, evt events.Event) error { return f(ctx, evt) }

func message(id, name string, attempt int) events.Message {
	return events.Message{
		ID:      id,
		Event:   events.Event{ID: "evt-" + id, Name: name},
		Attempt: attempt,
	}
}

func TestWorker_ProcessMessages(t *testing.T) {
	consumer := &fakeConsumer{}
	var dispatched []string
	w := New(consumer, dispatchFunc(func(ctx context.Context, evt events.Event) error {
		dispatched = append(dispatched, evt.ID)
		switch evt.Name {
		case "fail":
			return errors.New("database unavailable")
		case "panic":
			panic("boom")
		}
		return nil
	}), Config{MaxAttempts: 3})

	w.processMessages(context.Background(), []events.Message{
		message("1-0", "ok", 1),
		message("2-0", "fail", 1),
		message("3-0", "fail", 3),
		message("4-0", "panic", 2),
	})

	assert.Equal(t, []string{"evt-1-0", "evt-2-0", "evt-3-0", "evt-4-0"}, dispatched)
	assert.Equal(t, []string{"1-0"}, consumer.acked)
	assert.Equal(t, []string{"2-0", "4-0"}, consumer.requeued)
	assert.Equal(t, []string{"3-0"}, consumer.dlq)
}

func TestWorker_RunAndStop(t *testing.T) {
	consumer := &fakeConsumer{batches: [][]events.Message{
		{message("1-0", "ok", 1), message("2-0", "ok", 1)},
	}}

	done := make(chan struct{})
	var once sync.Once
	w := New(consumer, dispatchFunc(func(ctx context.Context, evt events.Event) error {
		if evt.ID == "evt-2-0" {
			once.Do(func() { close(done) })
		}
		return nil
	}), Config{})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not dispatched")
	}

	w.Stop()
	require.NoError(t, <-errCh)

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	assert.Equal(t, []string{"1-0", "2-0"}, consumer.acked)
}

func TestWorker_ReadErrorBacksOff(t *testing.T) {
	consumer := &fakeConsumer{readErr: errors.New("connection refused")}
	w := New(consumer, dispatchFunc(func(ctx context.Context, evt events.Event) error { return nil }), Config{ErrorBackoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop while backing off")
	}
}

func TestReclaimer_ProcessesStaleMessages(t *testing.T) {
	consumer := &fakeConsumer{stale: []events.Message{message("9-0", "ok", 1)}}
	w := New(consumer, dispatchFunc(func(ctx context.Context, evt events.Event) error { return nil }), Config{})
	r := NewReclaimer(w, ReclaimerConfig{MinIdle: time.Minute, Interval: time.Minute})

	r.reclaimOnce(context.Background())
	assert.Equal(t, []string{"9-0"}, consumer.acked)

	r.reclaimOnce(context.Background())
	assert.Equal(t, []string{"9-0"}, consumer.acked)
}
