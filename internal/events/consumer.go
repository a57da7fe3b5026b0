package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/project-management-api/internal/logger"
)

type ConsumerConfig struct {
	Stream    string        // Redis stream name
	Group     string        // Redis consumer group name
	Consumer  string        // Redis consumer name
	DLQStream string        // Stream receiving messages that exhausted their attempts
	BatchSize int64         // Messages read per call
	Block     time.Duration // How long XREADGROUP blocks waiting for messages
}

// Message is one stream entry decoded back into an event.
type Message struct {
	ID      string
	Event   Event
	Attempt int
	Raw     redis.XMessage
}

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}

	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Start from "0" so entries written before the group existed are still delivered.
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				logger.Log.WithFields(logger.Fields{
					"error":          parseErr,
					"raw_message_id": msg.ID,
					"stream":         c.cfg.Stream,
				}).Error("failed to parse message")
				_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue acks the message and appends a copy with the attempt counter bumped.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	values := eventValues(msg.Event, msg.Attempt+1)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	logger.Log.WithFields(logger.Fields{
		"event_id":     msg.Event.ID,
		"next_attempt": msg.Attempt + 1,
		"reason":       errMsg,
	}).Info("message requeued for retry")
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values := eventValues(msg.Event, msg.Attempt)
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	logger.Log.WithFields(logger.Fields{
		"event_id":    msg.Event.ID,
		"final_error": errMsg,
		"dlq_stream":  c.cfg.DLQStream,
	}).Error("message sent to DLQ")
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	name, err := parseString(msg.Values, "name")
	if err != nil {
		return Message{}, err
	}
	id, err := parseString(msg.Values, "id")
	if err != nil {
		return Message{}, err
	}

	data := json.RawMessage("{}")
	if raw, ok := msg.Values["data"]; ok {
		str := fmt.Sprint(raw)
		if !json.Valid([]byte(str)) {
			return Message{}, fmt.Errorf("data is not valid JSON")
		}
		data = json.RawMessage(str)
	}

	ts, err := parseOptionalInt64(msg.Values, "ts")
	if err != nil {
		return Message{}, err
	}
	attempt, err := parseOptionalInt64(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	return Message{
		ID: msg.ID,
		Event: Event{
			ID:        id,
			Name:      name,
			Data:      data,
			Timestamp: ts,
		},
		Attempt: int(attempt),
		Raw:     msg,
	}, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	str := fmt.Sprint(raw)
	if str == "" {
		return "", fmt.Errorf("empty %s", key)
	}
	return str, nil
}

func parseOptionalInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

// ClaimStale takes over pending entries idle for at least minIdle, typically
// left behind by a consumer that crashed between read and ack.
func (c *RedisConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) ([]Message, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  c.cfg.BatchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return []Message{}, nil
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim: %w", err)
	}

	messages := make([]Message, 0, len(claimed))
	for _, msg := range claimed {
		parsed, parseErr := ParseMessage(msg)
		if parseErr != nil {
			logger.Log.WithFields(logger.Fields{
				"error":          parseErr,
				"raw_message_id": msg.ID,
			}).Error("failed to parse reclaimed message, acknowledging")
			_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
			continue
		}
		messages = append(messages, parsed)
	}
	return messages, nil
}
