package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/project-management-api/internal/logger"
)

type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
	}
}

func (p *RedisPublisher) Send(ctx context.Context, events ...Event) error {
	for _, evt := range events {
		if err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			Values: eventValues(evt, 1),
		}).Err(); err != nil {
			return fmt.Errorf("enqueue event %s: %w", evt.Name, err)
		}

		logger.Log.WithFields(logger.Fields{
			"event_id":   evt.ID,
			"event_name": evt.Name,
			"stream":     p.stream,
		}).Debug("enqueued event")
	}
	return nil
}

func eventValues(evt Event, attempt int) map[string]any {
	return map[string]any{
		"id":      evt.ID,
		"name":    evt.Name,
		"data":    string(evt.Data),
		"ts":      evt.Timestamp,
		"attempt": attempt,
	}
}
