package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStreamPublisher appends outbox entries to a Redis stream so other
// services can consume appointment changes.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher returns nil when client is nil so callers can skip delivery.
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	if client == nil {
		return nil
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = "medislot:appointments"
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: 10000}
}

func (p *RedisStreamPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: map[string]any{
			"event_id":  entry.ID.String(),
			"aggregate": entry.Aggregate,
			"type":      entry.Type,
			"payload":   string(entry.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("events: xadd %s: %w", p.stream, err)
	}
	return nil
}
