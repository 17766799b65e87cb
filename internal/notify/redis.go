package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"safety-tracker/internal/models"

	"github.com/go-redis/redis/v8"
)

// Publisher is the subset of the redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes alerts on a pub/sub channel watched by admin consoles.
type RedisSink struct {
	client  Publisher
	channel string
}

func NewRedisSink(client Publisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Send(ctx context.Context, alert models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish alert on %s: %w", r.channel, err)
	}
	return nil
}
