package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"safety-tracker/internal/models"

	"github.com/go-redis/redis/v8"
)

type RedisClient struct {
	client     *redis.Client
	windowSize int
	ttl        time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// WindowSize defaults to DefaultWindowSize.
	WindowSize int
	// TTL expires idle sessions; zero keeps keys until Reset.
	TTL time.Duration
}

type sessionMarker struct {
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
}

func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	poolSize := opts.PoolSize
	if poolSize == 0 {
		poolSize = 100
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     poolSize,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisWindowStore(client, opts.WindowSize, opts.TTL), nil
}

// NewRedisWindowStore wraps an existing client.
func NewRedisWindowStore(client *redis.Client, windowSize int, ttl time.Duration) *RedisClient {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &RedisClient{
		client:     client,
		windowSize: windowSize,
		ttl:        ttl,
	}
}

// Client exposes the underlying connection so other components (the alert
// publisher) can share the pool.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

func journeyKey(subjectID string) string {
	return fmt.Sprintf("journey:%s", subjectID)
}

func locationKey(subjectID string) string {
	return fmt.Sprintf("location:%s", subjectID)
}

func (r *RedisClient) Start(ctx context.Context, subjectID string) error {
	marker, err := json.Marshal(sessionMarker{Status: "active", StartTime: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal session marker: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, journeyKey(subjectID), marker, r.ttl)
		pipe.Del(ctx, locationKey(subjectID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to start session in Redis: %w", err)
	}
	return nil
}

func (r *RedisClient) Append(ctx context.Context, subjectID string, sample models.LocationSample) ([]models.LocationSample, error) {
	data, err := json.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sample: %w", err)
	}

	key := locationKey(subjectID)
	var window *redis.StringSliceCmd

	// MULTI/EXEC keeps push, trim and read atomic for the key.
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, int64(-r.windowSize), -1)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		window = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append sample in Redis: %w", err)
	}

	return decodeWindow(window.Val()), nil
}

func (r *RedisClient) Snapshot(ctx context.Context, subjectID string) ([]models.LocationSample, error) {
	entries, err := r.client.LRange(ctx, locationKey(subjectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read window from Redis: %w", err)
	}
	return decodeWindow(entries), nil
}

func (r *RedisClient) Reset(ctx context.Context, subjectID string) error {
	if err := r.client.Del(ctx, journeyKey(subjectID), locationKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("failed to reset session in Redis: %w", err)
	}
	return nil
}

func (r *RedisClient) HasActiveSession(ctx context.Context, subjectID string) (bool, error) {
	n, err := r.client.Exists(ctx, journeyKey(subjectID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session in Redis: %w", err)
	}
	return n > 0, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func decodeWindow(entries []string) []models.LocationSample {
	window := make([]models.LocationSample, 0, len(entries))
	for _, entry := range entries {
		var sample models.LocationSample
		if err := json.Unmarshal([]byte(entry), &sample); err != nil {
			continue // skip malformed entries
		}
		window = append(window, sample)
	}
	return window
}
