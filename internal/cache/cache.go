// Package cache keeps session tokens and polled task state in Redis so that
// several processes can share one login.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiranshivaraju/darkwatch/internal/session"
	"github.com/kiranshivaraju/darkwatch/internal/task"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"github.com/redis/go-redis/v9"
)

// TaskStatusTTL bounds how long a recorded task status outlives its last poll.
const TaskStatusTTL = 30 * time.Minute

// RedisCache implements session.TokenStore and task.Recorder using go-redis/v9.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache creates a RedisCache from a Redis URL. Session keys are
// scoped by namespace.
func NewRedisCache(redisURL, namespace string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if namespace == "" {
		namespace = "default"
	}
	return &RedisCache{client: redis.NewClient(opts), namespace: namespace}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// --- session.TokenStore ---

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, SessionKey(c.namespace, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores a token without expiry; the token's own exp claim governs validity.
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, SessionKey(c.namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = SessionKey(c.namespace, k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("delete session keys: %w", err)
	}
	return nil
}

// --- task.Recorder ---

// RecordTaskStatus stores the latest status payload and bumps the poll counter.
func (c *RedisCache) RecordTaskStatus(ctx context.Context, t *models.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, TaskStatusKey(t.ID), data, TaskStatusTTL)
	pipe.Incr(ctx, TaskPollsKey(t.ID))
	pipe.Expire(ctx, TaskPollsKey(t.ID), TaskStatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record task %s: %w", t.ID, err)
	}
	return nil
}

// GetTaskStatus returns the last recorded status of a task.
func (c *RedisCache) GetTaskStatus(ctx context.Context, id string) (*models.Task, bool, error) {
	data, err := c.client.Get(ctx, TaskStatusKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get task %s: %w", id, err)
	}
	var t models.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, false, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &t, true, nil
}

// TaskPolls returns how many statuses have been recorded for a task.
func (c *RedisCache) TaskPolls(ctx context.Context, id string) (int64, error) {
	n, err := c.client.Get(ctx, TaskPollsKey(id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

var (
	_ session.TokenStore = (*RedisCache)(nil)
	_ task.Recorder      = (*RedisCache)(nil)
)
