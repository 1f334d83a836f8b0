// Package redis wraps the asynq client and server used for queued imports.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/rentdir/bulk-importer/redis/config"
	"github.com/rentdir/bulk-importer/redis/tasks"
)

// Client wraps asynq client functionality.
type Client struct {
	client *asynq.Client
	cfg    *config.RedisConfig
	mu     sync.RWMutex
}

// NewClient creates a queue client and verifies the connection.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	if err := testConnection(client); err != nil {
		client.Close()

		return nil, err
	}

	return &Client{
		client: client,
		cfg:    cfg,
	}, nil
}

// EnqueueTask enqueues a task with the given type and payload. Tasks land on
// the default-priority queue and are retained per the configured retention
// period unless the caller's options say otherwise.
func (c *Client) EnqueueTask(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := append([]asynq.Option{
		asynq.Queue(tasks.PriorityDefault),
		asynq.Retention(c.cfg.RetentionPeriod),
	}, opts...)

	task := asynq.NewTask(taskType, payload)
	if _, err := c.client.EnqueueContext(ctx, task, all...); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.client.Close()
}

func testConnection(client *asynq.Client) error {
	task := asynq.NewTask(tasks.TypeConnectionTest, nil)
	if _, err := client.EnqueueContext(context.Background(), task, asynq.Queue(tasks.PriorityLow)); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}
