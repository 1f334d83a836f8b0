// Package config provides Redis connection settings for the import queue.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rentdir/bulk-importer/redis/tasks"
)

// RedisConfig holds connection and worker parameters for the task queue.
type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	Workers         int
	RetryInterval   time.Duration
	MaxRetries      int
	RetentionPeriod time.Duration
	QueuePriorities map[string]int
}

const (
	defaultHost          = "localhost"
	defaultPort          = 6379
	defaultWorkers       = 4
	defaultRetryInterval = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetentionDays = 7
)

// DefaultQueuePriorities defines the default priority settings for task queues.
var DefaultQueuePriorities = map[string]int{
	tasks.PriorityCritical: 6,
	tasks.PriorityDefault:  3,
	tasks.PriorityLow:      1,
}

// NewRedisConfig builds a configuration from environment variables. A
// REDIS_URL takes precedence over the individual REDIS_* variables.
func NewRedisConfig() (*RedisConfig, error) {
	cfg := &RedisConfig{
		Host:            getEnvOrDefault("REDIS_HOST", defaultHost),
		Port:            defaultPort,
		Password:        os.Getenv("REDIS_PASSWORD"),
		Workers:         defaultWorkers,
		RetryInterval:   defaultRetryInterval,
		MaxRetries:      defaultMaxRetries,
		RetentionPeriod: defaultRetentionDays * 24 * time.Hour,
		QueuePriorities: make(map[string]int),
	}

	for queue, priority := range DefaultQueuePriorities {
		cfg.QueuePriorities[queue] = priority
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if err := cfg.applyURL(redisURL); err != nil {
			return nil, err
		}

		return cfg, nil
	}

	var err error

	if cfg.Port, err = intInRange("REDIS_PORT", defaultPort, 1, 65535); err != nil {
		return nil, err
	}

	if cfg.DB, err = intInRange("REDIS_DB", 0, 0, 15); err != nil {
		return nil, err
	}

	if cfg.Workers, err = intInRange("REDIS_WORKERS", defaultWorkers, 1, 100); err != nil {
		return nil, err
	}

	if cfg.MaxRetries, err = intInRange("REDIS_MAX_RETRIES", defaultMaxRetries, 0, 10); err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_RETRY_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid retry interval: %w", err)
		}

		cfg.RetryInterval = interval
	}

	days, err := intInRange("REDIS_RETENTION_DAYS", defaultRetentionDays, 1, 365)
	if err != nil {
		return nil, err
	}

	cfg.RetentionPeriod = time.Duration(days) * 24 * time.Hour

	return cfg, nil
}

func (c *RedisConfig) applyURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid Redis URL: %w", err)
	}

	if host := parsed.Hostname(); host != "" {
		c.Host = host
	}

	if port := parsed.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port in Redis URL: %w", err)
		}

		c.Port = p
	}

	if password, ok := parsed.User.Password(); ok {
		c.Password = password
	}

	if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
		db, err := strconv.Atoi(path)
		if err != nil {
			return fmt.Errorf("invalid database number in Redis URL: %w", err)
		}

		c.DB = db
	}

	return nil
}

// GetRedisAddr returns the formatted Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	host := c.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}

	return fmt.Sprintf("%s:%d", host, c.Port)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func intInRange(key string, fallback, minVal, maxVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}

	if v < minVal || v > maxVal {
		return 0, fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
	}

	return v, nil
}
