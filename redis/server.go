package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/redis/config"
)

// Server wraps asynq server functionality.
type Server struct {
	server *asynq.Server
	cfg    *config.RedisConfig
	lg     *zap.Logger
	mu     sync.Mutex
}

// NewServer creates a task queue server with the provided configuration.
func NewServer(cfg *config.RedisConfig, lg *zap.Logger) *Server {
	if lg == nil {
		lg = zap.NewNop()
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Workers,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				if n >= cfg.MaxRetries {
					lg.Error("task exhausted retries", zap.String("type", task.Type()), zap.Error(err))

					return -1 * time.Second
				}

				delay := time.Duration(1<<uint(n)) * time.Second
				if delay > cfg.RetryInterval {
					delay = cfg.RetryInterval
				}

				lg.Warn("task failed, retry scheduled",
					zap.String("type", task.Type()),
					zap.Int("attempt", n),
					zap.Duration("delay", delay),
					zap.Error(err),
				)

				return delay
			},
			Queues:         cfg.QueuePriorities,
			StrictPriority: true,
		},
	)

	return &Server{
		server: srv,
		cfg:    cfg,
		lg:     lg,
	}
}

// Run serves tasks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, mux *asynq.ServeMux) error {
	s.mu.Lock()

	if err := s.server.Start(mux); err != nil {
		s.mu.Unlock()

		return fmt.Errorf("failed to start task server: %w", err)
	}

	s.mu.Unlock()

	<-ctx.Done()

	s.server.Shutdown()

	return nil
}
