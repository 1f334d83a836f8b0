// Package workerrunner processes queued import batches from Redis.
package workerrunner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx sql driver
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/config"
	"github.com/rentdir/bulk-importer/fetchers"
	"github.com/rentdir/bulk-importer/postgres"
	"github.com/rentdir/bulk-importer/processor"
	"github.com/rentdir/bulk-importer/redis"
	redisconfig "github.com/rentdir/bulk-importer/redis/config"
	"github.com/rentdir/bulk-importer/redis/tasks"
	"github.com/rentdir/bulk-importer/runner"
	"github.com/rentdir/bulk-importer/s3uploader"
	"github.com/rentdir/bulk-importer/tlmt"
)

type workerRunner struct {
	cfg    *runner.Config
	db     *sql.DB
	server *redis.Server
	mux    *asynq.ServeMux
	lg     *zap.Logger
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeWorker {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	lg := runner.NewLogger(cfg.Debug)

	redisCfg, err := redisconfig.NewRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load redis config: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := redis.Ping(pingCtx, redisCfg); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.Dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(time.Minute)

	proc, err := buildProcessor(cfg, db, lg)
	if err != nil {
		db.Close()

		return nil, err
	}

	handler := tasks.NewHandler(proc,
		tasks.WithTaskTimeout(10*time.Minute),
		tasks.WithLogger(lg),
	)

	mux := asynq.NewServeMux()
	handler.Register(mux)

	return &workerRunner{
		cfg:    cfg,
		db:     db,
		server: redis.NewServer(redisCfg, lg),
		mux:    mux,
		lg:     lg,
	}, nil
}

func buildProcessor(cfg *runner.Config, db *sql.DB, lg *zap.Logger) (*processor.Processor, error) {
	repo := postgres.NewRepository(db)
	cfgSvc := config.New(db)

	var images processor.ImageStore

	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" && cfg.AwsRegion != "" && cfg.S3Bucket != "" {
		uploader, err := s3uploader.New(cfg.AwsAccessKey, cfg.AwsSecretKey, cfg.AwsRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3: %w", err)
		}

		images = processor.NewS3ImageStore(uploader, cfg.S3Bucket)
	} else {
		lg.Warn("no S3 configuration, importing without logos")
	}

	fetchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fetchTimeout, err := cfgSvc.GetDuration(fetchCtx, config.KeyFetchTimeoutSec, time.Second, fetchers.DefaultTimeout)
	if err != nil {
		fetchTimeout = fetchers.DefaultTimeout
	}

	fetcher := fetchers.NewHTTPLogoFetcher(fetchTimeout)

	return processor.New(repo, images, fetcher, cfgSvc, lg), nil
}

func (w *workerRunner) Run(ctx context.Context) error {
	evt := tlmt.NewEvent("worker_runner", nil)
	_ = runner.Telemetry().Send(ctx, evt)

	w.lg.Info("worker starting")

	return w.server.Run(ctx, w.mux)
}

func (w *workerRunner) Close(context.Context) error {
	return w.db.Close()
}
