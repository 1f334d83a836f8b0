// Package webrunner serves the import API backed by postgres and S3.
package webrunner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx sql driver
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/config"
	"github.com/rentdir/bulk-importer/fetchers"
	"github.com/rentdir/bulk-importer/postgres"
	"github.com/rentdir/bulk-importer/processor"
	"github.com/rentdir/bulk-importer/redis"
	redisconfig "github.com/rentdir/bulk-importer/redis/config"
	"github.com/rentdir/bulk-importer/runner"
	"github.com/rentdir/bulk-importer/s3uploader"
	"github.com/rentdir/bulk-importer/tlmt"
	"github.com/rentdir/bulk-importer/web"
)

type webRunner struct {
	cfg   *runner.Config
	db    *sql.DB
	queue *redis.Client
	srv   *web.Server
	lg    *zap.Logger
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeWeb {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	lg := runner.NewLogger(cfg.Debug)

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

	var queue *redis.Client

	if cfg.UseQueue {
		redisCfg, err := redisconfig.NewRedisConfig()
		if err != nil {
			db.Close()

			return nil, fmt.Errorf("failed to load redis config: %w", err)
		}

		queue, err = redis.NewClient(redisCfg)
		if err != nil {
			db.Close()

			return nil, err
		}

		lg.Info("async batch submission enabled", zap.String("redis", redisCfg.GetRedisAddr()))
	}

	repo := postgres.NewRepository(db)

	srv := web.New(web.Config{
		Addr:     cfg.Addr,
		Accounts: repo,
		Proc:     proc,
		Queue:    webQueue(queue),
		Logger:   lg,
	})

	return &webRunner{
		cfg:   cfg,
		db:    db,
		queue: queue,
		srv:   srv,
		lg:    lg,
	}, nil
}

// webQueue keeps a nil *redis.Client from turning into a non-nil interface.
func webQueue(c *redis.Client) web.TaskQueue {
	if c == nil {
		return nil
	}

	return c
}

// buildProcessor assembles the batch processor. The image store is optional:
// without AWS credentials imports run with logos disabled.
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

func (w *webRunner) Run(ctx context.Context) error {
	evt := tlmt.NewEvent("web_runner", map[string]any{"addr": w.cfg.Addr})
	_ = runner.Telemetry().Send(ctx, evt)

	return w.srv.Start(ctx)
}

func (w *webRunner) Close(context.Context) error {
	var err error

	if w.queue != nil {
		err = multierr.Append(err, w.queue.Close())
	}

	return multierr.Append(err, w.db.Close())
}
