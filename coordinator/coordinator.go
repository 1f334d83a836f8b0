// Package coordinator drives one bulk-import run: it partitions validated rows
// into batches, submits them sequentially to the import service and folds the
// per-batch tallies into a complete report.
package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/progress"
)

const (
	DefaultBatchSize  = 50
	DefaultBatchDelay = 500 * time.Millisecond
)

// Service is the remote import endpoint, one call per batch.
type Service interface {
	ProcessBatch(ctx context.Context, rows []importer.Row, opts importer.BatchOptions) (importer.BatchResult, error)
}

// Options configure a single run.
type Options struct {
	BatchSize         int
	SkipLogos         bool
	DuplicateHandling string
	// BatchDelay throttles consecutive batch submissions. Zero disables the
	// throttle (used by tests).
	BatchDelay time.Duration
	Monitor    progress.Monitor
}

func (o *Options) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}

	if o.DuplicateHandling == "" {
		o.DuplicateHandling = importer.DuplicateSkip
	}
}

type Coordinator struct {
	svc Service
	lg  *zap.Logger
}

func New(svc Service, lg *zap.Logger) *Coordinator {
	if lg == nil {
		lg = zap.NewNop()
	}

	return &Coordinator{
		svc: svc,
		lg:  lg,
	}
}

// Run submits every valid row in results and returns a report covering each of
// them exactly once. Batches go out strictly one at a time: the sequential
// walk bounds load on the server's image-fetch path and keeps progress
// monotonic. A transport failure marks the whole chunk failed and the run
// continues with the next chunk; rows are never retried automatically.
func (c *Coordinator) Run(ctx context.Context, results []importer.ValidationResult, opts Options) Report {
	opts.normalize()

	var valid []importer.ValidationResult

	for _, res := range results {
		if res.Valid {
			valid = append(valid, res)
		}
	}

	chunks := partition(valid, opts.BatchSize)

	if opts.Monitor != nil {
		opts.Monitor.SetTotal(len(chunks))
	}

	var limiter *rate.Limiter
	if opts.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.BatchDelay), 1)
	}

	report := Report{}
	batchOpts := importer.BatchOptions{
		SkipLogos:         opts.SkipLogos,
		DuplicateHandling: opts.DuplicateHandling,
	}

	for i, chunk := range chunks {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				report = report.merge(transportFailure(chunk, err))

				continue
			}
		}

		rows := make([]importer.Row, 0, len(chunk))
		for _, res := range chunk {
			rows = append(rows, res.Data)
		}

		result, err := c.svc.ProcessBatch(ctx, rows, batchOpts)
		if err != nil {
			c.lg.Warn("batch submission failed",
				zap.Int("batch", i+1),
				zap.Int("rows", len(chunk)),
				zap.Error(err),
			)

			report = report.merge(transportFailure(chunk, err))
		} else {
			report = report.merge(fromBatchResult(chunk, result))
		}

		if opts.Monitor != nil {
			opts.Monitor.Incr(1)
		}

		c.lg.Info("batch complete",
			zap.Int("batch", i+1),
			zap.Int("batches_total", len(chunks)),
			zap.Int("successful", report.Successful),
			zap.Int("failed", report.Failed),
		)
	}

	return report
}

func partition(results []importer.ValidationResult, size int) [][]importer.ValidationResult {
	var chunks [][]importer.ValidationResult

	for start := 0; start < len(results); start += size {
		end := start + size
		if end > len(results) {
			end = len(results)
		}

		chunks = append(chunks, results[start:end])
	}

	return chunks
}
