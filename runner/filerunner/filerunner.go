// Package filerunner imports a local CSV or JSON file through the import API.
package filerunner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/coordinator"
	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/progress"
	"github.com/rentdir/bulk-importer/runner"
	"github.com/rentdir/bulk-importer/sqlite"
	"github.com/rentdir/bulk-importer/tlmt"
)

type fileRunner struct {
	cfg   *runner.Config
	input io.Reader
	store *sqlite.Store
	lg    *zap.Logger
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeFile {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	ans := &fileRunner{
		cfg: cfg,
		lg:  runner.NewLogger(cfg.Debug),
	}

	if err := ans.setInput(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	store, err := sqlite.New(filepath.Join(cfg.DataFolder, "runs.db"))
	if err != nil {
		return nil, err
	}

	ans.store = store

	return ans, nil
}

func (r *fileRunner) Run(ctx context.Context) (err error) {
	t0 := time.Now().UTC()

	var report coordinator.Report

	defer func() {
		params := map[string]any{
			"successful": report.Successful,
			"failed":     report.Failed,
			"duration":   time.Now().UTC().Sub(t0).String(),
		}

		if err != nil {
			params["error"] = err.Error()
		}

		evt := tlmt.NewEvent("import_run", params)

		_ = runner.Telemetry().Send(ctx, evt)
	}()

	raw, err := io.ReadAll(r.input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	rows, err := r.parse(string(raw))
	if err != nil {
		return err
	}

	results := importer.Validate(rows)

	validCount := 0

	for _, res := range results {
		if res.Valid {
			validCount++
		}
	}

	run := &sqlite.Run{
		ID:        uuid.New().String(),
		FileName:  filepath.Base(r.cfg.InputFile),
		Status:    sqlite.RunStatusRunning,
		TotalRows: len(rows),
		ValidRows: validCount,
		StartedAt: t0,
	}

	if err := r.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	r.lg.Info("starting import",
		zap.String("file", run.FileName),
		zap.Int("rows", len(rows)),
		zap.Int("valid", validCount),
	)

	svc := coordinator.NewHTTPService(r.cfg.ServerURL, r.cfg.APIToken)
	coord := coordinator.New(svc, r.lg)

	report = coord.Run(ctx, results, coordinator.Options{
		BatchSize:         r.cfg.BatchSize,
		BatchDelay:        r.cfg.BatchDelay,
		SkipLogos:         r.cfg.SkipLogos,
		DuplicateHandling: r.cfg.DuplicateHandling,
		Monitor:           progress.New(),
	})

	run.Successful = report.Successful
	run.Failed = report.Failed
	run.Status = sqlite.RunStatusDone

	if err := r.store.FinishRun(ctx, run); err != nil {
		r.lg.Warn("failed to finalize run record", zap.Error(err))
	}

	if err := r.writeErrorLog(report); err != nil {
		return err
	}

	r.lg.Info("import finished",
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
	)

	return nil
}

func (r *fileRunner) Close(context.Context) error {
	var err error

	if closer, ok := r.input.(io.Closer); ok && r.input != os.Stdin {
		err = multierr.Append(err, closer.Close())
	}

	if r.store != nil {
		err = multierr.Append(err, r.store.Close())
	}

	return err
}

func (r *fileRunner) setInput() error {
	if r.cfg.InputFile == "stdin" {
		r.input = os.Stdin

		return nil
	}

	f, err := os.Open(r.cfg.InputFile)
	if err != nil {
		return err
	}

	r.input = f

	return nil
}

func (r *fileRunner) parse(raw string) ([]importer.Row, error) {
	switch strings.ToLower(filepath.Ext(r.cfg.InputFile)) {
	case ".json":
		return importer.ParseJSON(raw)
	default:
		return importer.ParseCSV(raw)
	}
}

// writeErrorLog saves the per-row failures next to the input file so the
// operator can fix and re-import only the rows that failed.
func (r *fileRunner) writeErrorLog(report coordinator.Report) error {
	if len(report.Failures) == 0 {
		return nil
	}

	path := r.cfg.ErrorLogFile
	if path == "" {
		base := strings.TrimSuffix(r.cfg.InputFile, filepath.Ext(r.cfg.InputFile))
		path = base + "_errors.csv"
	}

	if err := os.WriteFile(path, report.ErrorLogCSV(), 0o644); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}

	r.lg.Info("error log written", zap.String("path", path), zap.Int("failures", len(report.Failures)))

	return nil
}
