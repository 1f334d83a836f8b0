// Package migraterunner applies the database migrations and exits.
package migraterunner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/postgres"
	"github.com/rentdir/bulk-importer/runner"
)

type migrateRunner struct {
	mig *postgres.MigrationRunner
	lg  *zap.Logger
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeMigrate {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	mig := postgres.NewMigrationRunner(cfg.Dsn)

	if cfg.MigrationsDir != "" {
		if err := mig.SetMigrationsDir(cfg.MigrationsDir); err != nil {
			return nil, err
		}
	}

	return &migrateRunner{
		mig: mig,
		lg:  runner.NewLogger(cfg.Debug),
	}, nil
}

func (m *migrateRunner) Run(context.Context) error {
	if err := m.mig.Up(); err != nil {
		return err
	}

	m.lg.Info("migrations applied")

	return nil
}

func (m *migrateRunner) Close(context.Context) error {
	return nil
}
