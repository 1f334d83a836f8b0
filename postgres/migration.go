package postgres

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationRunner applies the schema migrations under scripts/migrations using
// golang-migrate. Files follow {version}_{description}.up.sql/.down.sql and run
// in version order; applied versions are tracked in schema_migrations.
type MigrationRunner struct {
	dsn           string
	migrationsDir string
	logger        *log.Logger
	timeout       time.Duration
}

func NewMigrationRunner(dsn string) *MigrationRunner {
	return &MigrationRunner{
		dsn:     dsn,
		logger:  log.New(os.Stdout, "[migration] ", log.LstdFlags),
		timeout: 30 * time.Second,
	}
}

func (m *MigrationRunner) SetMigrationsDir(dir string) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid directory path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("cannot stat migrations dir: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", absPath)
	}

	m.migrationsDir = absPath

	return nil
}

func (m *MigrationRunner) dir() string {
	if m.migrationsDir != "" {
		return m.migrationsDir
	}

	return filepath.Join("scripts", "migrations")
}

// Up applies all pending migrations.
func (m *MigrationRunner) Up() error {
	mig, err := migrate.New("file://"+m.dir(), m.dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	defer func() {
		_, _ = mig.Close()
	}()

	m.logger.Printf("applying migrations from %s", m.dir())

	if err := mig.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Println("schema is up to date")

			return nil
		}

		return fmt.Errorf("migration failed: %w", err)
	}

	m.logger.Println("migrations applied")

	return nil
}
