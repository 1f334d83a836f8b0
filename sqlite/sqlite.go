// Package sqlite keeps a local history of import runs.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// Run records one execution of a file import.
type Run struct {
	ID         string
	FileName   string
	Status     string
	TotalRows  int
	ValidRows  int
	Successful int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Run statuses
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := initDatabase(path)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	const q = `INSERT INTO import_runs
		(id, file_name, status, total_rows, valid_rows, successful, failed, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		run.ID, run.FileName, run.Status,
		run.TotalRows, run.ValidRows, run.Successful, run.Failed,
		run.StartedAt.Unix(),
	)

	return err
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	const q = `UPDATE import_runs
		SET status = ?, total_rows = ?, valid_rows = ?, successful = ?, failed = ?, finished_at = ?
		WHERE id = ?`

	_, err := s.db.ExecContext(ctx, q,
		run.Status, run.TotalRows, run.ValidRows, run.Successful, run.Failed,
		time.Now().UTC().Unix(), run.ID,
	)

	return err
}

// Runs returns the run history, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, file_name, status, total_rows, valid_rows, successful, failed, started_at, finished_at
		FROM import_runs ORDER BY started_at DESC`

	var args []any

	if limit > 0 {
		q += " LIMIT ?"

		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ans []Run

	for rows.Next() {
		var (
			run      Run
			started  int64
			finished sql.NullInt64
		)

		err := rows.Scan(&run.ID, &run.FileName, &run.Status,
			&run.TotalRows, &run.ValidRows, &run.Successful, &run.Failed,
			&started, &finished)
		if err != nil {
			return nil, err
		}

		run.StartedAt = time.Unix(started, 0).UTC()

		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			run.FinishedAt = &t
		}

		ans = append(ans, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ans, nil
}

func initDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, createSchema(db)
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS import_runs (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			status TEXT NOT NULL,
			total_rows INT NOT NULL,
			valid_rows INT NOT NULL,
			successful INT NOT NULL,
			failed INT NOT NULL,
			started_at INT NOT NULL,
			finished_at INT
		)
	`)

	return err
}
