package config_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/rentdir/bulk-importer/config"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE system_config (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	return db
}

func Test_GetString(t *testing.T) {
	db := newTestDB(t)
	svc := config.New(db)
	ctx := context.Background()

	v, err := svc.GetString(ctx, "import.logo_delay_ms", "200")
	require.NoError(t, err)
	require.Equal(t, "200", v)

	_, err = db.Exec(`INSERT INTO system_config (key, value) VALUES ($1, $2)`, "import.logo_delay_ms", "500")
	require.NoError(t, err)

	v, err = svc.GetString(ctx, "import.logo_delay_ms", "200")
	require.NoError(t, err)
	require.Equal(t, "500", v)
}

func Test_GetString_EnvOverride(t *testing.T) {
	db := newTestDB(t)
	svc := config.New(db)

	t.Setenv("IMPORT_ROW_CONCURRENCY", "4")

	v, err := svc.GetString(context.Background(), "import.row_concurrency", "1")
	require.NoError(t, err)
	require.Equal(t, "4", v)
}

func Test_GetString_CachesLookups(t *testing.T) {
	db := newTestDB(t)
	svc := config.New(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO system_config (key, value) VALUES ($1, $2)`, "import.fetch_timeout_secs", "15")
	require.NoError(t, err)

	v, err := svc.GetString(ctx, "import.fetch_timeout_secs", "")
	require.NoError(t, err)
	require.Equal(t, "15", v)

	_, err = db.Exec(`UPDATE system_config SET value = $1 WHERE key = $2`, "30", "import.fetch_timeout_secs")
	require.NoError(t, err)

	// Still the cached value until the TTL expires.
	v, err = svc.GetString(ctx, "import.fetch_timeout_secs", "")
	require.NoError(t, err)
	require.Equal(t, "15", v)
}

func Test_GetInt(t *testing.T) {
	db := newTestDB(t)
	svc := config.New(db)
	ctx := context.Background()

	n, err := svc.GetInt(ctx, "import.row_concurrency", 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = db.Exec(`INSERT INTO system_config (key, value) VALUES ($1, $2)`, "import.row_concurrency", "8")
	require.NoError(t, err)

	n, err = svc.GetInt(ctx, "import.row_concurrency", 1)
	require.NoError(t, err)
	require.Equal(t, 8, n)
}

func Test_GetInt_UnparsableFallsBack(t *testing.T) {
	db := newTestDB(t)
	svc := config.New(db)

	_, err := db.Exec(`INSERT INTO system_config (key, value) VALUES ($1, $2)`, "import.row_concurrency", "lots")
	require.NoError(t, err)

	n, err := svc.GetInt(context.Background(), "import.row_concurrency", 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func Test_GetDuration(t *testing.T) {
	db := newTestDB(t)
	svc := config.New(db)
	ctx := context.Background()

	d, err := svc.GetDuration(ctx, "import.logo_delay_ms", time.Millisecond, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 200*time.Millisecond, d)

	_, err = db.Exec(`INSERT INTO system_config (key, value) VALUES ($1, $2)`, "import.logo_delay_ms", "50")
	require.NoError(t, err)

	d, err = svc.GetDuration(ctx, "import.logo_delay_ms", time.Millisecond, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, d)
}
