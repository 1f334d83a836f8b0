// Package config provides access to dynamic configuration values stored in the
// system_config table. Environment variables override stored values; lookups
// are cached with a short TTL so the import hot path does not hit the database
// per row.
package config

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Keys for the import tunables.
const (
	KeyLogoDelayMs     = "import.logo_delay_ms"
	KeyFetchTimeoutSec = "import.fetch_timeout_secs"
	KeyRowConcurrency  = "import.row_concurrency"
)

const defaultTTL = time.Minute

type cachedEntry struct {
	value     string
	expiresAt time.Time
}

type Service struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[string]cachedEntry
}

func New(db *sql.DB) *Service {
	return &Service{db: db, cache: make(map[string]cachedEntry)}
}

// GetString returns a string config value. The env var name is derived from
// key by uppercasing and replacing dots with underscores.
func (s *Service) GetString(ctx context.Context, key, defaultValue string) (string, error) {
	if v, ok := s.envOverride(key); ok {
		return v, nil
	}

	if v, ok := s.getFromCache(key); ok {
		return v, nil
	}

	const q = `SELECT value FROM system_config WHERE key = $1 LIMIT 1`

	var v string

	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultValue, nil
		}

		return "", err
	}

	s.putInCache(key, v)

	return v, nil
}

// GetInt returns an integer config value, falling back to defaultValue when
// the key is absent or unparsable.
func (s *Service) GetInt(ctx context.Context, key string, defaultValue int) (int, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil {
		return 0, err
	}

	if v == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return defaultValue, nil
	}

	return parsed, nil
}

// GetDuration reads an integer key holding a count of unit (e.g. milliseconds).
func (s *Service) GetDuration(ctx context.Context, key string, unit, defaultValue time.Duration) (time.Duration, error) {
	def := int(defaultValue / unit)

	n, err := s.GetInt(ctx, key, def)
	if err != nil {
		return 0, err
	}

	return time.Duration(n) * unit, nil
}

func (s *Service) envOverride(key string) (string, bool) {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))

	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

func (s *Service) getFromCache(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}

	return entry.value, true
}

func (s *Service) putInCache(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = cachedEntry{value: value, expiresAt: time.Now().Add(defaultTTL)}
}
