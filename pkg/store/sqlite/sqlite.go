// Package sqlite stores scheduler settings in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/docsync/core/pkg/database"
	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/store"
)

//go:embed schema.sql
var schema string

const selectColumns = `scheduler_key, sync_enabled, frequency, sync_time, weekdays,
	day_of_month, time_format, last_sync_run, next_sync_run`

// Store implements store.SettingsStore on SQLite.
type Store struct {
	db       *sqlx.DB
	location *time.Location
	logger   *logger.Logger
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string, loc *time.Location, log *logger.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.New("settings-store-sqlite")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection serializes writers, which makes every transaction exclusive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	applyPragmas(ctx, db, log)

	if err := database.MigrateDB(logger.Nop().ToContext(ctx), db.DB, schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, location: loc, logger: log}, nil
}

var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// applyPragmas tunes the connection. A failed pragma leaves the store usable
// with SQLite defaults, so it is logged rather than returned.
func applyPragmas(ctx context.Context, db execer, log *logger.Logger) {
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			log.Warn().
				Err(err).
				Str("action", "sqlite_pragma_failed").
				Str("pragma", pragma).
				Msg("Failed to apply SQLite pragma, continuing with defaults")
		}
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Load(ctx context.Context, key string) (schedule.Settings, error) {
	start := time.Now()
	settings, err := s.get(ctx, s.db, key)
	s.logOperation("select", start, err)
	return settings, err
}

func (s *Store) Create(ctx context.Context, key string, settings schedule.Settings) (schedule.Settings, error) {
	start := time.Now()
	now := store.FormatTimestamp(time.Now().In(s.location))

	res, err := s.db.NamedExecContext(ctx, `INSERT INTO scheduler_settings
		(scheduler_key, sync_enabled, frequency, sync_time, weekdays, day_of_month, time_format,
		 last_sync_run, next_sync_run, created_at, updated_at)
		VALUES (:scheduler_key, :sync_enabled, :frequency, :sync_time, :weekdays, :day_of_month, :time_format,
		 :last_sync_run, :next_sync_run, :created_at, :updated_at)
		ON CONFLICT (scheduler_key) DO NOTHING`, params(key, settings, now, now))
	affected := 0
	if err == nil {
		n, _ := res.RowsAffected()
		affected = int(n)
	}
	s.logger.LogDatabaseOperation("insert", store.TableName, affected, time.Since(start), err)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to create settings for %s: %w", key, err)
	}
	return s.Load(ctx, key)
}

func (s *Store) Update(ctx context.Context, key string, fn func(*schedule.Settings) error) (schedule.Settings, error) {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.get(ctx, tx, key)
	if err != nil {
		return schedule.Settings{}, err
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return current, err
	}

	now := store.FormatTimestamp(time.Now().In(s.location))
	_, err = tx.NamedExecContext(ctx, `UPDATE scheduler_settings SET
		sync_enabled = :sync_enabled, frequency = :frequency, sync_time = :sync_time, weekdays = :weekdays,
		day_of_month = :day_of_month, time_format = :time_format, last_sync_run = :last_sync_run,
		next_sync_run = :next_sync_run, updated_at = :updated_at
		WHERE scheduler_key = :scheduler_key`, params(key, next, "", now))
	if err == nil {
		err = tx.Commit()
	}
	s.logOperation("update", start, err)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to update settings for %s: %w", key, err)
	}
	return next, nil
}

// Keys lists every stored scheduler key in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys, `SELECT scheduler_key FROM scheduler_settings ORDER BY scheduler_key`)
	return keys, err
}

type getter interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) get(ctx context.Context, q getter, key string) (schedule.Settings, error) {
	var row store.Row
	err := q.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM scheduler_settings WHERE scheduler_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Settings{}, store.ErrNotFound
	}
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to read settings for %s: %w", key, err)
	}
	return row.Decode(s.location)
}

func (s *Store) logOperation(operation string, start time.Time, err error) {
	rows := 1
	if err != nil {
		rows = 0
	}
	if errors.Is(err, store.ErrNotFound) {
		err = nil
	}
	s.logger.LogDatabaseOperation(operation, store.TableName, rows, time.Since(start), err)
}

func params(key string, settings schedule.Settings, createdAt, updatedAt string) map[string]interface{} {
	row := store.EncodeRow(key, settings)
	return map[string]interface{}{
		"scheduler_key": row.Key,
		"sync_enabled":  row.Enabled,
		"frequency":     row.Frequency,
		"sync_time":     row.SyncTime,
		"weekdays":      row.Weekdays,
		"day_of_month":  row.DayOfMonth,
		"time_format":   row.TimeFormat,
		"last_sync_run": row.LastSyncRun,
		"next_sync_run": row.NextSyncRun,
		"created_at":    createdAt,
		"updated_at":    updatedAt,
	}
}
