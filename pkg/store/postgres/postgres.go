// Package postgres stores scheduler settings in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/store"
)

// Schema creates the settings table. Timestamps are naive local wall-clock values.
const Schema = `CREATE TABLE IF NOT EXISTS scheduler_settings (
	scheduler_key VARCHAR(100) PRIMARY KEY,
	sync_enabled  BOOLEAN      NOT NULL DEFAULT FALSE,
	frequency     VARCHAR(10)  NOT NULL CHECK (frequency IN ('DAILY', 'WEEKLY', 'MONTHLY')),
	sync_time     CHAR(5)      NOT NULL,
	weekdays      VARCHAR(27)  NOT NULL DEFAULT '',
	day_of_month  SMALLINT     NOT NULL DEFAULT 1 CHECK (day_of_month BETWEEN 1 AND 31),
	time_format   VARCHAR(3)   NOT NULL DEFAULT '24h',
	last_sync_run TIMESTAMP WITHOUT TIME ZONE,
	next_sync_run TIMESTAMP WITHOUT TIME ZONE,
	created_at    TIMESTAMP WITHOUT TIME ZONE NOT NULL DEFAULT now(),
	updated_at    TIMESTAMP WITHOUT TIME ZONE NOT NULL DEFAULT now()
)`

const selectColumns = `scheduler_key, sync_enabled, frequency, sync_time, weekdays,
	day_of_month, time_format, last_sync_run, next_sync_run`

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store implements store.SettingsStore on a pgx connection pool.
type Store struct {
	db       DB
	location *time.Location
	logger   *logger.Logger
}

// New creates a Postgres settings store. Stored timestamps are read back in loc.
func New(db DB, loc *time.Location, log *logger.Logger) *Store {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.New("settings-store-postgres")
	}
	return &Store{db: db, location: loc, logger: log}
}

func (s *Store) Load(ctx context.Context, key string) (schedule.Settings, error) {
	start := time.Now()
	settings, err := s.scan(s.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM scheduler_settings WHERE scheduler_key = $1`, key))
	s.logOperation("select", start, err)
	return settings, err
}

func (s *Store) Create(ctx context.Context, key string, settings schedule.Settings) (schedule.Settings, error) {
	start := time.Now()
	tag, err := s.db.Exec(ctx, `INSERT INTO scheduler_settings
		(scheduler_key, sync_enabled, frequency, sync_time, weekdays, day_of_month, time_format, last_sync_run, next_sync_run)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (scheduler_key) DO NOTHING`,
		key,
		settings.Enabled,
		string(settings.Frequency),
		settings.TimeOfDay.String(),
		settings.Weekdays.String(),
		settings.DayOfMonth,
		string(settings.TimeFormat),
		naive(settings.LastRunAt),
		naive(settings.NextRunAt),
	)
	s.logger.LogDatabaseOperation("insert", store.TableName, int(tag.RowsAffected()), time.Since(start), err)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to create settings for %s: %w", key, err)
	}
	return s.Load(ctx, key)
}

// Update locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (s *Store) Update(ctx context.Context, key string, fn func(*schedule.Settings) error) (schedule.Settings, error) {
	start := time.Now()
	var (
		updated schedule.Settings
		fnErr   error
	)

	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := s.scan(tx.QueryRow(ctx,
			`SELECT `+selectColumns+` FROM scheduler_settings WHERE scheduler_key = $1 FOR UPDATE`, key))
		if err != nil {
			return err
		}

		next := current.Clone()
		if fnErr = fn(&next); fnErr != nil {
			return fnErr
		}

		_, err = tx.Exec(ctx, `UPDATE scheduler_settings SET
			sync_enabled = $2, frequency = $3, sync_time = $4, weekdays = $5, day_of_month = $6,
			time_format = $7, last_sync_run = $8, next_sync_run = $9, updated_at = now()
			WHERE scheduler_key = $1`,
			key,
			next.Enabled,
			string(next.Frequency),
			next.TimeOfDay.String(),
			next.Weekdays.String(),
			next.DayOfMonth,
			string(next.TimeFormat),
			naive(next.LastRunAt),
			naive(next.NextRunAt),
		)
		if err != nil {
			return fmt.Errorf("failed to update settings for %s: %w", key, err)
		}
		updated = next
		return nil
	})
	if fnErr == nil {
		s.logOperation("update", start, err)
	}
	if err != nil {
		return schedule.Settings{}, err
	}
	return updated, nil
}

func (s *Store) scan(row pgx.Row) (schedule.Settings, error) {
	var (
		r          store.Row
		last, next *time.Time
	)
	err := row.Scan(&r.Key, &r.Enabled, &r.Frequency, &r.SyncTime, &r.Weekdays,
		&r.DayOfMonth, &r.TimeFormat, &last, &next)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Settings{}, store.ErrNotFound
	}
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to scan settings: %w", err)
	}

	settings, err := r.Decode(s.location)
	if err != nil {
		return schedule.Settings{}, err
	}
	if last != nil {
		t := store.InLocation(*last, s.location)
		settings.LastRunAt = &t
	}
	if next != nil {
		t := store.InLocation(*next, s.location)
		settings.NextRunAt = &t
	}
	return settings, nil
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

// naive converts a marker to a zone-less value so the driver stores the wall clock.
func naive(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := store.InLocation(*t, time.UTC)
	return &n
}
