// Package redis stores scheduler settings as Redis hashes, one hash per
// scheduler key, updated with WATCH/MULTI optimistic transactions.
package redis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/store"
)

// KeyPrefix namespaces the settings hashes.
const KeyPrefix = "docsync:scheduler:"

const maxTxRetries = 10

// Store implements store.SettingsStore on Redis.
type Store struct {
	client   redis.UniversalClient
	location *time.Location
	logger   *logger.Logger
}

// New creates a Redis settings store. Stored timestamps are read back in loc.
func New(client redis.UniversalClient, loc *time.Location, log *logger.Logger) *Store {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.New("settings-store-redis")
	}
	return &Store{client: client, location: loc, logger: log}
}

func hashKey(key string) string {
	return KeyPrefix + key
}

func (s *Store) Load(ctx context.Context, key string) (schedule.Settings, error) {
	start := time.Now()
	settings, err := s.read(ctx, s.client, key)
	s.logOperation("hgetall", start, err)
	return settings, err
}

func (s *Store) Create(ctx context.Context, key string, settings schedule.Settings) (schedule.Settings, error) {
	start := time.Now()
	hkey := hashKey(key)

	var stored schedule.Settings
	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		existing, err := s.read(ctx, tx, key)
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := store.FormatTimestamp(time.Now().In(s.location))
		fields := encode(key, settings)
		fields["created_at"] = now
		fields["updated_at"] = now
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hkey, fields)
			return nil
		})
		stored = settings.Clone()
		return err
	}, hkey)

	s.logOperation("create", start, err)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to create settings for %s: %w", key, err)
	}
	return stored, nil
}

// Update watches the hash while fn runs and retries when another writer
// changed it before the transaction committed.
func (s *Store) Update(ctx context.Context, key string, fn func(*schedule.Settings) error) (schedule.Settings, error) {
	start := time.Now()
	hkey := hashKey(key)

	var (
		updated schedule.Settings
		fnErr   error
	)
	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}

		next := current.Clone()
		if fnErr = fn(&next); fnErr != nil {
			return fnErr
		}

		fields := encode(key, next)
		fields["updated_at"] = store.FormatTimestamp(time.Now().In(s.location))
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hkey, fields)
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}, hkey)

	if fnErr == nil {
		s.logOperation("update", start, err)
	}
	if err != nil {
		return schedule.Settings{}, err
	}
	return updated, nil
}

func (s *Store) withRetry(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug().
			Str("action", "tx_retry").
			Int("attempt", i+1).
			Strs("keys", keys).
			Msg("Settings changed during transaction, retrying")
	}
	return store.ErrConflict
}

// hashReader is satisfied by both the client and a watched transaction.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Store) read(ctx context.Context, c hashReader, key string) (schedule.Settings, error) {
	values, err := c.HGetAll(ctx, hashKey(key)).Result()
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to read settings for %s: %w", key, err)
	}
	if len(values) == 0 {
		return schedule.Settings{}, store.ErrNotFound
	}
	return decode(key, values, s.location)
}

func (s *Store) logOperation(operation string, start time.Time, err error) {
	rows := 1
	if err != nil {
		rows = 0
	}
	if errors.Is(err, store.ErrNotFound) {
		err = nil
	}
	s.logger.LogDatabaseOperation(operation, hashKey("*"), rows, time.Since(start), err)
}

func encode(key string, settings schedule.Settings) map[string]interface{} {
	row := store.EncodeRow(key, settings)
	return map[string]interface{}{
		"scheduler_key": row.Key,
		"sync_enabled":  strconv.FormatBool(row.Enabled),
		"frequency":     row.Frequency,
		"sync_time":     row.SyncTime,
		"weekdays":      row.Weekdays,
		"day_of_month":  strconv.Itoa(row.DayOfMonth),
		"time_format":   row.TimeFormat,
		"last_sync_run": row.LastSyncRun.String,
		"next_sync_run": row.NextSyncRun.String,
	}
}

func decode(key string, values map[string]string, loc *time.Location) (schedule.Settings, error) {
	enabled, err := strconv.ParseBool(values["sync_enabled"])
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("decode %s sync_enabled: %w", key, err)
	}
	day, err := strconv.Atoi(values["day_of_month"])
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("decode %s day_of_month: %w", key, err)
	}

	row := store.Row{
		Key:         key,
		Enabled:     enabled,
		Frequency:   values["frequency"],
		SyncTime:    values["sync_time"],
		Weekdays:    values["weekdays"],
		DayOfMonth:  day,
		TimeFormat:  values["time_format"],
		LastSyncRun: sql.NullString{String: values["last_sync_run"], Valid: values["last_sync_run"] != ""},
		NextSyncRun: sql.NullString{String: values["next_sync_run"], Valid: values["next_sync_run"] != ""},
	}
	return row.Decode(loc)
}
