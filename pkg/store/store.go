// Package store persists scheduler settings. The in-memory implementation lives
// here; database backed ones live in the postgres, redis and sqlite subpackages.
package store

import (
	"context"
	"errors"

	"github.com/docsync/core/pkg/schedule"
)

// TableName is the relational table holding one row per scheduler key.
const TableName = "scheduler_settings"

var (
	// ErrNotFound is returned when no settings exist for a scheduler key.
	ErrNotFound = errors.New("scheduler settings not found")
	// ErrConflict is returned when a concurrent writer kept an optimistic
	// transaction from committing after all retries.
	ErrConflict = errors.New("scheduler settings changed concurrently")
)

// SettingsStore is the persistence contract the scheduler depends on.
type SettingsStore interface {
	// Load returns the settings stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) (schedule.Settings, error)
	// Create inserts s under key unless a row already exists, and returns the
	// row that is stored afterwards.
	Create(ctx context.Context, key string, s schedule.Settings) (schedule.Settings, error)
	// Update runs fn against the current row inside one transaction and
	// persists the result. Nothing is written when fn returns an error.
	Update(ctx context.Context, key string, fn func(*schedule.Settings) error) (schedule.Settings, error)
}
