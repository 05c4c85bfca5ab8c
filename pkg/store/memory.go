package store

import (
	"context"
	"sync"

	"github.com/docsync/core/pkg/schedule"
)

// Memory is a process-local SettingsStore. Settings do not survive a restart.
type Memory struct {
	mu   sync.Mutex
	rows map[string]schedule.Settings
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]schedule.Settings)}
}

func (m *Memory) Load(ctx context.Context, key string) (schedule.Settings, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.rows[key]
	if !ok {
		return schedule.Settings{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Create(ctx context.Context, key string, s schedule.Settings) (schedule.Settings, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rows[key]; ok {
		return existing.Clone(), nil
	}
	m.rows[key] = s.Clone()
	return s.Clone(), nil
}

// Update holds the store lock while fn runs, so concurrent updates of any key
// are serialized.
func (m *Memory) Update(ctx context.Context, key string, fn func(*schedule.Settings) error) (schedule.Settings, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.rows[key]
	if !ok {
		return schedule.Settings{}, ErrNotFound
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return current.Clone(), err
	}
	m.rows[key] = next.Clone()
	return next, nil
}

// Keys lists the stored scheduler keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	return keys
}
