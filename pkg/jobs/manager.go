package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/docsync/core/pkg/logger"
)

// Manager owns every scheduler of the process. Schedulers are independent:
// each has its own poller and one failing to start does not stop the others.
type Manager struct {
	mu         sync.RWMutex
	schedulers map[string]*Scheduler
	order      []string
	logger     *logger.Logger
}

// NewManager creates an empty scheduler manager
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.New("scheduler-manager")
	}
	return &Manager{
		schedulers: make(map[string]*Scheduler),
		logger:     log,
	}
}

// Register adds a scheduler to the manager
func (m *Manager) Register(s *Scheduler) error {
	if s == nil {
		return errors.New("scheduler cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.schedulers[s.Key()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateScheduler, s.Key())
	}
	m.schedulers[s.Key()] = s
	m.order = append(m.order, s.Key())

	m.logger.Info().
		Str("action", "register_scheduler").
		Str("scheduler", s.Key()).
		Str("name", s.Name()).
		Str("poll_schedule", s.Poller().Spec()).
		Msg("Registering scheduler")
	return nil
}

// Start starts every registered scheduler. Failures are logged and returned
// together after all schedulers were attempted.
func (m *Manager) Start(ctx context.Context) error {
	schedulers := m.Schedulers()

	m.logger.Info().
		Str("action", "start").
		Int("scheduler_count", len(schedulers)).
		Msg("Starting scheduler manager")

	var errs []error
	for _, s := range schedulers {
		if err := s.Start(ctx); err != nil {
			m.logger.Error().
				Err(err).
				Str("action", "scheduler_start_failed").
				Str("scheduler", s.Key()).
				Msg("Failed to start scheduler")
			errs = append(errs, fmt.Errorf("%s: %w", s.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// Stop stops every scheduler and waits for in-flight scheduled runs
func (m *Manager) Stop() {
	m.logger.Info().
		Str("action", "stop_initiated").
		Msg("Stopping scheduler manager")

	var waits []context.Context
	for _, s := range m.Schedulers() {
		waits = append(waits, s.Stop())
	}
	for _, ctx := range waits {
		<-ctx.Done()
	}

	m.logger.Info().
		Str("action", "stopped").
		Msg("Scheduler manager stopped")
}

// Get returns the scheduler registered under key
func (m *Manager) Get(key string) (*Scheduler, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedulers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchedulerNotFound, key)
	}
	return s, nil
}

// Schedulers returns all schedulers in registration order
func (m *Manager) Schedulers() []*Scheduler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Scheduler, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.schedulers[key])
	}
	return out
}

// Status returns status information for all schedulers
func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	schedulers := m.Schedulers()
	statuses := make([]Status, 0, len(schedulers))
	for _, s := range schedulers {
		status, err := s.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get status for scheduler %s: %w", s.Key(), err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
