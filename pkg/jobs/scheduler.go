package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/store"
)

// State is the lifecycle state of a scheduler.
type State string

const (
	StateDisabled State = "disabled"
	StateIdle     State = "idle"
	StateFiring   State = "firing"
)

// Definition describes one recurring scheduler: its persisted key, the
// settings used the first time the key is seen, and the job it dispatches.
type Definition struct {
	Key      string
	Name     string
	Defaults schedule.Settings
	Job      Job
}

// Options tunes a Scheduler. Zero values select the defaults.
type Options struct {
	PollInterval time.Duration
	Clock        Clock
	Logger       *logger.Logger
}

// Status is the read model served by the admin API.
type Status struct {
	Key          string               `json:"key"`
	Name         string               `json:"name"`
	State        State                `json:"state"`
	Settings     schedule.Settings    `json:"settings"`
	Description  string               `json:"description"`
	DisplayTime  string               `json:"display_time"`
	PollInterval string               `json:"poll_interval"`
	LastOutcome  *schedule.RunOutcome `json:"last_outcome,omitempty"`
}

// Scheduler binds a Definition to a settings store, a runner and a poller.
type Scheduler struct {
	def    Definition
	store  store.SettingsStore
	runner *Runner
	poller *Poller
	clock  Clock
	logger *logger.Logger

	mu      sync.Mutex
	started bool
}

// NewScheduler validates def and wires its runner and poller.
func NewScheduler(def Definition, st store.SettingsStore, opts Options) (*Scheduler, error) {
	if def.Key == "" {
		return nil, errors.New("scheduler key cannot be empty")
	}
	if def.Job == nil {
		return nil, fmt.Errorf("scheduler %s: job cannot be nil", def.Key)
	}
	if st == nil {
		return nil, fmt.Errorf("scheduler %s: settings store cannot be nil", def.Key)
	}
	if err := def.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler %s defaults: %w", def.Key, err)
	}
	if def.Name == "" {
		def.Name = def.Key
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("scheduler")
	}

	runner := NewRunner(def.Key, st, def.Job, clock, log)
	return &Scheduler{
		def:    def,
		store:  st,
		runner: runner,
		poller: NewPoller(def.Key, st, runner, opts.PollInterval, clock, log),
		clock:  clock,
		logger: log.WithScheduler(def.Key),
	}, nil
}

// Key returns the persisted scheduler key.
func (s *Scheduler) Key() string { return s.def.Key }

// Name returns the display name.
func (s *Scheduler) Name() string { return s.def.Name }

// Poller exposes the poll loop, mainly so tests can drive ticks.
func (s *Scheduler) Poller() *Poller { return s.poller }

// Settings returns the stored settings, creating them from the defaults on
// first access.
func (s *Scheduler) Settings(ctx context.Context) (schedule.Settings, error) {
	settings, err := s.store.Load(ctx, s.def.Key)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return schedule.Settings{}, fmt.Errorf("failed to load settings for %s: %w", s.def.Key, err)
	}

	defaults := s.def.Defaults.Clone()
	next := schedule.NextRun(defaults, s.clock())
	defaults.LastRunAt = nil
	defaults.NextRunAt = &next

	created, err := s.store.Create(ctx, s.def.Key, defaults)
	if err != nil {
		return schedule.Settings{}, err
	}
	s.logger.Info().
		Str("action", "settings_created").
		Str("description", created.Description()).
		Msg("Created default scheduler settings")
	return created, nil
}

// UpdateSettings validates and applies u, recomputes the next run and
// persists everything in one transaction before returning.
func (s *Scheduler) UpdateSettings(ctx context.Context, u schedule.Update) (schedule.Settings, error) {
	if _, err := s.Settings(ctx); err != nil {
		return schedule.Settings{}, err
	}

	now := s.clock()
	updated, err := s.store.Update(ctx, s.def.Key, func(cur *schedule.Settings) error {
		next, err := u.Apply(*cur)
		if err != nil {
			return err
		}
		nextRun := schedule.NextRun(next, now)
		next.NextRunAt = &nextRun
		*cur = next
		return nil
	})
	if err != nil {
		return schedule.Settings{}, err
	}

	s.logger.Info().
		Str("action", "settings_updated").
		Bool("enabled", updated.Enabled).
		Str("description", updated.Description()).
		Time("next_run_at", *updated.NextRunAt).
		Msg("Scheduler settings updated")
	return updated, nil
}

// UpdateTimeFormat changes only the display preference.
func (s *Scheduler) UpdateTimeFormat(ctx context.Context, format string) (schedule.Settings, error) {
	parsed, err := schedule.ParseTimeFormat(format)
	if err != nil {
		verr := &schedule.ValidationError{}
		verr.Add("time_format", err.Error())
		return schedule.Settings{}, verr
	}
	if _, err := s.Settings(ctx); err != nil {
		return schedule.Settings{}, err
	}
	return s.store.Update(ctx, s.def.Key, func(cur *schedule.Settings) error {
		cur.TimeFormat = parsed
		return nil
	})
}

// TriggerManualSync runs the job now, regardless of the schedule, and waits
// for the outcome.
func (s *Scheduler) TriggerManualSync(ctx context.Context) (schedule.RunOutcome, error) {
	if _, err := s.Settings(ctx); err != nil {
		return schedule.RunOutcome{}, err
	}
	s.logger.Info().
		Str("action", "manual_trigger").
		Msg("Manual sync requested")
	return s.runner.RunManual(ctx)
}

// Start makes sure the settings row exists, refreshes the next run from the
// current clock and starts polling.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.Settings(ctx); err != nil {
		return err
	}
	now := s.clock()
	settings, err := s.store.Update(ctx, s.def.Key, func(cur *schedule.Settings) error {
		next := schedule.NextRun(*cur, now)
		cur.NextRunAt = &next
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to refresh next run for %s: %w", s.def.Key, err)
	}

	if err := s.poller.Start(); err != nil {
		return err
	}
	s.started = true

	s.logger.Info().
		Str("action", "scheduler_start").
		Bool("enabled", settings.Enabled).
		Str("description", settings.Description()).
		Time("next_run_at", *settings.NextRunAt).
		Msg("Scheduler started")
	return nil
}

// Stop stops polling. The returned context is done once an in-flight scheduled
// run has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.started = false
	return s.poller.Stop()
}

// State derives the lifecycle state from the runner and the stored settings.
func (s *Scheduler) State(ctx context.Context) (State, error) {
	if s.runner.Running() {
		return StateFiring, nil
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return "", err
	}
	return stateOf(settings), nil
}

// Status reports settings, state and the last outcome.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return Status{}, err
	}
	state := stateOf(settings)
	if s.runner.Running() {
		state = StateFiring
	}
	return Status{
		Key:          s.def.Key,
		Name:         s.def.Name,
		State:        state,
		Settings:     settings,
		Description:  settings.Description(),
		DisplayTime:  settings.DisplayTime(),
		PollInterval: s.poller.Interval().String(),
		LastOutcome:  s.runner.LastOutcome(),
	}, nil
}

func stateOf(settings schedule.Settings) State {
	if !settings.Enabled {
		return StateDisabled
	}
	return StateIdle
}
