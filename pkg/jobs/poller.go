package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/store"
)

// DefaultPollInterval is how often settings are checked.
const DefaultPollInterval = time.Minute

const (
	// ReasonStoreUnavailable is reported by Tick when settings could not be read.
	ReasonStoreUnavailable = "store_unavailable"
	// ReasonRunInProgress is reported by Tick when the occurrence was due but
	// another run of the same scheduler was still executing.
	ReasonRunInProgress = "run_in_progress"
)

// Poller wakes on a fixed cadence, reads the settings fresh and dispatches a
// scheduled run when the guard lets the tick through. Each poller owns its own
// cron instance; a tick that is still running causes later ticks to be skipped.
type Poller struct {
	key      string
	store    store.SettingsStore
	runner   *Runner
	interval time.Duration
	clock    Clock
	logger   *logger.Logger
	cron     *cron.Cron
	entry    cron.EntryID
}

// NewPoller creates a poller for one scheduler
func NewPoller(key string, st store.SettingsStore, runner *Runner, interval time.Duration, clock Clock, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.New("scheduler-poller")
	}
	log = log.WithScheduler(key)

	cl := log.CronLogger()
	return &Poller{
		key:      key,
		store:    st,
		runner:   runner,
		interval: interval,
		clock:    clock,
		logger:   log,
		cron: cron.New(
			cron.WithLocation(clock().Location()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Spec returns the cron expression used for the poll interval. A one minute
// interval is aligned to the start of each minute.
func (p *Poller) Spec() string {
	if p.interval == time.Minute {
		return "* * * * *"
	}
	return fmt.Sprintf("@every %s", p.interval)
}

// Interval returns the poll cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start schedules the poll loop.
func (p *Poller) Start() error {
	if p.entry == 0 {
		id, err := p.cron.AddFunc(p.Spec(), func() { p.Tick(context.Background()) })
		if err != nil {
			return fmt.Errorf("failed to schedule poller for %s: %w", p.key, err)
		}
		p.entry = id
	}
	p.cron.Start()

	p.logger.Info().
		Str("action", "poller_start").
		Str("schedule", p.Spec()).
		Msg("Poller started")
	return nil
}

// Stop halts the poll loop. The returned context is done once a tick in
// flight, including its job, has finished.
func (p *Poller) Stop() context.Context {
	ctx := p.cron.Stop()
	p.logger.Info().
		Str("action", "poller_stop").
		Msg("Poller stopped")
	return ctx
}

// Tick performs one poll: load, evaluate and possibly run.
func (p *Poller) Tick(ctx context.Context) schedule.Decision {
	now := p.clock()

	settings, err := p.store.Load(ctx, p.key)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("action", "tick_skipped").
			Msg("Failed to load scheduler settings, skipping tick")
		return schedule.Decision{Reason: ReasonStoreUnavailable}
	}

	decision := schedule.Evaluate(settings, now)
	p.logger.Debug().
		Str("action", "tick").
		Bool("fire", decision.Fire).
		Str("reason", decision.Reason).
		Time("now", now).
		Msg("Evaluated run guard")
	if !decision.Fire {
		return decision
	}

	outcome, err := p.runner.RunScheduled(ctx, now)
	switch {
	case errors.Is(err, ErrNotDue):
		return schedule.Decision{Reason: schedule.ReasonAlreadyRan}
	case errors.Is(err, ErrRunInProgress):
		p.logger.Info().
			Str("action", "tick_skipped_run_in_progress").
			Time("now", now).
			Msg("Occurrence is due but a run is still executing, skipping tick")
		return schedule.Decision{Reason: ReasonRunInProgress}
	case err != nil:
		p.logger.Warn().
			Err(err).
			Str("action", "scheduled_run_failed").
			Str("run_id", outcome.RunID).
			Msg("Scheduled run could not start")
	}
	return decision
}
