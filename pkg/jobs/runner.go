package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/store"
)

// Clock returns the current local wall-clock time.
type Clock func() time.Time

// Runner dispatches a job for one scheduler. Run markers are persisted before
// the job starts and one run executes at a time.
type Runner struct {
	key    string
	store  store.SettingsStore
	job    Job
	clock  Clock
	logger *logger.Logger

	running atomic.Bool

	mu   sync.RWMutex
	last *schedule.RunOutcome
}

// NewRunner creates a runner for the scheduler stored under key
func NewRunner(key string, st store.SettingsStore, job Job, clock Clock, log *logger.Logger) *Runner {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.New("scheduler-runner")
	}
	return &Runner{
		key:    key,
		store:  st,
		job:    job,
		clock:  clock,
		logger: log.WithScheduler(key),
	}
}

// RunScheduled runs the job for the tick observed at now. The guard is
// evaluated again against the row inside the marker transaction; ErrNotDue
// means another run consumed this period first.
func (r *Runner) RunScheduled(ctx context.Context, now time.Time) (schedule.RunOutcome, error) {
	return r.run(ctx, schedule.TriggerScheduled, now)
}

// RunManual runs the job immediately, ignoring the schedule, and consumes the
// current period.
func (r *Runner) RunManual(ctx context.Context) (schedule.RunOutcome, error) {
	return r.run(ctx, schedule.TriggerManual, r.clock())
}

// Running reports whether a run is executing.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// LastOutcome returns the outcome of the most recent dispatched run, if any.
func (r *Runner) LastOutcome() *schedule.RunOutcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	o := *r.last
	return &o
}

func (r *Runner) run(ctx context.Context, trigger schedule.Trigger, now time.Time) (schedule.RunOutcome, error) {
	if !r.running.CompareAndSwap(false, true) {
		return schedule.RunOutcome{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	runID := uuid.New().String()
	runLogger := r.logger.WithRunID(runID)
	outcome := schedule.RunOutcome{
		RunID:     runID,
		Trigger:   trigger,
		StartedAt: now,
	}

	if err := r.markRun(ctx, trigger, now); err != nil {
		if errors.Is(err, ErrNotDue) {
			runLogger.Info().
				Err(err).
				Str("action", "run_skipped").
				Str("trigger", string(trigger)).
				Msg("Occurrence already consumed, skipping run")
			return schedule.RunOutcome{}, err
		}
		outcome.FinishedAt = r.clock()
		outcome.Message = fmt.Sprintf("failed to record run: %v", err)
		runLogger.Error().
			Err(err).
			Str("action", "run_marker_failed").
			Str("trigger", string(trigger)).
			Msg("Failed to persist run markers, job not started")
		r.remember(outcome)
		return outcome, err
	}

	runLogger.LogRunStart(r.job.Name(), string(trigger))

	// The pipeline keeps running when the caller goes away.
	jobCtx := runLogger.ToContext(context.WithoutCancel(ctx))
	result, err := r.execute(jobCtx)

	outcome.FinishedAt = r.clock()
	switch {
	case err != nil:
		outcome.Success = false
		outcome.Message = err.Error()
	default:
		outcome.Success = result.Success
		outcome.Message = result.Message
	}

	runLogger.LogRunComplete(r.job.Name(), outcome.Duration(), outcome.Success, outcome.Message)
	r.remember(outcome)
	return outcome, nil
}

// markRun writes LastRunAt and NextRunAt in one store transaction.
func (r *Runner) markRun(ctx context.Context, trigger schedule.Trigger, now time.Time) error {
	_, err := r.store.Update(ctx, r.key, func(s *schedule.Settings) error {
		if trigger == schedule.TriggerScheduled {
			if d := schedule.Evaluate(*s, now); !d.Fire {
				return fmt.Errorf("%w: %s", ErrNotDue, d.Reason)
			}
		}
		ran := now
		next := schedule.NextRun(*s, now)
		s.LastRunAt = &ran
		s.NextRunAt = &next
		return nil
	})
	return err
}

func (r *Runner) execute(ctx context.Context) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", r.job.Name(), rec)
		}
	}()
	return r.job.Execute(ctx)
}

func (r *Runner) remember(o schedule.RunOutcome) {
	r.mu.Lock()
	r.last = &o
	r.mu.Unlock()
}
