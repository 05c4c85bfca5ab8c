package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

// flakyStore wraps the memory store and fails on demand.
type flakyStore struct {
	*store.Memory
	mu        sync.Mutex
	loadErr   error
	updateErr error
	loads     atomic.Int32
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Memory: store.NewMemory()}
}

func (f *flakyStore) failLoads(err error) {
	f.mu.Lock()
	f.loadErr = err
	f.mu.Unlock()
}

func (f *flakyStore) failUpdates(err error) {
	f.mu.Lock()
	f.updateErr = err
	f.mu.Unlock()
}

func (f *flakyStore) Load(ctx context.Context, key string) (schedule.Settings, error) {
	f.loads.Add(1)
	f.mu.Lock()
	err := f.loadErr
	f.mu.Unlock()
	if err != nil {
		return schedule.Settings{}, err
	}
	return f.Memory.Load(ctx, key)
}

func (f *flakyStore) Update(ctx context.Context, key string, fn func(*schedule.Settings) error) (schedule.Settings, error) {
	f.mu.Lock()
	err := f.updateErr
	f.mu.Unlock()
	if err != nil {
		return schedule.Settings{}, err
	}
	return f.Memory.Update(ctx, key, fn)
}

var errStoreDown = errors.New("store down")

// recordingJob counts executions and reports what it observed.
type recordingJob struct {
	mu       sync.Mutex
	name     string
	calls    int
	result   Result
	err      error
	panicVal interface{}
	block    chan struct{}
	started  chan struct{}
	onRun    func(ctx context.Context)
}

func (j *recordingJob) Name() string {
	if j.name == "" {
		return "test-job"
	}
	return j.name
}

func (j *recordingJob) Execute(ctx context.Context) (Result, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()

	if j.onRun != nil {
		j.onRun(ctx)
	}
	if j.started != nil {
		j.started <- struct{}{}
	}
	if j.block != nil {
		<-j.block
	}
	if j.panicVal != nil {
		panic(j.panicVal)
	}
	return j.result, j.err
}

func (j *recordingJob) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

// waitFor fails the test if ch does not deliver within d.
func waitFor(t *testing.T, ch <-chan struct{}, d time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func dailySettings(tod string, enabled bool) schedule.Settings {
	return schedule.Settings{
		Enabled:    enabled,
		Frequency:  schedule.Daily,
		TimeOfDay:  schedule.MustTimeOfDay(tod),
		Weekdays:   schedule.AllWeekdays,
		DayOfMonth: 1,
		TimeFormat: schedule.Format24h,
	}
}

func seed(t *testing.T, st store.SettingsStore, key string, s schedule.Settings) {
	t.Helper()
	if _, err := st.Create(context.Background(), key, s); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func load(t *testing.T, st store.SettingsStore, key string) schedule.Settings {
	t.Helper()
	s, err := st.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("load %s: %v", key, err)
	}
	return s
}

func nopLogger() *logger.Logger {
	return logger.Nop()
}
