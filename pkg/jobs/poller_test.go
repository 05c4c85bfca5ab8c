package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/docsync/core/pkg/schedule"
)

func newTestPoller(t *testing.T, settings schedule.Settings, clock *fakeClock, job *recordingJob) (*Poller, *flakyStore) {
	t.Helper()
	st := newFlakyStore()
	seed(t, st, "k", settings)
	runner := NewRunner("k", st, job, clock.Now, nopLogger())
	return NewPoller("k", st, runner, time.Minute, clock.Now, nopLogger()), st
}

func TestPoller_DailyFiresOncePerMinute(t *testing.T) {
	clock := newFakeClock(at(2025, time.January, 10, 2, 59))
	job := &recordingJob{result: Result{Success: true}}
	p, st := newTestPoller(t, dailySettings("03:00", true), clock, job)
	ctx := context.Background()

	if d := p.Tick(ctx); d.Fire || d.Reason != schedule.ReasonTimeMismatch {
		t.Errorf("02:59 tick = %+v", d)
	}

	clock.Set(at(2025, time.January, 10, 3, 0))
	if d := p.Tick(ctx); !d.Fire {
		t.Fatalf("03:00 tick did not fire: %+v", d)
	}

	clock.Set(at(2025, time.January, 10, 3, 0).Add(30 * time.Second))
	if d := p.Tick(ctx); d.Fire || d.Reason != schedule.ReasonAlreadyRan {
		t.Errorf("second tick in the same minute = %+v", d)
	}

	if job.Calls() != 1 {
		t.Errorf("expected exactly one run, got %d", job.Calls())
	}
	s := load(t, st, "k")
	if want := at(2025, time.January, 11, 3, 0); !s.NextRunAt.Equal(want) {
		t.Errorf("NextRunAt = %s, want %s", s.NextRunAt, want)
	}

	clock.Set(at(2025, time.January, 11, 3, 0))
	if d := p.Tick(ctx); !d.Fire {
		t.Errorf("next day tick did not fire: %+v", d)
	}
	if job.Calls() != 2 {
		t.Errorf("expected a second run on the next day, got %d", job.Calls())
	}
}

func TestPoller_DisabledNeverFires(t *testing.T) {
	clock := newFakeClock(at(2025, time.January, 10, 3, 0))
	job := &recordingJob{result: Result{Success: true}}
	p, _ := newTestPoller(t, dailySettings("03:00", false), clock, job)

	for m := 0; m < 5; m++ {
		clock.Set(at(2025, time.January, 10, 3, m))
		if d := p.Tick(context.Background()); d.Fire {
			t.Fatalf("disabled scheduler fired at 03:%02d", m)
		}
	}
	if job.Calls() != 0 {
		t.Errorf("job ran %d times", job.Calls())
	}
}

func TestPoller_WeeklySkipsUnselectedDay(t *testing.T) {
	settings := dailySettings("09:00", true)
	settings.Frequency = schedule.Weekly
	settings.Weekdays = schedule.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)

	clock := newFakeClock(at(2025, time.January, 14, 9, 0)) // Tuesday
	job := &recordingJob{result: Result{Success: true}}
	p, _ := newTestPoller(t, settings, clock, job)

	if d := p.Tick(context.Background()); d.Reason != schedule.ReasonWeekdayNotSelected {
		t.Errorf("Tuesday tick = %+v", d)
	}

	clock.Set(at(2025, time.January, 15, 9, 0))
	if d := p.Tick(context.Background()); !d.Fire {
		t.Errorf("Wednesday tick = %+v", d)
	}
	if job.Calls() != 1 {
		t.Errorf("expected one run, got %d", job.Calls())
	}
}

func TestPoller_StoreErrorSkipsTick(t *testing.T) {
	clock := newFakeClock(at(2025, time.January, 10, 3, 0))
	job := &recordingJob{result: Result{Success: true}}
	p, st := newTestPoller(t, dailySettings("03:00", true), clock, job)

	st.failLoads(errStoreDown)
	if d := p.Tick(context.Background()); d.Fire || d.Reason != ReasonStoreUnavailable {
		t.Errorf("tick with failing store = %+v", d)
	}
	if job.Calls() != 0 {
		t.Error("job must not run when settings cannot be read")
	}

	st.failLoads(nil)
	clock.Set(at(2025, time.January, 10, 3, 0).Add(20 * time.Second))
	if d := p.Tick(context.Background()); !d.Fire {
		t.Errorf("tick after recovery = %+v", d)
	}
}

func TestPoller_MissedMinuteIsNotCaughtUp(t *testing.T) {
	clock := newFakeClock(at(2025, time.January, 10, 3, 5))
	job := &recordingJob{result: Result{Success: true}}
	p, _ := newTestPoller(t, dailySettings("03:00", true), clock, job)

	for m := 5; m < 60; m += 5 {
		clock.Set(at(2025, time.January, 10, 3, m))
		p.Tick(context.Background())
	}
	if job.Calls() != 0 {
		t.Errorf("missed occurrence was caught up %d times", job.Calls())
	}
}

func TestPoller_Spec(t *testing.T) {
	tests := []struct {
		interval time.Duration
		expected string
	}{
		{time.Minute, "* * * * *"},
		{0, "* * * * *"},
		{30 * time.Second, "@every 30s"},
		{5 * time.Minute, "@every 5m0s"},
	}

	for _, tt := range tests {
		p := NewPoller("k", newFlakyStore(), nil, tt.interval, nil, nopLogger())
		if got := p.Spec(); got != tt.expected {
			t.Errorf("Spec() for %s = %q, want %q", tt.interval, got, tt.expected)
		}
	}
}

func TestPoller_StartStop(t *testing.T) {
	clock := newFakeClock(at(2025, time.January, 10, 12, 0))
	job := &recordingJob{result: Result{Success: true}}
	p, _ := newTestPoller(t, dailySettings("03:00", true), clock, job)

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		<-p.Stop().Done()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() took too long")
	}
}

func TestPoller_RunInProgressSkipsDueTick(t *testing.T) {
	clock := newFakeClock(at(2025, time.January, 9, 22, 0))
	job := &recordingJob{
		result:  Result{Success: true},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p, st := newTestPoller(t, dailySettings("03:00", true), clock, job)

	// A manual run started the evening before is still executing at 03:00.
	done := make(chan error, 1)
	go func() {
		_, err := p.runner.RunManual(context.Background())
		done <- err
	}()
	waitFor(t, job.started, 5*time.Second, "manual run to start")

	clock.Set(at(2025, time.January, 10, 3, 0))
	if d := p.Tick(context.Background()); d.Fire || d.Reason != ReasonRunInProgress {
		t.Errorf("tick during manual run = %+v, want reason %s", d, ReasonRunInProgress)
	}

	close(job.block)
	if err := <-done; err != nil {
		t.Fatalf("RunManual: %v", err)
	}
	if job.Calls() != 1 {
		t.Errorf("expected only the manual run, got %d", job.Calls())
	}
	s := load(t, st, "k")
	if want := at(2025, time.January, 9, 22, 0); s.LastRunAt == nil || !s.LastRunAt.Equal(want) {
		t.Errorf("LastRunAt = %v, want %s", s.LastRunAt, want)
	}
}

func TestPoller_OverlappingTicksAreSkipped(t *testing.T) {
	clock := newFakeClock(at(2025, time.January, 10, 3, 0))
	job := &recordingJob{
		result:  Result{Success: true},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	st := newFlakyStore()
	seed(t, st, "k", dailySettings("03:00", true))
	runner := NewRunner("k", st, job, clock.Now, nopLogger())
	p := NewPoller("k", st, runner, time.Second, clock.Now, nopLogger())

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, job.started, 5*time.Second, "first scheduled run")

	// The next occurrence becomes due while the first run is still blocked.
	clock.Set(at(2025, time.January, 11, 3, 0))
	loadsWhileBlocked := st.loads.Load()
	time.Sleep(2500 * time.Millisecond)

	if got := st.loads.Load(); got != loadsWhileBlocked {
		t.Errorf("ticks ran while the previous tick was in flight: %d loads, want %d", got, loadsWhileBlocked)
	}
	if job.Calls() != 1 {
		t.Errorf("expected one run while blocked, got %d", job.Calls())
	}
	s := load(t, st, "k")
	if want := at(2025, time.January, 10, 3, 0); s.LastRunAt == nil || !s.LastRunAt.Equal(want) {
		t.Errorf("LastRunAt = %v, want %s", s.LastRunAt, want)
	}
	if want := at(2025, time.January, 11, 3, 0); s.NextRunAt == nil || !s.NextRunAt.Equal(want) {
		t.Errorf("NextRunAt = %v, want %s", s.NextRunAt, want)
	}

	close(job.block)
	stopped := make(chan struct{})
	go func() {
		<-p.Stop().Done()
		close(stopped)
	}()
	waitFor(t, stopped, 5*time.Second, "poller to stop")
}

func TestPoller_IndependentSchedulersDoNotBlockEachOther(t *testing.T) {
	st := newFlakyStore()
	seed(t, st, "a", dailySettings("03:00", true))
	seed(t, st, "b", dailySettings("03:00", true))

	slow := &recordingJob{
		name:    "slow",
		result:  Result{Success: true},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	fast := &recordingJob{
		name:    "fast",
		result:  Result{Success: true},
		started: make(chan struct{}, 1),
	}

	clockA := newFakeClock(at(2025, time.January, 10, 3, 0))
	clockB := newFakeClock(at(2025, time.January, 10, 3, 0))
	pa := NewPoller("a", st, NewRunner("a", st, slow, clockA.Now, nopLogger()), time.Second, clockA.Now, nopLogger())
	pb := NewPoller("b", st, NewRunner("b", st, fast, clockB.Now, nopLogger()), time.Second, clockB.Now, nopLogger())

	if err := pa.Start(); err != nil {
		t.Fatalf("Start a: %v", err)
	}
	waitFor(t, slow.started, 5*time.Second, "scheduler a to start its run")

	if err := pb.Start(); err != nil {
		t.Fatalf("Start b: %v", err)
	}
	waitFor(t, fast.started, 5*time.Second, "scheduler b to run while a is blocked")

	if slow.Calls() != 1 || fast.Calls() != 1 {
		t.Errorf("while a blocked: a calls=%d b calls=%d, want 1 and 1", slow.Calls(), fast.Calls())
	}
	if s := load(t, st, "b"); s.LastRunAt == nil || !s.LastRunAt.Equal(at(2025, time.January, 10, 3, 0)) {
		t.Errorf("scheduler b LastRunAt = %v", s.LastRunAt)
	}

	close(slow.block)
	for name, p := range map[string]*Poller{"a": pa, "b": pb} {
		stopped := make(chan struct{})
		go func() {
			<-p.Stop().Done()
			close(stopped)
		}()
		waitFor(t, stopped, 5*time.Second, "poller "+name+" to stop")
	}
}
