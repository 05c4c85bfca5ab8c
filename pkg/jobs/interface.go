package jobs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRunInProgress is returned when a run is requested while the same
	// scheduler is still executing one.
	ErrRunInProgress = errors.New("a sync run is already in progress")
	// ErrNotDue is returned by a scheduled run whose occurrence was already
	// consumed by the time the run marker was about to be written.
	ErrNotDue = errors.New("scheduler is not due")
	// ErrSchedulerNotFound is returned for an unknown scheduler key.
	ErrSchedulerNotFound = errors.New("scheduler not found")
	// ErrDuplicateScheduler is returned when a key is registered twice.
	ErrDuplicateScheduler = errors.New("scheduler already registered")
)

// Result is what a pipeline reports back after one run.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Job is the sync pipeline a scheduler dispatches
type Job interface {
	// Name returns a human-readable name for the job
	Name() string

	// Execute runs the pipeline once. A returned error and an unsuccessful
	// Result are both recorded as a failed run.
	Execute(ctx context.Context) (Result, error)
}

// FuncJob adapts a plain function to the Job interface
type FuncJob struct {
	name string
	fn   func(ctx context.Context) (Result, error)
}

// NewFuncJob creates a job that calls fn
func NewFuncJob(name string, fn func(ctx context.Context) (Result, error)) *FuncJob {
	return &FuncJob{name: name, fn: fn}
}

func (f *FuncJob) Name() string {
	return f.name
}

func (f *FuncJob) Execute(ctx context.Context) (Result, error) {
	if f.fn == nil {
		return Result{}, fmt.Errorf("job %s has no function", f.name)
	}
	return f.fn(ctx)
}
