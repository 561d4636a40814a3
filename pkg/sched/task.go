// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// AsyncTask is a bounded unit of work run on the scheduler goroutine.
type AsyncTask interface {
	// Priority returns the class of the queue the task is routed to.
	Priority() TaskPriority
	// IsPeriodic returns true for tasks that are re-run every housekeeping
	// pass until unregistered.
	IsPeriodic() bool
	// Run performs the work. Errors (and panics) are logged by the scheduler
	// and never abort the drain.
	Run(ctx context.Context) error
}

// Task is the stock AsyncTask implementation wrapping a function.
type Task struct {
	name     string
	priority TaskPriority
	periodic bool
	fn       func(ctx context.Context) error
}

var _ AsyncTask = (*Task)(nil)

// NewTask returns a one-shot task of the given priority class.
func NewTask(name string, priority TaskPriority, fn func(ctx context.Context) error) *Task {
	return &Task{name: name, priority: priority, fn: fn}
}

// NewPeriodicTask returns a task that Scheduler.Handle registers as
// periodic. Periodic tasks are unregistered by identity, so keep the returned
// pointer around.
func NewPeriodicTask(name string, fn func(ctx context.Context) error) *Task {
	return &Task{name: name, priority: NormalPriority, periodic: true, fn: fn}
}

// Priority implements AsyncTask.
func (t *Task) Priority() TaskPriority { return t.priority }

// IsPeriodic implements AsyncTask.
func (t *Task) IsPeriodic() bool { return t.periodic }

// Run implements AsyncTask.
func (t *Task) Run(ctx context.Context) error { return t.fn(ctx) }

// SafeFormat implements redact.SafeFormatter.
func (t *Task) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("task %s (%s", redact.SafeString(t.name), t.priority)
	if t.periodic {
		w.SafeString(", periodic")
	}
	w.SafeRune(')')
}

// String implements fmt.Stringer.
func (t *Task) String() string { return redact.StringWithoutMarkers(t) }

// PageOperation is a storage-layer unit of work that must run on the
// scheduler goroutine.
type PageOperation interface {
	Run(ctx context.Context, h PageOperationHandler) error
}

// PageOperationFunc adapts a function to PageOperation.
type PageOperationFunc func(ctx context.Context, h PageOperationHandler) error

// Run implements PageOperation.
func (f PageOperationFunc) Run(ctx context.Context, h PageOperationHandler) error {
	return f(ctx, h)
}

// PageOperationHandler is the view of the scheduler handed to running page
// operations, letting them resubmit follow-up work.
type PageOperationHandler interface {
	// HandlePageOperation queues op to run on the scheduler goroutine.
	HandlePageOperation(op PageOperation)
	// Wake raises the scheduler's wake signal.
	Wake()
	// ID identifies the scheduler.
	ID() int
}

// runSafely runs fn, converting a panic into an error.
func runSafely(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "panic")
			} else {
				err = errors.Newf("panic: %v", r)
			}
		}
	}()
	return fn(ctx)
}

// sameTask compares tasks by identity. Tasks whose dynamic type is not
// comparable (e.g. func types) never match.
func sameTask(a, b AsyncTask) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
