// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stop

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sqlsched/pkg/util/log"
	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
)

// ErrUnavailable indicates that the stopper is quiescing and refuses new
// tasks.
var ErrUnavailable = errors.New("stopper is quiescing; no new tasks accepted")

// Closer is an interface for objects to attach to the stopper to be closed
// once the stopper completes.
type Closer interface {
	Close()
}

// CloserFn is type that allows any function to be a Closer.
type CloserFn func()

// Close implements the Closer interface.
func (f CloserFn) Close() {
	f()
}

// A Stopper provides control over the lifecycle of goroutines started
// through it via its RunAsyncTask method.
//
// When Stop is invoked, the stopper closes the ShouldQuiesce channel, refuses
// new tasks, waits for running tasks to return, runs the registered closers
// and finally closes the IsStopped channel.
type Stopper struct {
	quiescer chan struct{}
	stopped  chan struct{}
	wg       sync.WaitGroup

	mu struct {
		syncutil.Mutex
		quiescing bool
		numTasks  int
		closers   []Closer
	}
}

// NewStopper returns an instance of Stopper.
func NewStopper() *Stopper {
	return &Stopper{
		quiescer: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// RunAsyncTask runs f in a goroutine. It returns ErrUnavailable, without
// running f, if the stopper is quiescing.
func (s *Stopper) RunAsyncTask(
	ctx context.Context, taskName string, f func(context.Context),
) error {
	s.mu.Lock()
	if s.mu.quiescing {
		s.mu.Unlock()
		return ErrUnavailable
	}
	s.mu.numTasks++
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.taskDone()
		log.VEventf(ctx, 3, "task %s started", taskName)
		f(ctx)
	}()
	return nil
}

func (s *Stopper) taskDone() {
	s.mu.Lock()
	s.mu.numTasks--
	s.mu.Unlock()
	s.wg.Done()
}

// NumTasks returns the number of running tasks.
func (s *Stopper) NumTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.numTasks
}

// AddCloser adds an object to close after the stopper has been stopped. If
// the stopper is already quiescing, c is closed immediately.
func (s *Stopper) AddCloser(c Closer) {
	s.mu.Lock()
	if s.mu.quiescing {
		s.mu.Unlock()
		c.Close()
		return
	}
	s.mu.closers = append(s.mu.closers, c)
	s.mu.Unlock()
}

// WithCancelOnQuiesce returns a child context which is canceled when the
// returned cancel function is called or when the stopper begins to quiesce.
func (s *Stopper) WithCancelOnQuiesce(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.quiescer:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ShouldQuiesce returns a channel which will be closed when Stop() has been
// invoked and outstanding tasks should begin to quiesce.
func (s *Stopper) ShouldQuiesce() <-chan struct{} {
	return s.quiescer
}

// IsStopped returns a channel which will be closed after Stop() has been
// invoked to full completion.
func (s *Stopper) IsStopped() <-chan struct{} {
	return s.stopped
}

// Stop signals all tasks to quiesce, waits for them to finish and runs the
// closers in reverse order of registration. Calling Stop more than once is a
// no-op for all but the first caller, which performs the shutdown; later
// callers wait for it.
func (s *Stopper) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.mu.quiescing {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.mu.quiescing = true
	close(s.quiescer)
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	closers := s.mu.closers
	s.mu.closers = nil
	s.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close()
	}
	log.VEventf(ctx, 2, "stopper stopped")
	close(s.stopped)
}
