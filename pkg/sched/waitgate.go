// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sqlsched/pkg/util/log"
)

// slowJoinThreshold is how long a Join on the scheduler goroutine may wait
// before it is logged.
const slowJoinThreshold = 5 * time.Second

// WaitGate lets a caller wait for outstanding asynchronous sub-operations
// without parking the scheduler goroutine. When Join runs on the scheduler
// goroutine it keeps draining the scheduler's task and page-operation queues
// between checks, since those queues are usually what completes the
// sub-operations.
//
// A gate serves one blocking call at a time. Concurrent blocking calls must
// each use their own gate, see Scheduler.BeginOperation.
type WaitGate struct {
	s       *Scheduler
	pending atomic.Int32
	err     atomic.Pointer[error]
	// signal wakes joiners that are not the scheduler goroutine.
	signal *WakeSignal
}

// BeginOperation returns a new gate for a blocking call, already begun.
func (s *Scheduler) BeginOperation() *WaitGate {
	g := &WaitGate{s: s, signal: NewWakeSignal()}
	g.Begin()
	return g
}

// Begin resets the gate: the captured error is cleared and the pending count
// is set to 1, standing for the waiting caller.
func (g *WaitGate) Begin() {
	g.err.Store(nil)
	g.pending.Store(1)
}

// Add registers n more outstanding sub-operations.
func (g *WaitGate) Add(n int32) {
	g.pending.Add(n)
}

// Complete marks one sub-operation as done.
func (g *WaitGate) Complete() {
	g.done()
}

// Abandon marks one sub-operation as discarded. It counts as a completion.
func (g *WaitGate) Abandon() {
	g.done()
}

func (g *WaitGate) done() {
	g.pending.Add(-1)
	g.s.Wake()
	g.signal.Raise()
}

// Fail records err. When several sub-operations fail, the last error wins.
func (g *WaitGate) Fail(err error) {
	if err == nil {
		return
	}
	g.err.Store(&err)
}

// Pending returns the pending count. It may drop below zero if sub-operations
// complete more often than they were registered.
func (g *WaitGate) Pending() int32 {
	return g.pending.Load()
}

// Err returns the captured error, if any.
func (g *WaitGate) Err() error {
	if p := g.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Join blocks until the pending count drops below 1 and returns the captured
// error, if any. It returns early with an error if ctx is done.
func (g *WaitGate) Join(ctx context.Context) error {
	onWorker := g.s.onWorker()
	start := g.s.timeSource.Now()
	for g.pending.Load() >= 1 {
		if onWorker {
			g.s.runQueueTasks(ctx, HighPriority)
			g.s.runQueueTasks(ctx, NormalPriority)
			g.s.runQueueTasks(ctx, LowPriority)
			g.s.runPageOperationTasks(ctx)
			if g.pending.Load() < 1 {
				break
			}
			if _, err := g.s.wake.Wait(ctx, g.s.cfg.LoopInterval); err != nil {
				log.Warningf(ctx, "wait gate interrupted, stopping scheduler: %v", err)
				g.s.Stop()
				return errors.Wrap(err, "wait gate interrupted")
			}
			if waited := g.s.timeSource.Now().Sub(start); waited > slowJoinThreshold &&
				g.s.slowJoinLog.ShouldLog() {
				log.Warningf(ctx, "wait gate blocked the scheduler for %s, %d operations pending",
					waited, g.pending.Load())
			}
			continue
		}
		if _, err := g.signal.Wait(ctx, g.s.cfg.LoopInterval); err != nil {
			return errors.Wrap(err, "wait gate interrupted")
		}
	}
	return g.Err()
}
