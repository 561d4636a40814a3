// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/sqlsched/pkg/util/timeutil"
)

// WakeSignal is a coalescing wake-up primitive with a single consumer. Any
// number of Raise calls between two Waits collapse into one pending wake, and
// Wait clears all pending wake state before it returns, so a burst of
// producers costs the consumer at most one extra pass.
type WakeSignal struct {
	// ch has capacity 1 and holds at most one token.
	ch chan struct{}
	// pending deduplicates sends on ch.
	pending atomic.Bool
	// timer is only used by the consumer.
	timer timeutil.Timer

	raised    atomic.Int64
	coalesced atomic.Int64
}

// NewWakeSignal returns a wake signal with no pending wake.
func NewWakeSignal() *WakeSignal {
	return &WakeSignal{ch: make(chan struct{}, 1)}
}

// Raise records a pending wake. It never blocks and is safe for concurrent
// use.
func (w *WakeSignal) Raise() {
	if !w.pending.CompareAndSwap(false, true) {
		w.coalesced.Add(1)
		return
	}
	w.raised.Add(1)
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Pending returns true if a wake was raised and not consumed yet.
func (w *WakeSignal) Pending() bool {
	return w.pending.Load()
}

// Wait blocks until a wake is raised, d elapses, or ctx is done. It returns
// true if it was woken. A non-positive d only consumes a pending wake. All
// pending wake state is drained before Wait returns.
func (w *WakeSignal) Wait(ctx context.Context, d time.Duration) (woken bool, _ error) {
	defer w.drain()
	if w.pending.Load() {
		return true, nil
	}
	if d <= 0 {
		return false, ctx.Err()
	}
	w.timer.Reset(d)
	defer w.timer.Stop()
	select {
	case <-w.ch:
		return true, nil
	case <-w.timer.C:
		w.timer.Read = true
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// drain clears the pending flag before emptying the channel: a Raise racing
// with drain either sees the flag set and is absorbed by this wake, or sets it
// again after the store and leaves a token for the next Wait.
func (w *WakeSignal) drain() {
	w.pending.Store(false)
	select {
	case <-w.ch:
	default:
	}
}

// Raised returns the number of Raise calls that recorded a new pending wake.
func (w *WakeSignal) Raised() int64 { return w.raised.Load() }

// Coalesced returns the number of Raise calls absorbed by an already pending
// wake.
func (w *WakeSignal) Coalesced() int64 { return w.coalesced.Load() }
