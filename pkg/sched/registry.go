// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"sync/atomic"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
)

// SessionHandle is a stable reference to a slot in a session registry. A
// handle goes stale once its session is removed, even if the slot is reused.
// The zero value never refers to a session.
type SessionHandle struct {
	index uint32
	gen   uint32
}

// Valid returns false for the zero handle.
func (h SessionHandle) Valid() bool { return h.gen != 0 }

// SafeFormat implements redact.SafeFormatter.
func (h SessionHandle) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d@%d", redact.SafeUint(h.index), redact.SafeUint(h.gen))
}

func (h SessionHandle) String() string { return redact.StringWithoutMarkers(h) }

type registrySlot struct {
	gen uint32
	si  *SessionInfo
}

// sessionRegistry is a slot-indexed arena of session descriptors.
//
// Sessions are added and removed by any goroutine under mu; every mutation
// bumps version. The scheduler goroutine reads the registry every tick
// through snapshot, which only rebuilds its cached slice when the version
// moved, so the hot path takes no lock. Iteration follows insertion order.
type sessionRegistry struct {
	mu struct {
		syncutil.Mutex
		slots []registrySlot
		free  []uint32
		// order lists occupied slot indexes in insertion order.
		order []uint32
	}
	version atomic.Uint64
	len     atomic.Int64

	// Only accessed by the scheduler goroutine.
	cached        []*SessionInfo
	cachedVersion uint64
}

func (r *sessionRegistry) add(si *SessionInfo) SessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idx uint32
	if n := len(r.mu.free); n > 0 {
		idx = r.mu.free[n-1]
		r.mu.free = r.mu.free[:n-1]
	} else {
		idx = uint32(len(r.mu.slots))
		r.mu.slots = append(r.mu.slots, registrySlot{})
	}
	slot := &r.mu.slots[idx]
	slot.gen++
	if slot.gen == 0 {
		// Skip the zero generation so the zero handle stays invalid.
		slot.gen++
	}
	slot.si = si
	r.mu.order = append(r.mu.order, idx)
	r.len.Add(1)
	r.version.Add(1)
	return SessionHandle{index: idx, gen: slot.gen}
}

// remove frees the slot h refers to. It returns false if h is stale.
func (r *sessionRegistry) remove(h SessionHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.liveLocked(h) {
		return false
	}
	r.mu.slots[h.index].si = nil
	r.mu.free = append(r.mu.free, h.index)
	for i, idx := range r.mu.order {
		if idx == h.index {
			r.mu.order = append(r.mu.order[:i], r.mu.order[i+1:]...)
			break
		}
	}
	r.len.Add(-1)
	r.version.Add(1)
	return true
}

// get returns the session h refers to.
func (r *sessionRegistry) get(h SessionHandle) (*SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.liveLocked(h) {
		return nil, false
	}
	return r.mu.slots[h.index].si, true
}

func (r *sessionRegistry) liveLocked(h SessionHandle) bool {
	r.mu.AssertHeld()
	if !h.Valid() || int(h.index) >= len(r.mu.slots) {
		return false
	}
	slot := r.mu.slots[h.index]
	return slot.gen == h.gen && slot.si != nil
}

// snapshot returns the live sessions in insertion order. It must only be
// called by the scheduler goroutine. The returned slice is never mutated
// afterwards, so callers may keep iterating it while sessions come and go.
func (r *sessionRegistry) snapshot() []*SessionInfo {
	v := r.version.Load()
	if v == r.cachedVersion {
		return r.cached
	}
	r.mu.Lock()
	// Re-read under the lock so the cached slice matches the version.
	v = r.version.Load()
	sessions := make([]*SessionInfo, 0, len(r.mu.order))
	for _, idx := range r.mu.order {
		sessions = append(sessions, r.mu.slots[idx].si)
	}
	r.mu.Unlock()
	r.cached, r.cachedVersion = sessions, v
	return sessions
}

// size returns the number of live sessions.
func (r *sessionRegistry) size() int {
	return int(r.len.Load())
}
