// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package timeutil

import (
	"time"

	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
)

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}

// Since returns the time elapsed since t.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// TimeSource is used to interact with clocks and timers. Generally exposed for
// testing.
type TimeSource interface {
	Now() time.Time
}

// DefaultTimeSource is a TimeSource using the system clock.
type DefaultTimeSource struct{}

var _ TimeSource = DefaultTimeSource{}

// Now returns timeutil.Now().
func (DefaultTimeSource) Now() time.Time {
	return Now()
}

// ManualTime is a testing implementation of TimeSource whose clock only moves
// when Advance or AdvanceTo is called.
type ManualTime struct {
	mu struct {
		syncutil.Mutex
		now time.Time
	}
}

var _ TimeSource = (*ManualTime)(nil)

// NewManualTime constructs a new ManualTime starting at initialTime.
func NewManualTime(initialTime time.Time) *ManualTime {
	m := &ManualTime{}
	m.mu.now = initialTime
	return m
}

// Now returns the current time of the manual clock.
func (m *ManualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.now
}

// Advance forwards the current time by the given duration.
func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.now = m.mu.now.Add(d)
}

// AdvanceTo moves the clock to t if t is after the current time.
func (m *ManualTime) AdvanceTo(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.mu.now) {
		m.mu.now = t
	}
}
