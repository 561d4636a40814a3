// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package schedload

import (
	"fmt"
	"time"

	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
	"github.com/codahale/hdrhistogram"
)

const (
	sigFigs    = 1
	minLatency = time.Microsecond
	maxLatency = time.Minute
)

// latencyHistogram records statement latencies, from submission of the
// parse task to completion. It is safe for concurrent use.
type latencyHistogram struct {
	mu struct {
		syncutil.Mutex
		h *hdrhistogram.Histogram
	}
}

func newLatencyHistogram() *latencyHistogram {
	l := &latencyHistogram{}
	l.mu.h = hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), sigFigs)
	return l
}

// Record saves a datapoint, clamped to the tracked range.
func (l *latencyHistogram) Record(elapsed time.Duration) {
	if elapsed < minLatency {
		elapsed = minLatency
	} else if elapsed > maxLatency {
		elapsed = maxLatency
	}
	l.mu.Lock()
	err := l.mu.h.RecordValue(elapsed.Nanoseconds())
	l.mu.Unlock()
	if err != nil {
		// Values are clamped to the histogram range, so this never happens.
		panic(fmt.Sprintf("recording latency: %s", err))
	}
}

// Quantile returns the latency at quantile q, in [0, 100].
func (l *latencyHistogram) Quantile(q float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mu.h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(l.mu.h.ValueAtQuantile(q))
}

// Max returns the largest recorded latency.
func (l *latencyHistogram) Max() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mu.h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(l.mu.h.Max())
}
