// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"math"

	"github.com/cockroachdb/redact"
)

// TaskPriority is the priority class of an AsyncTask. Tasks of a higher class
// are drained before tasks of a lower class within a tick.
type TaskPriority int8

const (
	// LowPriority tasks run after every other queue has been drained.
	LowPriority TaskPriority = iota
	// NormalPriority is the default class.
	NormalPriority
	// HighPriority tasks are drained first, and also during every housekeeping
	// pass.
	HighPriority

	numTaskPriorities = 3
)

var taskPriorityNames = [numTaskPriorities]string{
	LowPriority:    "low",
	NormalPriority: "normal",
	HighPriority:   "high",
}

// String implements fmt.Stringer.
func (p TaskPriority) String() string {
	return redact.StringWithoutMarkers(p)
}

// SafeFormat implements redact.SafeFormatter.
func (p TaskPriority) SafeFormat(w redact.SafePrinter, _ rune) {
	if p >= 0 && int(p) < numTaskPriorities {
		w.SafeString(redact.SafeString(taskPriorityNames[p]))
		return
	}
	w.Printf("priority(%d)", redact.SafeInt(p))
}

// valid returns false for values outside the closed set of classes.
func (p TaskPriority) valid() bool {
	return p >= LowPriority && p <= HighPriority
}

// Statement priorities. A statement's priority is compared numerically when
// selecting the next command; yielding bumps it by one.
const (
	MinPriority  int32 = 1
	NormPriority int32 = 5
	MaxPriority  int32 = 10
)

// bumpPriority returns p+1, saturating at the top of the int32 range.
// Yielding only happens when another command has a strictly greater
// priority, so the increment is always exactly one in practice.
func bumpPriority(p int32) int32 {
	if p == math.MaxInt32 {
		return p
	}
	return p + 1
}
