// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testutils

import (
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultSucceedsSoonDuration is the maximum amount of time unittests
// will wait for a condition to become true.
const DefaultSucceedsSoonDuration = 45 * time.Second

// SucceedsSoon fails the test (with t.Fatal) unless the supplied function runs
// without error within a preset maximum duration. The function is invoked
// immediately at first and then successively with an exponential backoff
// starting at 1ns and ending at around 1s.
func SucceedsSoon(t TestFataler, fn func() error) {
	t.Helper()
	SucceedsWithin(t, fn, DefaultSucceedsSoonDuration)
}

// SucceedsWithin fails the test (with t.Fatal) unless the supplied function
// runs without error within the given duration.
func SucceedsWithin(t TestFataler, fn func() error, duration time.Duration) {
	t.Helper()
	if err := SucceedsWithinError(fn, duration); err != nil {
		t.Fatalf("condition failed to evaluate within %s: %s", duration, err)
	}
}

// SucceedsWithinError returns an error unless the supplied function runs
// without error within the given duration.
func SucceedsWithinError(fn func() error, duration time.Duration) error {
	deadline := time.Now().Add(duration)
	backoff := time.Nanosecond
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrap(err, "timed out")
		}
		time.Sleep(backoff)
		if backoff *= 2; backoff > time.Second {
			backoff = time.Second
		}
	}
}
