// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package syncutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutexGuardsCounter(t *testing.T) {
	var mu struct {
		Mutex
		n int
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				mu.Lock()
				mu.AssertHeld()
				mu.n++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8000, mu.n)
}

func TestRWMutexReaders(t *testing.T) {
	var rw RWMutex
	rw.RLock()
	rw.AssertRHeld()
	// A second reader must not block while the first holds the lock.
	rw.RLock()
	rw.RUnlock()
	rw.RUnlock()

	rw.Lock()
	rw.AssertHeld()
	rw.Unlock()
}
