// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package queue

import (
	"sync/atomic"

	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
)

// Concurrent is a FIFO queue that any number of goroutines may push to. It is
// meant to be drained by a single consumer, although Pop is safe to call
// concurrently as well.
//
// Empty and Len do not take the lock, so a consumer polling an idle queue
// does not contend with producers.
type Concurrent[T any] struct {
	mu struct {
		syncutil.Mutex
		q *Queue[T]
	}
	len atomic.Int64
}

// NewConcurrent constructs an empty concurrent queue.
func NewConcurrent[T any](opts ...Option[T]) (*Concurrent[T], error) {
	q, err := NewQueue[T](opts...)
	if err != nil {
		return nil, err
	}
	c := &Concurrent[T]{}
	c.mu.q = q
	return c, nil
}

// MakeConcurrent is like NewConcurrent with the default chunk size, which
// cannot fail.
func MakeConcurrent[T any]() *Concurrent[T] {
	c, err := NewConcurrent[T]()
	if err != nil {
		panic(err)
	}
	return c
}

// Push adds e to the back of the queue.
func (c *Concurrent[T]) Push(e T) {
	c.mu.Lock()
	c.mu.q.Enqueue(e)
	c.len.Add(1)
	c.mu.Unlock()
}

// Pop removes the element at the front of the queue.
func (c *Concurrent[T]) Pop() (e T, ok bool) {
	if c.len.Load() == 0 {
		return e, false
	}
	c.mu.Lock()
	e, ok = c.mu.q.Dequeue()
	if ok {
		c.len.Add(-1)
	}
	c.mu.Unlock()
	return e, ok
}

// Empty returns true if the queue held no elements at the moment of the check.
func (c *Concurrent[T]) Empty() bool {
	return c.len.Load() == 0
}

// Len returns the number of queued elements.
func (c *Concurrent[T]) Len() int {
	return int(c.len.Load())
}
