// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package queue

import (
	"sync"

	"github.com/cockroachdb/errors"
)

const defaultChunkSize = 128

// Queue is a FIFO queue backed by a linked list of fixed size chunks. Chunks
// are recycled through a pool once fully consumed, so a queue that is
// repeatedly filled and drained does not allocate in steady state.
//
// It is not safe for concurrent use. See Concurrent.
type Queue[T any] struct {
	chunkSize int
	head      *queueChunk[T]
	tail      *queueChunk[T]
	len       int
	pool      sync.Pool
}

// Option configures a Queue.
type Option[T any] func(*Queue[T])

// WithChunkSize sets the number of elements held by each chunk.
func WithChunkSize[T any](size int) Option[T] {
	return func(q *Queue[T]) {
		q.chunkSize = size
	}
}

// NewQueue constructs an empty queue.
func NewQueue[T any](opts ...Option[T]) (*Queue[T], error) {
	q := &Queue[T]{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(q)
	}
	if q.chunkSize <= 0 {
		return nil, errors.Newf("chunk size must be positive, found %d", q.chunkSize)
	}
	size := q.chunkSize
	q.pool.New = func() interface{} {
		return &queueChunk[T]{events: make([]T, size)}
	}
	return q, nil
}

// Enqueue adds an element to the back of the queue.
func (q *Queue[T]) Enqueue(e T) {
	if q.tail == nil {
		c := q.getChunk()
		q.head, q.tail = c, c
	} else if q.tail.full() {
		c := q.getChunk()
		q.tail.next = c
		q.tail = c
	}
	q.tail.push(e)
	q.len++
}

// Dequeue removes and returns the element at the front of the queue. The
// boolean is false if the queue was empty.
func (q *Queue[T]) Dequeue() (e T, ok bool) {
	if q.head == nil || q.head.empty() {
		return e, false
	}
	e = q.head.pop()
	q.len--
	if q.head.finished() {
		finished := q.head
		q.head = finished.next
		if q.head == nil {
			q.tail = nil
		}
		q.putChunk(finished)
	}
	return e, true
}

// Empty returns true if the queue holds no elements.
func (q *Queue[T]) Empty() bool {
	return q.head == nil || q.head.empty()
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	return q.len
}

// purge drops all elements and chunks.
func (q *Queue[T]) purge() {
	for q.head != nil {
		next := q.head.next
		q.putChunk(q.head)
		q.head = next
	}
	q.tail = nil
	q.len = 0
}

func (q *Queue[T]) getChunk() *queueChunk[T] {
	return q.pool.Get().(*queueChunk[T])
}

func (q *Queue[T]) putChunk(c *queueChunk[T]) {
	var zero T
	for i := range c.events[c.head:c.tail] {
		c.events[c.head+i] = zero
	}
	c.head, c.tail, c.next = 0, 0, nil
	q.pool.Put(c)
}

// queueChunk is a fixed size segment of a Queue. Elements are pushed at tail
// and popped at head; a chunk whose head reached the end of events is
// finished and gets recycled.
type queueChunk[T any] struct {
	events     []T
	head, tail int
	next       *queueChunk[T]
}

func (c *queueChunk[T]) push(e T) {
	c.events[c.tail] = e
	c.tail++
}

func (c *queueChunk[T]) pop() T {
	var zero T
	e := c.events[c.head]
	c.events[c.head] = zero
	c.head++
	return e
}

func (c *queueChunk[T]) empty() bool {
	return c.head == c.tail
}

func (c *queueChunk[T]) full() bool {
	return c.tail == len(c.events)
}

func (c *queueChunk[T]) finished() bool {
	return c.head == len(c.events)
}
