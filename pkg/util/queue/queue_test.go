// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package queue

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkInvariants[T any](t *testing.T, q *Queue[T]) {
	if q.head == nil && q.tail == nil {
		require.True(t, q.Empty())
		require.Zero(t, q.Len())
	} else if q.head == nil || q.tail == nil {
		t.Fatal("exactly one of head and tail is nil")
	} else {
		// The queue never retains a fully consumed chunk.
		require.False(t, q.head.finished())
		require.False(t, q.tail.finished())

		if q.head == q.tail {
			require.Nil(t, q.head.next)
		} else {
			// Chunks are only appended on push, so a tail distinct from the head
			// holds at least one element, and the head cannot be empty.
			require.False(t, q.Empty())
			require.False(t, q.head.empty())
			require.False(t, q.tail.empty())
		}
	}
}

type testQueueItem struct {
	i int64
}

func TestQueue(t *testing.T) {
	rng := rand.New(rand.NewSource(rand.Int63()))

	const eventCount = 1000
	chunkSize := rng.Intn(255) + 1

	q, err := NewQueue[*testQueueItem](WithChunkSize[*testQueueItem](chunkSize))
	require.NoError(t, err)
	assert.True(t, q.Empty())
	q.Enqueue(&testQueueItem{})
	assert.False(t, q.Empty())
	_, ok := q.Dequeue()
	assert.True(t, ok)
	assert.True(t, q.Empty())

	// Fill several chunks and pop each element, checking Empty as we go.
	checkInvariants(t, q)
	for i := 0; i < eventCount; i++ {
		q.Enqueue(&testQueueItem{})
	}
	require.Equal(t, eventCount, q.Len())
	checkInvariants(t, q)
	remaining := eventCount
	for {
		assert.Equal(t, remaining <= 0, q.Empty())
		_, ok = q.Dequeue()
		if !ok {
			assert.True(t, q.Empty())
			break
		}
		remaining--
		checkInvariants(t, q)
	}
	assert.Equal(t, 0, remaining)

	// Interleave pushes and pops and assert elements come out in FIFO order.
	var lastPop int64 = -1
	var lastPush int64 = -1
	popped := 0
	for popped < eventCount {
		if rng.Intn(5) < 3 {
			lastPush++
			q.Enqueue(&testQueueItem{i: lastPush})
		} else {
			e, ok := q.Dequeue()
			if !ok {
				assert.Equal(t, lastPop, lastPush)
				assert.True(t, q.Empty())
			} else {
				assert.Equal(t, lastPop+1, e.i)
				lastPop++
				popped++
			}
		}
		checkInvariants(t, q)
	}

	q.purge()
	require.Nil(t, q.head)
	require.Nil(t, q.tail)
	require.True(t, q.Empty())
}

func TestChunkSize(t *testing.T) {
	q, err := NewQueue[*testQueueItem](WithChunkSize[*testQueueItem](0))
	require.Error(t, err)
	require.Nil(t, q)

	q, err = NewQueue[*testQueueItem](WithChunkSize[*testQueueItem](1))
	require.NoError(t, err)
	require.Equal(t, 1, q.chunkSize)

	q, err = NewQueue[*testQueueItem]()
	require.NoError(t, err)
	require.Equal(t, defaultChunkSize, q.chunkSize)
}

func TestConcurrentManyProducers(t *testing.T) {
	c, err := NewConcurrent[int](WithChunkSize[int](7))
	require.NoError(t, err)
	require.True(t, c.Empty())

	const producers, perProducer = 8, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				c.Push(p*perProducer + i)
			}
		}(p)
	}
	wg.Wait()
	require.Equal(t, producers*perProducer, c.Len())

	// Each producer's elements come out in the order it pushed them.
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	n := 0
	for {
		v, ok := c.Pop()
		if !ok {
			break
		}
		p, i := v/perProducer, v%perProducer
		require.Greater(t, i, last[p])
		last[p] = i
		n++
	}
	require.Equal(t, producers*perProducer, n)
	require.True(t, c.Empty())
}
