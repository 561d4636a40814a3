// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStopperWaitsForTasks(t *testing.T) {
	ctx := context.Background()
	s := NewStopper()

	release := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, s.RunAsyncTask(ctx, "waiter", func(ctx context.Context) {
		<-release
		close(finished)
	}))
	require.Equal(t, 1, s.NumTasks())

	stopped := make(chan struct{})
	go func() {
		s.Stop(ctx)
		close(stopped)
	}()
	<-s.ShouldQuiesce()
	select {
	case <-stopped:
		t.Fatal("stopper stopped while a task was running")
	default:
	}
	close(release)
	<-stopped
	<-finished
	require.Zero(t, s.NumTasks())
}

func TestStopperRefusesTasksWhenQuiescing(t *testing.T) {
	ctx := context.Background()
	s := NewStopper()
	s.Stop(ctx)
	err := s.RunAsyncTask(ctx, "late", func(context.Context) {
		t.Fatal("task must not run")
	})
	require.ErrorIs(t, err, ErrUnavailable)
	<-s.IsStopped()
	// Stopping again is a no-op.
	s.Stop(ctx)
}

func TestStopperClosersRunInReverse(t *testing.T) {
	ctx := context.Background()
	s := NewStopper()
	var order []int
	s.AddCloser(CloserFn(func() { order = append(order, 1) }))
	s.AddCloser(CloserFn(func() { order = append(order, 2) }))
	s.Stop(ctx)
	require.Equal(t, []int{2, 1}, order)

	// Closers added after stopping run immediately.
	s.AddCloser(CloserFn(func() { order = append(order, 3) }))
	require.Equal(t, []int{2, 1, 3}, order)
}

func TestWithCancelOnQuiesce(t *testing.T) {
	s := NewStopper()
	ctx, cancel := s.WithCancelOnQuiesce(context.Background())
	defer cancel()
	s.Stop(context.Background())
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
