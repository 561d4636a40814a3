// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

func TestContextTagsArePrefixed(t *testing.T) {
	buf, restore := Capture()
	defer restore()

	ctx := logtags.AddTag(context.Background(), "n", 1)
	ctx = logtags.AddTag(ctx, "sched", 3)
	Infof(ctx, "hello %s", "world")

	out := buf.String()
	require.Contains(t, out, "[n1,sched=3] hello world")
	require.Contains(t, out, "level=INFO")
}

func TestFormatWithContextTags(t *testing.T) {
	ctx := WithLogTag(context.Background(), "s", 7)
	require.Equal(t, "[s7] x=1", FormatWithContextTags(ctx, "x=%d", 1))
	require.Equal(t, "plain", FormatWithContextTags(context.Background(), "plain"))
}

func TestSeverityLevels(t *testing.T) {
	buf, restore := Capture()
	defer restore()

	ctx := context.Background()
	Warningf(ctx, "careful")
	Errorf(ctx, "broken")
	require.Equal(t, 1, buf.Count("level=WARN"))
	require.Equal(t, 1, buf.Count("level=ERROR"))
}

func TestVerbosityGatesEvents(t *testing.T) {
	buf, restore := Capture()
	defer restore()
	defer SetVerbosity(0)

	ctx := context.Background()
	VEventf(ctx, 2, "hidden")
	require.Zero(t, buf.Count("hidden"))

	SetVerbosity(2)
	VEventf(ctx, 2, "shown")
	VEvent(ctx, 3, "still hidden")
	require.Equal(t, 1, buf.Count("shown"))
	require.Zero(t, buf.Count("still hidden"))
}

func TestRedactableOutput(t *testing.T) {
	buf, restore := Capture()
	defer restore()
	defer SetRedactable(false)

	ctx := context.Background()
	Infof(ctx, "user %s safe %s", "secret", redact.Safe("visible"))
	require.Contains(t, buf.String(), "user secret safe visible")

	SetRedactable(true)
	Infof(ctx, "user %s", "secret")
	require.Contains(t, buf.String(), "‹secret›")
}

func TestFatalUsesExitOverride(t *testing.T) {
	_, restore := Capture()
	defer restore()

	var code int
	SetExitFunc(func(c int) { code = c })
	defer ResetExitFunc()

	Fatalf(context.Background(), "boom")
	require.Equal(t, 1, code)
}

func TestEveryN(t *testing.T) {
	e := Every(time.Minute)
	start := time.Now()
	require.True(t, e.shouldProcess(start))
	require.False(t, e.shouldProcess(start.Add(time.Second)))
	require.True(t, e.shouldProcess(start.Add(time.Minute)))

	var zero EveryN
	require.True(t, zero.shouldProcess(start))
	require.True(t, zero.shouldProcess(start))
}
