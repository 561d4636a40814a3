// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
)

// CaptureBuffer collects log output for inspection in tests.
type CaptureBuffer struct {
	mu  syncutil.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (c *CaptureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// String returns everything logged so far.
func (c *CaptureBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Count returns the number of captured lines containing substr.
func (c *CaptureBuffer) Count(substr string) int {
	n := 0
	for _, line := range strings.Split(c.String(), "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// Capture redirects log output to a fresh CaptureBuffer until the returned
// function is called.
//
//	buf, restore := log.Capture()
//	defer restore()
func Capture() (*CaptureBuffer, func()) {
	buf := &CaptureBuffer{}
	prev := SetHandler(NewHandler(buf, "text"))
	return buf, func() { SetHandler(prev) }
}
