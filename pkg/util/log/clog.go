// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
)

// Severity is the severity of a log entry.
type Severity int8

// Severity levels, in increasing order.
const (
	Severity_INFO Severity = iota
	Severity_WARNING
	Severity_ERROR
	Severity_FATAL
)

func (s Severity) String() string {
	switch s {
	case Severity_INFO:
		return "INFO"
	case Severity_WARNING:
		return "WARNING"
	case Severity_ERROR:
		return "ERROR"
	case Severity_FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) level() slog.Level {
	switch s {
	case Severity_WARNING:
		return slog.LevelWarn
	case Severity_ERROR, Severity_FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var logging struct {
	mu struct {
		syncutil.RWMutex
		handler      slog.Handler
		exitOverride struct {
			f func(int)
		}
	}
	verbosity  atomic.Int32
	redactable atomic.Bool
}

func init() {
	logging.mu.handler = NewHandler(os.Stderr, "text")
}

// NewHandler returns a slog handler writing to w. format is either "json" or
// "text"; anything else is treated as "text".
func NewHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetHandler replaces the sink that log entries are written to. It returns
// the previous handler.
func SetHandler(h slog.Handler) slog.Handler {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	prev := logging.mu.handler
	logging.mu.handler = h
	return prev
}

func handler() slog.Handler {
	logging.mu.RLock()
	defer logging.mu.RUnlock()
	return logging.mu.handler
}

// SetVerbosity sets the level below which V, VEventf and VInfof emit entries.
func SetVerbosity(level int32) {
	logging.verbosity.Store(level)
}

// V returns true if the configured verbosity is at least level.
func V(level int32) bool {
	return logging.verbosity.Load() >= level
}

// SetRedactable controls whether emitted messages keep redaction markers
// around unsafe values.
func SetRedactable(redactable bool) {
	logging.redactable.Store(redactable)
}
