// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "context"

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, format, args)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_WARNING, format, args)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_ERROR, format, args)
}

// Fatalf logs to the FATAL severity and then exits the process, unless an
// exit override was installed with SetExitFunc.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_FATAL, format, args)
	exit(1)
}

// VInfof logs to the INFO severity if the verbosity is at least level.
func VInfof(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, Severity_INFO, format, args)
	}
}

// VWarningf logs to the WARNING severity if the verbosity is at least level.
func VWarningf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, Severity_WARNING, format, args)
	}
}

// VEventf records an event at the given verbosity. Without tracing, events
// are plain INFO entries gated on verbosity.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	VInfof(ctx, level, format, args...)
}

// VEvent is like VEventf without format arguments.
func VEvent(ctx context.Context, level int32, msg string) {
	if V(level) {
		addStructured(ctx, Severity_INFO, "%s", []interface{}{msg})
	}
}
