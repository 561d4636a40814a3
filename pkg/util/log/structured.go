// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
)

// FormatWithContextTags formats the string and prepends the context
// tags.
//
// Redaction markers are *not* inserted. The resulting
// string is generally unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, &buf)
	buf.WriteString(redact.Sprintf(format, args...).StripMarkers())
	return buf.String()
}

// formatTags writes the context tags of ctx in bracketed form, e.g.
// "[n1,sched=3] ". Single letter keys are written without the '='.
func formatTags(ctx context.Context, buf *strings.Builder) {
	tags := logtags.FromContext(ctx)
	if tags == nil {
		return
	}
	buf.WriteByte('[')
	for i, t := range tags.Get() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(t.Key())
		if v := t.ValueStr(); v != "" || t.Value() != nil {
			if len(t.Key()) > 1 {
				buf.WriteByte('=')
			}
			buf.WriteString(v)
		}
	}
	buf.WriteString("] ")
}

// addStructured creates a structured log entry and writes it to the
// configured handler.
func addStructured(ctx context.Context, sev Severity, format string, args []interface{}) {
	msg := redact.Sprintf(format, args...)
	var buf strings.Builder
	formatTags(ctx, &buf)
	if logging.redactable.Load() {
		buf.WriteString(string(msg))
	} else {
		buf.WriteString(msg.StripMarkers())
	}

	h := handler()
	if !h.Enabled(ctx, sev.level()) {
		return
	}
	r := slog.NewRecord(time.Now(), sev.level(), buf.String(), 0)
	if sev == Severity_FATAL {
		r.AddAttrs(slog.String("severity", sev.String()))
	}
	_ = h.Handle(ctx, r)
}

// WithLogTag returns a context with the given tag added, in the manner of
// logtags.AddTag.
func WithLogTag(ctx context.Context, name string, value interface{}) context.Context {
	return logtags.AddTag(ctx, name, value)
}
