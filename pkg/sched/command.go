// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Statement is the prepared statement a command executes. Its priority is
// mutable: Command.ShouldYield raises it to avoid starvation.
type Statement interface {
	Priority() int32
	SetPriority(p int32)
}

// ExecStatus is the outcome of one quantum of command execution.
type ExecStatus int8

const (
	// ExecCompleted means the command finished; it is detached from its
	// session.
	ExecCompleted ExecStatus = iota
	// ExecYielded means the command made progress and has more to do.
	ExecYielded
	// ExecPending means the command made no progress because it is waiting
	// for asynchronous sub-operations. The scheduler runs an extra
	// housekeeping pass before dispatching again so it does not spin.
	ExecPending
	// ExecFailed means the command failed with ExecResult.Err; the error is
	// reported to the client and the command is detached.
	ExecFailed
)

var execStatusNames = [...]string{
	ExecCompleted: "completed",
	ExecYielded:   "yielded",
	ExecPending:   "pending",
	ExecFailed:    "failed",
}

// SafeValue implements redact.SafeValue.
func (s ExecStatus) SafeValue() {}

func (s ExecStatus) String() string {
	if s >= 0 && int(s) < len(execStatusNames) {
		return execStatusNames[s]
	}
	return "unknown"
}

// ExecResult is returned by Yieldable.Run.
type ExecResult struct {
	Status ExecStatus
	Err    error
}

// Completed returns an ExecCompleted result.
func Completed() ExecResult { return ExecResult{Status: ExecCompleted} }

// Yielded returns an ExecYielded result.
func Yielded() ExecResult { return ExecResult{Status: ExecYielded} }

// Pending returns an ExecPending result.
func Pending() ExecResult { return ExecResult{Status: ExecPending} }

// Failed returns an ExecFailed result carrying err.
func Failed(err error) ExecResult { return ExecResult{Status: ExecFailed, Err: err} }

// Yieldable runs a statement in quanta. Each call to Run performs one quantum
// of work on the scheduler goroutine; long running statements are expected to
// consult cmd.ShouldYield between units of work and return Yielded when it
// returns true.
type Yieldable interface {
	Run(ctx context.Context, cmd *Command) ExecResult
}

// YieldableFunc adapts a function to Yieldable.
type YieldableFunc func(ctx context.Context, cmd *Command) ExecResult

// Run implements Yieldable.
func (f YieldableFunc) Run(ctx context.Context, cmd *Command) ExecResult {
	return f(ctx, cmd)
}

// Command is a statement installed on a session for execution. At most one
// command is installed per session at a time.
type Command struct {
	packetID  int32
	sessionID int32
	stmt      Statement
	yieldable Yieldable
	si        *SessionInfo
}

// PacketID returns the id of the client packet the command responds to.
func (c *Command) PacketID() int32 { return c.packetID }

// SessionID returns the id of the session the command belongs to.
func (c *Command) SessionID() int32 { return c.sessionID }

// SessionInfo returns the descriptor of the command's session.
func (c *Command) SessionInfo() *SessionInfo { return c.si }

// Statement returns the statement being executed.
func (c *Command) Statement() Statement { return c.stmt }

// Priority returns the statement's current priority.
func (c *Command) Priority() int32 { return c.stmt.Priority() }

// SetPriority sets the statement's priority.
func (c *Command) SetPriority(p int32) { c.stmt.SetPriority(p) }

// ShouldYield asks the scheduler whether a command with a strictly higher
// priority is waiting. If so, the command's priority is bumped by one, the
// other command is dispatched next, and the caller should return Yielded.
// It must be called from within Run.
func (c *Command) ShouldYield(ctx context.Context) bool {
	return c.si.scheduler.YieldIfNeeded(ctx, c)
}

// SafeFormat implements redact.SafeFormatter.
func (c *Command) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("command (session %d, packet %d, priority %d)",
		redact.SafeInt(c.sessionID), redact.SafeInt(c.packetID), redact.SafeInt(c.Priority()))
}

func (c *Command) String() string { return redact.StringWithoutMarkers(c) }

// execute runs one quantum. A panic in the yieldable is turned into a failed
// result. Completed and failed commands are detached from the session.
func (c *Command) execute(ctx context.Context) (res ExecResult) {
	err := runSafely(ctx, func(ctx context.Context) error {
		res = c.yieldable.Run(ctx, c)
		return nil
	})
	if err != nil {
		res = Failed(err)
	}
	if res.Status == ExecFailed && res.Err == nil {
		res.Err = errors.AssertionFailedf("%v failed without an error", c)
	}
	switch res.Status {
	case ExecCompleted, ExecFailed:
		c.detach()
	}
	return res
}

// detach uninstalls the command from its session, unless another command has
// been installed in the meantime.
func (c *Command) detach() {
	if c.si.session.InstalledCommand() == c {
		c.si.session.SetInstalledCommand(nil)
	}
}
