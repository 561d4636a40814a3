// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/sqlsched/pkg/util/log"
	"github.com/cockroachdb/sqlsched/pkg/util/queue"
)

// SessionStatus is the transaction/statement state of a session as far as
// command selection is concerned.
type SessionStatus int8

const (
	// StatusIdle sessions have no transaction in progress.
	StatusIdle SessionStatus = iota
	// StatusRunning sessions are executing a statement.
	StatusRunning
	// StatusWaiting sessions are blocked on a resource (e.g. a row lock held
	// by another transaction).
	StatusWaiting
	// StatusCommitting sessions are committing their transaction.
	StatusCommitting
	// StatusExclusive sessions hold exclusive mode.
	StatusExclusive
	// StatusReplicaCompleted sessions finished a replicated statement whose
	// result has not been consumed yet.
	StatusReplicaCompleted
)

var sessionStatusNames = [...]string{
	StatusIdle:             "idle",
	StatusRunning:          "running",
	StatusWaiting:          "waiting",
	StatusCommitting:       "committing",
	StatusExclusive:        "exclusive",
	StatusReplicaCompleted: "replica-completed",
}

// SafeValue implements redact.SafeValue.
func (s SessionStatus) SafeValue() {}

func (s SessionStatus) String() string {
	if s >= 0 && int(s) < len(sessionStatusNames) {
		return sessionStatusNames[s]
	}
	return "unknown"
}

// Session is the server session a SessionInfo schedules work for.
type Session interface {
	// InstalledCommand returns the command currently installed on the session,
	// or nil.
	InstalledCommand() *Command
	// SetInstalledCommand installs c, or clears the command if c is nil.
	SetInstalledCommand(c *Command)
	Status() SessionStatus
	// ReplicationName returns the name of the replication the session takes
	// part in, or "" if the session is not replicating.
	ReplicationName() string
	// CheckTransactionTimeout returns an error if the session's transaction
	// waited for too long.
	CheckTransactionTimeout() error
}

// Connection is the client connection owning one or more sessions.
type Connection interface {
	// ReportError sends err to the client as the response to packetID.
	ReportError(ctx context.Context, s Session, packetID int32, err error)
	// ForceCloseSession closes the session described by si.
	ForceCloseSession(ctx context.Context, si *SessionInfo)
	Host() string
	Port() int
}

// SessionInfo binds a session to the scheduler that runs all of its work.
// Tasks submitted to the session queue only run when the session has no
// installed command, so statements of the same session execute one after
// the other.
type SessionInfo struct {
	scheduler *Scheduler
	conn      Connection
	session   Session
	id        int32
	timeout   time.Duration
	handle    SessionHandle

	tasks *queue.Concurrent[AsyncTask]
	// lastActive is the time of the last submitted task, in nanoseconds since
	// the epoch as observed by the scheduler's time source.
	lastActive atomic.Int64
	closed     atomic.Bool
}

// ID returns the session id.
func (si *SessionInfo) ID() int32 { return si.id }

// Session returns the bound session.
func (si *SessionInfo) Session() Session { return si.session }

// Conn returns the connection owning the session.
func (si *SessionInfo) Conn() Connection { return si.conn }

// Scheduler returns the scheduler the session is bound to.
func (si *SessionInfo) Scheduler() *Scheduler { return si.scheduler }

// Handle returns the session's handle in its scheduler's registry.
func (si *SessionInfo) Handle() SessionHandle { return si.handle }

// Timeout returns the idle timeout, 0 if disabled.
func (si *SessionInfo) Timeout() time.Duration { return si.timeout }

// Closed returns true once the session was removed from its scheduler.
func (si *SessionInfo) Closed() bool { return si.closed.Load() }

// SafeFormat implements redact.SafeFormatter.
func (si *SessionInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("session %d", redact.SafeInt(si.id))
}

func (si *SessionInfo) String() string { return redact.StringWithoutMarkers(si) }

func (si *SessionInfo) updateLastActiveTime() {
	si.lastActive.Store(si.scheduler.timeSource.Now().UnixNano())
}

// LastActiveTime returns the time the session last received a task.
func (si *SessionInfo) LastActiveTime() time.Time {
	return time.Unix(0, si.lastActive.Load()).UTC()
}

// SubmitTask queues task on the session and wakes the scheduler. Safe for
// concurrent use.
func (si *SessionInfo) SubmitTask(task AsyncTask) {
	si.updateLastActiveTime()
	si.tasks.Push(task)
	si.scheduler.Wake()
}

// SubmitYieldableCommand installs a command running y for the statement on
// the session. It is called from session tasks, which already run on the
// scheduler goroutine, so the scheduler is not woken.
func (si *SessionInfo) SubmitYieldableCommand(
	packetID int32, stmt Statement, y Yieldable,
) *Command {
	c := &Command{
		packetID:  packetID,
		sessionID: si.id,
		stmt:      stmt,
		yieldable: y,
		si:        si,
	}
	si.session.SetInstalledCommand(c)
	return c
}

// Remove unbinds the session from its scheduler. It is idempotent.
func (si *SessionInfo) Remove() {
	si.closed.Store(true)
	si.scheduler.removeSessionInfo(si)
}

// PendingTasks returns the number of queued session tasks.
func (si *SessionInfo) PendingTasks() int {
	return si.tasks.Len()
}

// runSessionTasks is the gating pass: queued tasks run only while no command
// is installed, unless the session is replicating, in which case follow-up
// tasks such as async commit acknowledgements may run alongside the command.
// The pass stops as soon as a task installs a command. It returns the number
// of tasks run.
func (si *SessionInfo) runSessionTasks(ctx context.Context) (n int) {
	if si.session.InstalledCommand() != nil && si.session.ReplicationName() == "" {
		return 0
	}
	for {
		task, ok := si.tasks.Pop()
		if !ok {
			return n
		}
		n++
		si.scheduler.metrics.SessionTasksRun.Inc(1)
		if err := runSafely(ctx, task.Run); err != nil {
			si.scheduler.metrics.TaskFailures.Inc(1)
			log.Warningf(ctx, "failed to run async session task %v, session id: %d: %v",
				task, si.id, err)
		}
		// Parsing an update or query packet installs its command through
		// SubmitYieldableCommand.
		if si.session.InstalledCommand() != nil {
			return n
		}
	}
}

// checkSessionTimeout force closes the session if it has been idle for longer
// than its timeout. It returns true if the session was closed by this call.
func (si *SessionInfo) checkSessionTimeout(ctx context.Context, now time.Time) bool {
	if si.timeout <= 0 {
		return false
	}
	if now.Sub(si.LastActiveTime()) <= si.timeout {
		return false
	}
	if !si.closed.CompareAndSwap(false, true) {
		return false
	}
	si.conn.ForceCloseSession(ctx, si)
	si.scheduler.removeSessionInfo(si)
	si.scheduler.metrics.SessionTimeouts.Inc(1)
	log.Warningf(ctx, "client session timeout, session id: %d, host: %s, port: %d",
		si.id, si.conn.Host(), si.conn.Port())
	return true
}
