// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
)

type testSession struct {
	mu struct {
		syncutil.Mutex
		cmd         *Command
		status      SessionStatus
		replication string
		txnErr      error
	}
}

var _ Session = (*testSession)(nil)

func (s *testSession) InstalledCommand() *Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.cmd
}

func (s *testSession) SetInstalledCommand(c *Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.cmd = c
}

func (s *testSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.status
}

func (s *testSession) setStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.status = status
}

func (s *testSession) ReplicationName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.replication
}

func (s *testSession) setReplication(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.replication = name
}

func (s *testSession) CheckTransactionTimeout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.txnErr
}

func (s *testSession) setTxnErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.txnErr = err
}

type reportedError struct {
	session  Session
	packetID int32
	err      error
}

type testConn struct {
	mu struct {
		syncutil.Mutex
		errs   []reportedError
		closed []int32
	}
}

var _ Connection = (*testConn)(nil)

func (c *testConn) ReportError(_ context.Context, s Session, packetID int32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.errs = append(c.mu.errs, reportedError{session: s, packetID: packetID, err: err})
}

func (c *testConn) ForceCloseSession(_ context.Context, si *SessionInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.closed = append(c.mu.closed, si.ID())
}

func (c *testConn) Host() string { return "127.0.0.1" }

func (c *testConn) Port() int { return 26257 }

func (c *testConn) reported() []reportedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]reportedError(nil), c.mu.errs...)
}

func (c *testConn) closedSessions() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int32(nil), c.mu.closed...)
}

type testStmt struct {
	priority atomic.Int32
}

var _ Statement = (*testStmt)(nil)

func newTestStmt(p int32) *testStmt {
	s := &testStmt{}
	s.priority.Store(p)
	return s
}

func (s *testStmt) Priority() int32 { return s.priority.Load() }

func (s *testStmt) SetPriority(p int32) { s.priority.Store(p) }

// newTestScheduler returns a scheduler whose worker goroutine is the calling
// goroutine, so tests can drive its loop directly.
func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	if cfg.LoopInterval == 0 {
		cfg.LoopInterval = time.Millisecond
	}
	s := NewScheduler(1, cfg)
	s.claimWorker()
	return s
}

// bindTestSession binds a fresh session to s.
func bindTestSession(
	t *testing.T, s *Scheduler, id int32, timeout time.Duration,
) (*SessionInfo, *testSession, *testConn) {
	t.Helper()
	sess, conn := &testSession{}, &testConn{}
	si, err := s.BindSession(conn, sess, id, timeout)
	if err != nil {
		t.Fatal(err)
	}
	return si, sess, conn
}

// installCommand installs a command running fn at priority p on si.
func installCommand(
	si *SessionInfo, packetID int32, p int32, fn YieldableFunc,
) *Command {
	if fn == nil {
		fn = func(context.Context, *Command) ExecResult { return Completed() }
	}
	return si.SubmitYieldableCommand(packetID, newTestStmt(p), fn)
}

// recorder collects events from tasks running on the scheduler goroutine.
type recorder struct {
	mu struct {
		syncutil.Mutex
		events []string
	}
}

func (r *recorder) record(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mu.events = append(r.mu.events, fmt.Sprintf(format, args...))
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.mu.events...)
}

func (r *recorder) task(name string, prio TaskPriority) *Task {
	return NewTask(name, prio, func(context.Context) error {
		r.record("%s", name)
		return nil
	})
}
