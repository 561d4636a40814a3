// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

/*
Package sched implements the per-worker cooperative scheduler of the SQL
server. A Scheduler owns one goroutine which multiplexes, for every session
bound to it, SQL command execution, storage page operations, async tasks and
session housekeeping. Nothing on that goroutine blocks except the bounded idle
wait, so a single worker can serve many sessions.

Work enters a scheduler from any goroutine:

  - Handle routes an AsyncTask to one of three priority tiers (or to the
    periodic registry).
  - HandlePageOperation queues a storage PageOperation.
  - SessionInfo.SubmitTask queues a task that is gated on the session's
    installed command.

and only the worker goroutine dequeues. Each tick drains the High, Normal and
Low tiers, then page operations, then runs the session gating pass and finally
dispatches commands in priority order until no command is eligible.

Commands are cooperative: a Yieldable runs one quantum per Run call and can
ask Command.ShouldYield whether a strictly higher priority command is waiting.
A yielding command has its priority bumped by one, so repeated yields
eventually let it win.

Logic that needs to wait for asynchronous sub-operations uses a WaitGate
(Scheduler.BeginOperation) instead of parking the worker: WaitGate.Join keeps
draining the scheduler's queues until the pending count drops below one.
*/
package sched
