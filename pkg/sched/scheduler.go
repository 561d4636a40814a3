// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/sqlsched/pkg/util/buildutil"
	"github.com/cockroachdb/sqlsched/pkg/util/log"
	"github.com/cockroachdb/sqlsched/pkg/util/queue"
	"github.com/cockroachdb/sqlsched/pkg/util/stop"
	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
	"github.com/cockroachdb/sqlsched/pkg/util/timeutil"
	"github.com/petermattis/goid"
)

var _ PageOperationHandler = (*Scheduler)(nil)

// ErrSchedulerStopped is returned when work is offered to a stopped
// scheduler.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// ErrSessionClosed is returned by operations on a removed session.
var ErrSessionClosed = errors.New("session closed")

// Scheduler multiplexes the work of a set of sessions onto a single
// goroutine. Any goroutine may submit tasks, page operations and session
// work; only the scheduler goroutine runs them.
//
// Each loop iteration drains the high, normal and low priority task queues in
// that order, then the page operation queue, then runs the queued tasks of
// every session whose installed command allows it, and finally dispatches
// commands in priority order until none is left, at which point it runs
// housekeeping and waits for a wake signal for at most the loop interval.
// Waiting for work is the only point at which the goroutine blocks.
type Scheduler struct {
	id         int
	cfg        Config
	timeSource timeutil.TimeSource
	wake       *WakeSignal
	metrics    *Metrics

	queues  [numTaskPriorities]*queue.Concurrent[AsyncTask]
	pageOps *queue.Concurrent[PageOperation]

	// periodic is copy-on-write: writers copy the slice under mu, the
	// scheduler goroutine loads it without locking.
	periodic struct {
		mu    syncutil.Mutex
		tasks atomic.Pointer[[]AsyncTask]
	}

	sessions sessionRegistry

	// slowJoinLog rate limits warnings about wait gates blocking the
	// scheduler goroutine for long.
	slowJoinLog *log.EveryN

	// nextBestCommand is set by YieldIfNeeded and consumed by the dispatch
	// loop without rescanning. Only accessed by the scheduler goroutine.
	nextBestCommand *Command

	// busy is the moving average of ticks that did work. avg is only
	// accessed by the scheduler goroutine; ratio publishes its value.
	busy struct {
		avg   ewma.MovingAverage
		ratio atomic.Uint64
	}

	workerGID atomic.Int64
	started   atomic.Bool
	stopping  atomic.Bool
	done      chan struct{}
}

// NewScheduler creates a scheduler. It does not run until Start is called.
func NewScheduler(id int, cfg Config) *Scheduler {
	cfg.SetDefaults()
	s := &Scheduler{
		id:          id,
		cfg:         cfg,
		timeSource:  cfg.TimeSource,
		wake:        NewWakeSignal(),
		pageOps:     queue.MakeConcurrent[PageOperation](),
		done:        make(chan struct{}),
		slowJoinLog: log.Every(10 * time.Second),
	}
	for i := range s.queues {
		s.queues[i] = queue.MakeConcurrent[AsyncTask]()
	}
	s.busy.avg = ewma.NewMovingAverage()
	s.metrics = makeMetrics(s)
	return s
}

// ID returns the scheduler id.
func (s *Scheduler) ID() int { return s.id }

// Config returns the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Metrics returns the scheduler's metrics.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// Start runs the scheduler loop in a stopper task. The loop exits when Stop
// is called or when the stopper quiesces. A scheduler can be started once; if
// Start fails the scheduler is stopped and cannot be restarted.
func (s *Scheduler) Start(ctx context.Context, stopper *stop.Stopper) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.AssertionFailedf("scheduler %d already started", s.id)
	}
	ctx = logtags.AddTag(ctx, "sched", s.id)
	err := stopper.RunAsyncTask(ctx, "sched-worker", func(ctx context.Context) {
		ctx, cancel := stopper.WithCancelOnQuiesce(ctx)
		defer cancel()
		s.run(ctx)
	})
	if err != nil {
		s.stopping.Store(true)
		close(s.done)
		return errors.Wrapf(err, "starting scheduler %d", s.id)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	s.claimWorker()
	log.VEventf(ctx, 1, "scheduler started, loop interval %s", s.cfg.LoopInterval)
	for !s.stopping.Load() {
		s.runOnce(ctx)
		if ctx.Err() != nil && !s.stopping.Load() {
			log.Infof(ctx, "scheduler context done, stopping: %v", ctx.Err())
			s.Stop()
		}
	}
	log.VEventf(ctx, 1, "scheduler stopped")
}

// claimWorker makes the calling goroutine the scheduler goroutine.
func (s *Scheduler) claimWorker() {
	s.workerGID.Store(goid.Get())
}

// onWorker returns true when called on the scheduler goroutine.
func (s *Scheduler) onWorker() bool {
	return goid.Get() == s.workerGID.Load()
}

func (s *Scheduler) assertOnWorker() {
	if buildutil.CrdbTestBuild && !s.onWorker() {
		panic(errors.AssertionFailedf("scheduler %d drained off its goroutine", s.id))
	}
}

// runOnce performs one loop iteration. It returns after dispatching every
// eligible command and waiting for new work.
func (s *Scheduler) runOnce(ctx context.Context) {
	s.assertOnWorker()
	n := s.runQueueTasks(ctx, HighPriority)
	n += s.runQueueTasks(ctx, NormalPriority)
	n += s.runQueueTasks(ctx, LowPriority)
	n += s.runPageOperationTasks(ctx)
	n += s.runSessionTasks(ctx)
	n += s.executeNextStatement(ctx)
	s.recordBusy(n > 0)
}

// executeNextStatement dispatches commands, highest priority first, until
// none is eligible. It then waits for the wake signal, bounded by the loop
// interval, and returns the number of command quanta executed.
func (s *Scheduler) executeNextStatement(ctx context.Context) int {
	var executed int
	var last *Command
	for !s.stopping.Load() && ctx.Err() == nil {
		c := s.takeNextBestCommand()
		if c == nil {
			c = s.getNextBestCommand(ctx, MinPriority-1, true /* checkTimeout */)
		}
		if c == nil {
			s.checkSessionTimeout(ctx)
			s.handlePeriodicTasks(ctx)
			s.runPageOperationTasks(ctx)
			s.runSessionTasks(ctx)
			s.runQueueTasks(ctx, HighPriority)
			s.runQueueTasks(ctx, NormalPriority)
			c = s.getNextBestCommand(ctx, MinPriority-1, true /* checkTimeout */)
			if c == nil {
				s.idleWait(ctx)
				return executed
			}
		}
		executed++
		// The same command picked twice in a row: run queued work before the
		// next pick, it may install commands that preempt this one.
		if res := s.executeCommand(ctx, c); c == last || res.Status == ExecPending {
			s.runPageOperationTasks(ctx)
			s.runSessionTasks(ctx)
			s.runQueueTasks(ctx, HighPriority)
			s.runQueueTasks(ctx, NormalPriority)
		}
		last = c
	}
	return executed
}

// takeNextBestCommand consumes the command cached by YieldIfNeeded, unless it
// is no longer installed on a live session.
func (s *Scheduler) takeNextBestCommand() *Command {
	c := s.nextBestCommand
	if c == nil {
		return nil
	}
	s.nextBestCommand = nil
	if c.si.Closed() || c.si.session.InstalledCommand() != c {
		return nil
	}
	return c
}

func (s *Scheduler) executeCommand(ctx context.Context, c *Command) ExecResult {
	s.metrics.CommandsExecuted.Inc(1)
	res := c.execute(ctx)
	if res.Status == ExecFailed {
		s.metrics.CommandFailures.Inc(1)
		log.VEventf(ctx, 2, "%s failed: %v", c, res.Err)
		c.si.conn.ReportError(ctx, c.si.session, c.packetID, res.Err)
	}
	return res
}

func (s *Scheduler) idleWait(ctx context.Context) {
	s.metrics.IdleWaits.Inc(1)
	if _, err := s.wake.Wait(ctx, s.cfg.LoopInterval); err != nil {
		log.Warningf(ctx, "scheduler %d interrupted: %v", s.id, err)
		s.Stop()
	}
}

// getNextBestCommand returns the installed command with the highest priority
// strictly greater than floor, or nil. On ties the first command in registry
// order wins. Sessions that are waiting, committing, in exclusive mode or
// holding an unconsumed replicated result are skipped; if checkTimeout is set,
// waiting sessions that are not replicating have their transaction timeout
// checked first.
func (s *Scheduler) getNextBestCommand(
	ctx context.Context, floor int32, checkTimeout bool,
) *Command {
	var best *Command
	for _, si := range s.sessions.snapshot() {
		c := si.session.InstalledCommand()
		if c == nil {
			continue
		}
		switch si.session.Status() {
		case StatusWaiting:
			if checkTimeout && si.session.ReplicationName() == "" {
				if err := si.session.CheckTransactionTimeout(); err != nil {
					si.conn.ReportError(ctx, si.session, c.packetID, err)
				}
			}
			continue
		case StatusCommitting, StatusExclusive, StatusReplicaCompleted:
			continue
		}
		if p := c.Priority(); p > floor {
			best, floor = c, p
		}
	}
	return best
}

// YieldIfNeeded returns true if a command with a priority strictly greater
// than c's is waiting. In that case c's priority is bumped by one, so that
// repeated yields eventually let it win, and the other command runs next.
func (s *Scheduler) YieldIfNeeded(ctx context.Context, c *Command) bool {
	p := c.Priority()
	next := s.getNextBestCommand(ctx, p, false /* checkTimeout */)
	if next == nil {
		return false
	}
	s.nextBestCommand = next
	c.SetPriority(bumpPriority(p))
	s.metrics.Yields.Inc(1)
	log.VEventf(ctx, 3, "%s yields to %s", c, next)
	return true
}

// runQueueTasks runs tasks of the given class until the queue is empty. It
// returns the number of tasks run.
func (s *Scheduler) runQueueTasks(ctx context.Context, prio TaskPriority) int {
	q := s.queues[prio]
	var n int
	for {
		task, ok := q.Pop()
		if !ok {
			break
		}
		n++
		if err := runSafely(ctx, task.Run); err != nil {
			s.metrics.TaskFailures.Inc(1)
			log.Warningf(ctx, "failed to run async queue task %v: %v", task, err)
		}
	}
	s.metrics.tasksRun[prio].Inc(int64(n))
	return n
}

// runPageOperationTasks runs page operations until the queue is empty. It
// returns the number of operations run.
func (s *Scheduler) runPageOperationTasks(ctx context.Context) int {
	var n int
	for {
		op, ok := s.pageOps.Pop()
		if !ok {
			break
		}
		n++
		if err := runSafely(ctx, func(ctx context.Context) error {
			return op.Run(ctx, s)
		}); err != nil {
			s.metrics.TaskFailures.Inc(1)
			log.Warningf(ctx, "failed to run page operation %v: %v", op, err)
		}
	}
	s.metrics.PageOpsRun.Inc(int64(n))
	return n
}

// runSessionTasks runs the gating pass of every session. It returns the number
// of session tasks run.
func (s *Scheduler) runSessionTasks(ctx context.Context) int {
	var n int
	for _, si := range s.sessions.snapshot() {
		if si.Closed() {
			continue
		}
		n += si.runSessionTasks(ctx)
	}
	return n
}

func (s *Scheduler) checkSessionTimeout(ctx context.Context) {
	sessions := s.sessions.snapshot()
	if len(sessions) == 0 {
		return
	}
	now := s.timeSource.Now()
	for _, si := range sessions {
		si.checkSessionTimeout(ctx, now)
	}
}

// handlePeriodicTasks runs every registered periodic task once, by index. A
// failing task does not prevent the following ones from running.
func (s *Scheduler) handlePeriodicTasks(ctx context.Context) {
	tasks := s.periodic.tasks.Load()
	if tasks == nil {
		return
	}
	for i, task := range *tasks {
		s.metrics.PeriodicRuns.Inc(1)
		if err := runSafely(ctx, task.Run); err != nil {
			s.metrics.TaskFailures.Inc(1)
			log.Warningf(ctx, "failed to run periodic task %v, task index: %d: %v", task, i, err)
		}
	}
}

// Handle queues task on the scheduler. Periodic tasks are registered instead,
// see AddPeriodicTask. Tasks of an unknown class are queued as normal.
func (s *Scheduler) Handle(task AsyncTask) {
	if task.IsPeriodic() {
		s.AddPeriodicTask(task)
	} else {
		prio := task.Priority()
		if !prio.valid() {
			prio = NormalPriority
		}
		s.queues[prio].Push(task)
	}
	s.Wake()
}

// HandlePageOperation queues op on the scheduler.
func (s *Scheduler) HandlePageOperation(op PageOperation) {
	s.pageOps.Push(op)
	s.Wake()
}

// AddPeriodicTask registers task to run on every housekeeping pass.
func (s *Scheduler) AddPeriodicTask(task AsyncTask) {
	s.periodic.mu.Lock()
	defer s.periodic.mu.Unlock()
	var tasks []AsyncTask
	if old := s.periodic.tasks.Load(); old != nil {
		tasks = make([]AsyncTask, len(*old), len(*old)+1)
		copy(tasks, *old)
	}
	tasks = append(tasks, task)
	s.periodic.tasks.Store(&tasks)
}

// RemovePeriodicTask unregisters the first registration of task. Tasks are
// compared by identity. It returns false if task was not registered.
func (s *Scheduler) RemovePeriodicTask(task AsyncTask) bool {
	s.periodic.mu.Lock()
	defer s.periodic.mu.Unlock()
	old := s.periodic.tasks.Load()
	if old == nil {
		return false
	}
	for i, t := range *old {
		if !sameTask(t, task) {
			continue
		}
		tasks := make([]AsyncTask, 0, len(*old)-1)
		tasks = append(tasks, (*old)[:i]...)
		tasks = append(tasks, (*old)[i+1:]...)
		s.periodic.tasks.Store(&tasks)
		return true
	}
	return false
}

// PeriodicTasks returns the number of registered periodic tasks.
func (s *Scheduler) PeriodicTasks() int {
	if tasks := s.periodic.tasks.Load(); tasks != nil {
		return len(*tasks)
	}
	return 0
}

// ScheduleWithFixedDelay submits task to the scheduler after initialDelay,
// then again delay after each submission, until the returned cancel func is
// called or the stopper quiesces. The timer runs in its own stopper task; the
// task itself always runs on the scheduler goroutine.
func (s *Scheduler) ScheduleWithFixedDelay(
	ctx context.Context,
	stopper *stop.Stopper,
	task AsyncTask,
	initialDelay, delay time.Duration,
) (cancel func(), _ error) {
	if delay <= 0 {
		return nil, errors.Newf("delay must be positive, found %s", delay)
	}
	if task.IsPeriodic() {
		return nil, errors.Newf("periodic task %v cannot be scheduled with a fixed delay", task)
	}
	ctx, cancel = stopper.WithCancelOnQuiesce(ctx)
	err := stopper.RunAsyncTask(ctx, "sched-fixed-delay", func(ctx context.Context) {
		var timer timeutil.Timer
		defer timer.Stop()
		timer.Reset(initialDelay)
		for {
			select {
			case <-timer.C:
				timer.Read = true
				if s.stopping.Load() {
					return
				}
				s.Handle(task)
				timer.Reset(delay)
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return cancel, nil
}

// BindSession creates the descriptor of session on this scheduler. A zero
// timeout disables the idle timeout of the session.
func (s *Scheduler) BindSession(
	conn Connection, session Session, id int32, timeout time.Duration,
) (*SessionInfo, error) {
	if s.stopping.Load() {
		return nil, ErrSchedulerStopped
	}
	if timeout < 0 {
		return nil, errors.Newf("session timeout must not be negative, found %s", timeout)
	}
	si := &SessionInfo{
		scheduler: s,
		conn:      conn,
		session:   session,
		id:        id,
		timeout:   timeout,
		tasks:     queue.MakeConcurrent[AsyncTask](),
	}
	si.updateLastActiveTime()
	si.handle = s.sessions.add(si)
	return si, nil
}

// Session returns the session the handle refers to.
func (s *Scheduler) Session(h SessionHandle) (*SessionInfo, error) {
	si, ok := s.sessions.get(h)
	if !ok {
		return nil, errors.Wrapf(ErrSessionClosed, "session handle %s", h)
	}
	return si, nil
}

func (s *Scheduler) removeSessionInfo(si *SessionInfo) {
	s.sessions.remove(si.handle)
}

// Wake raises the wake signal.
func (s *Scheduler) Wake() {
	s.wake.Raise()
}

// Load returns the number of sessions bound to the scheduler.
func (s *Scheduler) Load() int {
	return s.sessions.size()
}

// BusyRatio returns a moving average, between 0 and 1, of the fraction of
// loop iterations that did any work.
func (s *Scheduler) BusyRatio() float64 {
	return math.Float64frombits(s.busy.ratio.Load())
}

func (s *Scheduler) recordBusy(busy bool) {
	var v float64
	if busy {
		v = 1
	}
	s.busy.avg.Add(v)
	s.busy.ratio.Store(math.Float64bits(s.busy.avg.Value()))
}

// Stop makes the scheduler loop exit after the current iteration. It does
// not wait, see Done.
func (s *Scheduler) Stop() {
	s.stopping.Store(true)
	s.Wake()
}

// Stopped returns true once Stop was called.
func (s *Scheduler) Stopped() bool {
	return s.stopping.Load()
}

// Done returns a channel closed when the scheduler loop exits.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
