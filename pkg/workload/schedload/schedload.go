// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package schedload generates a synthetic SQL workload against a scheduler
// pool: every session repeatedly parses a statement of random priority and
// executes it in quanta, yielding to higher priority statements and
// committing through a page operation awaited with a wait gate.
package schedload

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sqlsched/pkg/sched"
	"github.com/cockroachdb/sqlsched/pkg/util/log"
	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
	"github.com/cockroachdb/sqlsched/pkg/util/timeutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config configures a workload run.
type Config struct {
	// Sessions is the number of concurrent sessions.
	Sessions int
	// Duration is how long sessions keep issuing statements.
	Duration time.Duration
	// MaxQuanta bounds the number of quanta of a statement.
	MaxQuanta int
	// WorkPerQuantum is the number of hash rounds of a quantum.
	WorkPerQuantum int
	// FailureRate is the fraction of statements that fail.
	FailureRate float64
	// MaxRate limits the number of statements issued per second across all
	// sessions. Zero means unlimited.
	MaxRate float64
	// Seed seeds the statement generator.
	Seed int64
}

// SetDefaults fills in unset fields.
func (c *Config) SetDefaults() {
	if c.Sessions == 0 {
		c.Sessions = 16
	}
	if c.Duration == 0 {
		c.Duration = time.Second
	}
	if c.MaxQuanta == 0 {
		c.MaxQuanta = 8
	}
	if c.WorkPerQuantum == 0 {
		c.WorkPerQuantum = 256
	}
}

// Stats summarizes a run.
type Stats struct {
	Statements int64
	Failed     int64
	Quanta     int64
	Yields     int64
	Elapsed    time.Duration

	// Statement latency percentiles.
	P50, P99, Max time.Duration
}

// Run drives the workload against pool until cfg.Duration elapsed or ctx is
// done. The pool must be started.
func Run(ctx context.Context, pool *sched.Pool, cfg Config) (Stats, error) {
	cfg.SetDefaults()
	if cfg.Sessions < 0 || cfg.MaxQuanta < 0 || cfg.FailureRate < 0 || cfg.FailureRate > 1 ||
		cfg.MaxRate < 0 {
		return Stats{}, errors.Newf("invalid workload config %+v", cfg)
	}
	st := stats{latency: newLatencyHistogram()}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRate), 1)
	}
	start := timeutil.Now()
	deadline := start.Add(cfg.Duration)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Sessions; i++ {
		w := &worker{
			cfg:     cfg,
			rng:     rand.New(rand.NewSource(cfg.Seed + int64(i))),
			stats:   &st,
			limiter: limiter,
			sess:    &session{},
			conn:    &conn{id: i},
		}
		si, err := pool.BindSession(w.conn, w.sess, int32(i+1), 0)
		if err != nil {
			_ = g.Wait()
			return Stats{}, err
		}
		w.si = si
		g.Go(func() error {
			defer si.Remove()
			return w.run(ctx, deadline)
		})
	}
	err := g.Wait()
	s := Stats{
		Statements: st.statements.Load(),
		Failed:     st.failed.Load(),
		Quanta:     st.quanta.Load(),
		Yields:     st.yields.Load(),
		Elapsed:    timeutil.Since(start),
		P50:        st.latency.Quantile(50),
		P99:        st.latency.Quantile(99),
		Max:        st.latency.Max(),
	}
	log.Infof(ctx, "workload done: %d statements, %d failed, %d quanta, %d yields in %s",
		s.Statements, s.Failed, s.Quanta, s.Yields, s.Elapsed)
	return s, err
}

type stats struct {
	statements atomic.Int64
	failed     atomic.Int64
	quanta     atomic.Int64
	yields     atomic.Int64
	latency    *latencyHistogram
}

type worker struct {
	cfg     Config
	rng     *rand.Rand
	stats   *stats
	limiter *rate.Limiter
	si      *sched.SessionInfo
	sess    *session
	conn    *conn
}

// run issues statements one after the other until the deadline.
func (w *worker) run(ctx context.Context, deadline time.Time) error {
	for packetID := int32(1); timeutil.Now().Before(deadline); packetID++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		if !timeutil.Now().Before(deadline) {
			return nil
		}
		issued := timeutil.Now()
		prio := sched.MinPriority + w.rng.Int31n(sched.MaxPriority-sched.MinPriority+1)
		quanta := 1 + w.rng.Intn(w.cfg.MaxQuanta)
		fail := w.rng.Float64() < w.cfg.FailureRate
		done := make(chan struct{})
		w.si.SubmitTask(sched.NewTask("parse", sched.NormalPriority, func(context.Context) error {
			w.si.SubmitYieldableCommand(packetID, &statement{priority: prio},
				w.yieldable(quanta, fail, done))
			return nil
		}))
		select {
		case <-done:
			w.stats.latency.Record(timeutil.Since(issued))
		case <-ctx.Done():
			return ctx.Err()
		case <-w.si.Scheduler().Done():
			return errors.Wrap(sched.ErrSchedulerStopped, "running workload")
		}
	}
	return nil
}

func (w *worker) yieldable(quanta int, fail bool, done chan struct{}) sched.Yieldable {
	var n int
	finish := func(res sched.ExecResult) sched.ExecResult {
		w.stats.statements.Add(1)
		if res.Status == sched.ExecFailed {
			w.stats.failed.Add(1)
		}
		close(done)
		return res
	}
	return sched.YieldableFunc(func(ctx context.Context, cmd *sched.Command) sched.ExecResult {
		for {
			n++
			w.stats.quanta.Add(1)
			spin(w.cfg.WorkPerQuantum)
			if n >= quanta {
				break
			}
			if cmd.ShouldYield(ctx) {
				w.stats.yields.Add(1)
				return sched.Yielded()
			}
		}
		if fail {
			return finish(sched.Failed(errors.Newf("statement %d failed", cmd.PacketID())))
		}
		return finish(w.commit(ctx, cmd))
	})
}

// commit waits for a flush page operation. The wait gate keeps the scheduler
// draining its page operation queue, which is where the flush runs.
func (w *worker) commit(ctx context.Context, cmd *sched.Command) sched.ExecResult {
	s := w.si.Scheduler()
	gate := s.BeginOperation()
	s.HandlePageOperation(sched.PageOperationFunc(
		func(context.Context, sched.PageOperationHandler) error {
			gate.Complete()
			return nil
		}))
	if err := gate.Join(ctx); err != nil {
		return sched.Failed(errors.Wrapf(err, "committing packet %d", cmd.PacketID()))
	}
	return sched.Completed()
}

var spinSink atomic.Uint64

func spin(rounds int) {
	h := fnv.New64a()
	var b [8]byte
	for i := 0; i < rounds; i++ {
		b[0] = byte(i)
		_, _ = h.Write(b[:])
	}
	spinSink.Add(h.Sum64() & 1)
}

type statement struct {
	priority int32
}

func (s *statement) Priority() int32 { return atomic.LoadInt32(&s.priority) }

func (s *statement) SetPriority(p int32) { atomic.StoreInt32(&s.priority, p) }

type session struct {
	mu struct {
		syncutil.Mutex
		cmd *sched.Command
	}
}

func (s *session) InstalledCommand() *sched.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.cmd
}

func (s *session) SetInstalledCommand(c *sched.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.cmd = c
}

func (s *session) Status() sched.SessionStatus {
	if s.InstalledCommand() != nil {
		return sched.StatusRunning
	}
	return sched.StatusIdle
}

func (s *session) ReplicationName() string { return "" }

func (s *session) CheckTransactionTimeout() error { return nil }

type conn struct {
	id       int
	reported atomic.Int64
	closed   atomic.Bool
}

func (c *conn) ReportError(ctx context.Context, _ sched.Session, packetID int32, err error) {
	c.reported.Add(1)
	log.VEventf(ctx, 2, "conn %d: packet %d: %v", c.id, packetID, err)
}

func (c *conn) ForceCloseSession(context.Context, *sched.SessionInfo) {
	c.closed.Store(true)
}

func (c *conn) Host() string { return "localhost" }

func (c *conn) Port() int { return 26257 + c.id }

// String implements fmt.Stringer.
func (c *conn) String() string { return fmt.Sprintf("conn %d", c.id) }
