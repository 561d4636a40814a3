// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sqlsched/pkg/util/log"
	"github.com/cockroachdb/sqlsched/pkg/util/metric"
	"github.com/cockroachdb/sqlsched/pkg/util/stop"
	"golang.org/x/sync/errgroup"
)

// Pool is the fixed set of schedulers of a server. Sessions are bound to the
// least loaded scheduler and stay there for their lifetime.
type Pool struct {
	cfg        PoolConfig
	schedulers []*Scheduler
	stopper    *stop.Stopper
	registry   *metric.Registry
}

// NewPool creates the schedulers of a pool and registers their metrics. The
// schedulers do not run until Start is called.
func NewPool(cfg PoolConfig) (*Pool, error) {
	cfg.SetDefaults()
	if cfg.Schedulers < 0 {
		return nil, errors.Newf("number of schedulers must not be negative, found %d", cfg.Schedulers)
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		cfg:        cfg,
		schedulers: make([]*Scheduler, cfg.Schedulers),
		stopper:    stop.NewStopper(),
		registry:   metric.NewRegistry(),
	}
	for i := range p.schedulers {
		s := NewScheduler(i, cfg.Scheduler)
		labels := map[string]string{"scheduler": strconv.Itoa(i)}
		if err := p.registry.AddMetricStruct(s.Metrics(), labels); err != nil {
			return nil, err
		}
		p.schedulers[i] = s
	}
	return p, nil
}

// Start starts every scheduler.
func (p *Pool) Start(ctx context.Context) error {
	var g errgroup.Group
	for _, s := range p.schedulers {
		s := s
		g.Go(func() error {
			return s.Start(ctx, p.stopper)
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "starting scheduler pool")
	}
	log.Infof(ctx, "started %d schedulers, loop interval %s",
		len(p.schedulers), p.cfg.Scheduler.LoopInterval)
	return nil
}

// Stop stops every scheduler and waits for their loops to exit.
func (p *Pool) Stop(ctx context.Context) {
	for _, s := range p.schedulers {
		s.Stop()
	}
	p.stopper.Stop(ctx)
}

// Stopper returns the stopper running the pool's goroutines.
func (p *Pool) Stopper() *stop.Stopper { return p.stopper }

// Registry returns the metric registry of the pool's schedulers.
func (p *Pool) Registry() *metric.Registry { return p.registry }

// Len returns the number of schedulers.
func (p *Pool) Len() int { return len(p.schedulers) }

// Scheduler returns the i-th scheduler.
func (p *Pool) Scheduler(i int) *Scheduler { return p.schedulers[i] }

// Schedulers returns all schedulers.
func (p *Pool) Schedulers() []*Scheduler { return p.schedulers }

// Pick returns the scheduler with the fewest sessions. Ties go to the
// scheduler with the lowest busy ratio, then to the lowest index.
func (p *Pool) Pick() *Scheduler {
	var best *Scheduler
	for _, s := range p.schedulers {
		if best == nil {
			best = s
			continue
		}
		if l, bl := s.Load(), best.Load(); l < bl || (l == bl && s.BusyRatio() < best.BusyRatio()) {
			best = s
		}
	}
	return best
}

// BindSession binds session to the least loaded scheduler. A negative timeout
// uses the pool's default session timeout.
func (p *Pool) BindSession(
	conn Connection, session Session, id int32, timeout time.Duration,
) (*SessionInfo, error) {
	s := p.Pick()
	if s == nil {
		return nil, errors.New("scheduler pool is empty")
	}
	if timeout < 0 {
		timeout = p.cfg.Scheduler.SessionTimeout
	}
	return s.BindSession(conn, session, id, timeout)
}
