// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import "github.com/cockroachdb/sqlsched/pkg/util/metric"

var (
	metaHighTasksRun = metric.Metadata{
		Name:        "sched.tasks.high",
		Help:        "Number of high priority tasks run",
		Measurement: "Tasks",
	}
	metaNormalTasksRun = metric.Metadata{
		Name:        "sched.tasks.normal",
		Help:        "Number of normal priority tasks run",
		Measurement: "Tasks",
	}
	metaLowTasksRun = metric.Metadata{
		Name:        "sched.tasks.low",
		Help:        "Number of low priority tasks run",
		Measurement: "Tasks",
	}
	metaSessionTasksRun = metric.Metadata{
		Name:        "sched.tasks.session",
		Help:        "Number of session tasks run",
		Measurement: "Tasks",
	}
	metaTaskFailures = metric.Metadata{
		Name:        "sched.tasks.failed",
		Help:        "Number of tasks, page operations and periodic tasks that returned an error or panicked",
		Measurement: "Tasks",
	}
	metaPageOpsRun = metric.Metadata{
		Name:        "sched.page_ops",
		Help:        "Number of page operations run",
		Measurement: "Operations",
	}
	metaPeriodicRuns = metric.Metadata{
		Name:        "sched.periodic",
		Help:        "Number of periodic task invocations",
		Measurement: "Tasks",
	}
	metaCommandsExecuted = metric.Metadata{
		Name:        "sched.commands.executed",
		Help:        "Number of command quanta executed",
		Measurement: "Quanta",
	}
	metaCommandFailures = metric.Metadata{
		Name:        "sched.commands.failed",
		Help:        "Number of command quanta that failed",
		Measurement: "Quanta",
	}
	metaYields = metric.Metadata{
		Name:        "sched.commands.yields",
		Help:        "Number of times a running command yielded to a higher priority command",
		Measurement: "Yields",
	}
	metaSessionTimeouts = metric.Metadata{
		Name:        "sched.sessions.timeouts",
		Help:        "Number of sessions force closed after being idle for too long",
		Measurement: "Sessions",
	}
	metaIdleWaits = metric.Metadata{
		Name:        "sched.idle_waits",
		Help:        "Number of times the scheduler waited for work",
		Measurement: "Waits",
	}
	metaWakesRaised = metric.Metadata{
		Name:        "sched.wakes.raised",
		Help:        "Number of wake signals that set a new pending wake",
		Measurement: "Wakes",
	}
	metaWakesCoalesced = metric.Metadata{
		Name:        "sched.wakes.coalesced",
		Help:        "Number of wake signals absorbed by an already pending wake",
		Measurement: "Wakes",
	}
	metaLiveSessions = metric.Metadata{
		Name:        "sched.sessions.live",
		Help:        "Number of sessions bound to the scheduler",
		Measurement: "Sessions",
	}
	metaBusyRatio = metric.Metadata{
		Name:        "sched.busy_ratio",
		Help:        "Moving average of the fraction of loop ticks that did work",
		Measurement: "Ratio",
	}
)

// Metrics are the metrics of a single scheduler.
type Metrics struct {
	tasksRun         [numTaskPriorities]*metric.Counter
	SessionTasksRun  *metric.Counter
	TaskFailures     *metric.Counter
	PageOpsRun       *metric.Counter
	PeriodicRuns     *metric.Counter
	CommandsExecuted *metric.Counter
	CommandFailures  *metric.Counter
	Yields           *metric.Counter
	SessionTimeouts  *metric.Counter
	IdleWaits        *metric.Counter

	HighTasksRun   *metric.Counter
	NormalTasksRun *metric.Counter
	LowTasksRun    *metric.Counter
	WakesRaised    *metric.FunctionalGauge
	WakesCoalesced *metric.FunctionalGauge
	LiveSessions   *metric.FunctionalGauge
	BusyRatio      *metric.FunctionalGauge
}

// MetricStruct implements metric.Struct.
func (*Metrics) MetricStruct() {}

func makeMetrics(s *Scheduler) *Metrics {
	m := &Metrics{
		SessionTasksRun:  metric.NewCounter(metaSessionTasksRun),
		TaskFailures:     metric.NewCounter(metaTaskFailures),
		PageOpsRun:       metric.NewCounter(metaPageOpsRun),
		PeriodicRuns:     metric.NewCounter(metaPeriodicRuns),
		CommandsExecuted: metric.NewCounter(metaCommandsExecuted),
		CommandFailures:  metric.NewCounter(metaCommandFailures),
		Yields:           metric.NewCounter(metaYields),
		SessionTimeouts:  metric.NewCounter(metaSessionTimeouts),
		IdleWaits:        metric.NewCounter(metaIdleWaits),
		HighTasksRun:     metric.NewCounter(metaHighTasksRun),
		NormalTasksRun:   metric.NewCounter(metaNormalTasksRun),
		LowTasksRun:      metric.NewCounter(metaLowTasksRun),
		WakesRaised: metric.NewFunctionalGauge(metaWakesRaised, func() float64 {
			return float64(s.wake.Raised())
		}),
		WakesCoalesced: metric.NewFunctionalGauge(metaWakesCoalesced, func() float64 {
			return float64(s.wake.Coalesced())
		}),
		LiveSessions: metric.NewFunctionalGauge(metaLiveSessions, func() float64 {
			return float64(s.Load())
		}),
		BusyRatio: metric.NewFunctionalGauge(metaBusyRatio, s.BusyRatio),
	}
	m.tasksRun[LowPriority] = m.LowTasksRun
	m.tasksRun[NormalPriority] = m.NormalTasksRun
	m.tasksRun[HighPriority] = m.HighTasksRun
	return m
}
