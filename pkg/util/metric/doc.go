// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

/*
Package metric provides counters and gauges for server components and exports
them through a prometheus registry.

Adding a new metric

Declare the metric in a struct of metrics owned by the component, with a
Metadata describing it:

	var metaTasksRun = metric.Metadata{
		Name:        "sched.tasks.run",
		Help:        "Number of async tasks run by the scheduler",
		Measurement: "Tasks",
	}

	type Metrics struct {
		TasksRun *metric.Counter
	}

Then add the struct to a Registry, optionally with labels that distinguish
several instances of the component:

	registry.AddMetricStruct(metrics, map[string]string{"scheduler": "3"})

The metric is updated with metrics.TasksRun.Inc(1). Updates are plain atomic
operations; prometheus reads the current value when it scrapes.
*/
package metric
