// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metric

import (
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metadata holds the information describing a metric.
type Metadata struct {
	Name        string
	Help        string
	Measurement string
}

// GetName returns the metric name.
func (m Metadata) GetName() string { return m.Name }

// GetHelp returns the help text.
func (m Metadata) GetHelp() string { return m.Help }

// promName converts a dotted metric name into a valid prometheus name.
func (m Metadata) promName() string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(m.Name)
}

// Iterable is implemented by every metric that can be added to a Registry.
type Iterable interface {
	GetName() string
	GetHelp() string
	collector(labels prometheus.Labels) prometheus.Collector
}

// Struct is implemented by structs of metrics. It is a marker interface for
// Registry.AddMetricStruct.
type Struct interface {
	MetricStruct()
}

// Counter is a monotonically increasing int64 counter.
type Counter struct {
	Metadata
	count atomic.Int64
}

var _ Iterable = (*Counter)(nil)

// NewCounter creates a counter.
func NewCounter(metadata Metadata) *Counter {
	return &Counter{Metadata: metadata}
}

// Inc atomically increments the counter by v.
func (c *Counter) Inc(v int64) {
	c.count.Add(v)
}

// Count returns the current value of the counter.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

func (c *Counter) collector(labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name:        c.promName(),
		Help:        c.Help,
		ConstLabels: labels,
	}, func() float64 { return float64(c.Count()) })
}

// Gauge is an int64 value that can go up and down.
type Gauge struct {
	Metadata
	value atomic.Int64
}

var _ Iterable = (*Gauge)(nil)

// NewGauge creates a gauge.
func NewGauge(metadata Metadata) *Gauge {
	return &Gauge{Metadata: metadata}
}

// Update sets the gauge's value.
func (g *Gauge) Update(v int64) {
	g.value.Store(v)
}

// Inc increments the gauge's value.
func (g *Gauge) Inc(v int64) {
	g.value.Add(v)
}

// Dec decrements the gauge's value.
func (g *Gauge) Dec(v int64) {
	g.value.Add(-v)
}

// Value returns the gauge's current value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

func (g *Gauge) collector(labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        g.promName(),
		Help:        g.Help,
		ConstLabels: labels,
	}, func() float64 { return float64(g.Value()) })
}

// FunctionalGauge is a gauge whose value is computed on read.
type FunctionalGauge struct {
	Metadata
	fn func() float64
}

var _ Iterable = (*FunctionalGauge)(nil)

// NewFunctionalGauge creates a gauge that reports the value returned by fn.
func NewFunctionalGauge(metadata Metadata, fn func() float64) *FunctionalGauge {
	return &FunctionalGauge{Metadata: metadata, fn: fn}
}

// Value returns the current value of the gauge.
func (g *FunctionalGauge) Value() float64 {
	return g.fn()
}

func (g *FunctionalGauge) collector(labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        g.promName(),
		Help:        g.Help,
		ConstLabels: labels,
	}, g.fn)
}
