// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metric

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sqlsched/pkg/util/syncutil"
	"github.com/prometheus/client_golang/prometheus"
)

// A Registry is a list of metrics backed by a prometheus registry.
type Registry struct {
	prom *prometheus.Registry

	mu struct {
		syncutil.Mutex
		tracked []Iterable
	}
}

// NewRegistry creates a new, empty Registry.
func NewRegistry() *Registry {
	return &Registry{prom: prometheus.NewRegistry()}
}

// AddMetric adds the passed-in metric to the registry with the given labels.
func (r *Registry) AddMetric(metric Iterable, labels map[string]string) error {
	if err := r.prom.Register(metric.collector(labels)); err != nil {
		return errors.Wrapf(err, "registering metric %s", metric.GetName())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mu.tracked = append(r.mu.tracked, metric)
	return nil
}

// AddMetricStruct examines all fields of metricStruct and adds all Iterable
// fields to the registry. Nil fields are skipped.
func (r *Registry) AddMetricStruct(metricStruct Struct, labels map[string]string) error {
	v := reflect.ValueOf(metricStruct)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.AssertionFailedf("expected a struct of metrics, found %T", metricStruct)
	}
	for i := 0; i < v.NumField(); i++ {
		if !v.Type().Field(i).IsExported() {
			continue
		}
		vfield := v.Field(i)
		if vfield.Kind() == reflect.Ptr && vfield.IsNil() {
			continue
		}
		m, ok := vfield.Interface().(Iterable)
		if !ok {
			continue
		}
		if err := r.AddMetric(m, labels); err != nil {
			return err
		}
	}
	return nil
}

// Each calls f for every tracked metric.
func (r *Registry) Each(f func(name string, m Iterable)) {
	r.mu.Lock()
	tracked := append([]Iterable(nil), r.mu.tracked...)
	r.mu.Unlock()
	for _, m := range tracked {
		f(m.GetName(), m)
	}
}

// Gatherer exposes the registry to prometheus scrapers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}
