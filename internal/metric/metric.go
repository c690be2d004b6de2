// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package metric is a small adaptation of
// github.com/cockroachdb/cockroach/pkg/util/metric's Metadata/Gauge/Counter
// surface (observed via its callers in pkg/util/admission/granter.go, since
// the package's own defining file was never retrieved into the pack), backed
// by github.com/prometheus/client_golang the way the real package is.
package metric

import "github.com/prometheus/client_golang/prometheus"

// Unit describes what a metric counts, matching metric.Unit_COUNT etc.
type Unit int

const (
	UnitCount Unit = iota
	UnitNanoseconds
)

// Metadata describes a metric, matching metric.Metadata{Name, Help, Unit}.
type Metadata struct {
	Name string
	Help string
	Unit Unit
}

// Struct is implemented by anything exposing its own metrics for
// registration, matching metric.Struct.
type Struct interface {
	Collectors() []prometheus.Collector
}

// Gauge is a point-in-time value backed by a prometheus.Gauge. Value reads
// it synchronously from that gauge (see readGauge); no separate copy is kept.
type Gauge struct {
	Metadata
	pm prometheus.Gauge
}

// NewGauge constructs a Gauge from its Metadata, matching metric.NewGauge.
func NewGauge(meta Metadata) *Gauge {
	return &Gauge{
		Metadata: meta,
		pm:       prometheus.NewGauge(prometheus.GaugeOpts{Name: meta.Name, Help: meta.Help}),
	}
}

// Update sets the gauge's value.
func (g *Gauge) Update(v int64) {
	g.pm.Set(float64(v))
}

// Inc adds delta (possibly negative) to the gauge's value.
func (g *Gauge) Inc(delta int64) {
	g.pm.Add(float64(delta))
}

// Value reads the gauge's current value directly from the prometheus gauge,
// without going through a registry.
func (g *Gauge) Value() int64 {
	return int64(readGauge(g.pm))
}

// Collectors implements Struct.
func (g *Gauge) Collectors() []prometheus.Collector { return []prometheus.Collector{g.pm} }

// Counter is a monotonically increasing value, matching metric.Counter.
type Counter struct {
	Metadata
	pm prometheus.Counter
}

// NewCounter constructs a Counter from its Metadata, matching
// metric.NewCounter.
func NewCounter(meta Metadata) *Counter {
	return &Counter{
		Metadata: meta,
		pm:       prometheus.NewCounter(prometheus.CounterOpts{Name: meta.Name, Help: meta.Help}),
	}
}

// Inc adds delta (must be >= 0) to the counter.
func (c *Counter) Inc(delta int64) {
	c.pm.Add(float64(delta))
}

// Count reads the counter's current value directly from the prometheus
// counter, without going through a registry.
func (c *Counter) Count() int64 {
	return int64(readCounter(c.pm))
}

// Collectors implements Struct.
func (c *Counter) Collectors() []prometheus.Collector { return []prometheus.Collector{c.pm} }
