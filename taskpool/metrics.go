// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cockroachdb/taskpool/internal/metric"
)

var (
	metaTasksSubmitted = metric.Metadata{Name: "taskpool.subtasks.submitted", Help: "Sub-tasks enqueued by submission", Unit: metric.UnitCount}
	metaTasksExecuted  = metric.Metadata{Name: "taskpool.subtasks.executed", Help: "Sub-tasks that finished executing", Unit: metric.UnitCount}
	metaTasksStolen    = metric.Metadata{Name: "taskpool.subtasks.stolen", Help: "Sub-tasks executed after being stolen from a peer's pipe", Unit: metric.UnitCount}
	metaTasksInlined   = metric.Metadata{Name: "taskpool.subtasks.inlined", Help: "Sub-tasks executed inline on the submitter due to pipe overflow", Unit: metric.UnitCount}
	metaWorkersAsleep  = metric.Metadata{Name: "taskpool.workers.asleep", Help: "Workers currently parked in the sleep/wake condition variable", Unit: metric.UnitCount}
)

// Metrics holds the scheduler's exported counters and gauges. It implements
// metric.Struct the way pkg/util/admission's GrantCoordinatorMetrics does,
// so a caller embedding the scheduler in a larger metrics registry can pull
// out every prometheus.Collector in one call.
type Metrics struct {
	TasksSubmitted *metric.Counter
	TasksExecuted  *metric.Counter
	TasksStolen    *metric.Counter
	TasksInlined   *metric.Counter
	WorkersAsleep  *metric.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		TasksSubmitted: metric.NewCounter(metaTasksSubmitted),
		TasksExecuted:  metric.NewCounter(metaTasksExecuted),
		TasksStolen:    metric.NewCounter(metaTasksStolen),
		TasksInlined:   metric.NewCounter(metaTasksInlined),
		WorkersAsleep:  metric.NewGauge(metaWorkersAsleep),
	}
}

// Collectors implements metric.Struct.
func (m *Metrics) Collectors() []prometheus.Collector {
	var cs []prometheus.Collector
	for _, s := range []metric.Struct{m.TasksSubmitted, m.TasksExecuted, m.TasksStolen, m.TasksInlined, m.WorkersAsleep} {
		cs = append(cs, s.Collectors()...)
	}
	return cs
}

// Metrics returns the scheduler's metric set.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}
