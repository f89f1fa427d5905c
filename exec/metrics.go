// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exec

import (
	metricutil "github.com/luxfi/mettatron/utils/metric"
)

// Metrics tracks executor-level counters and gauges: directives
// evaluated per tier, bailouts, and promotion events (spec.md §4.6's
// tier-selection loop). Built on the teacher's metric.Registry wrapper
// around luxfi/metrics, the same way poll.DefaultFactory wires a
// prometheus.Registry for consensus counters.
type Metrics struct {
	registry metricutil.Registry

	Tier0Directives metricutil.Counter
	Tier1Directives metricutil.Counter
	JITDirectives   metricutil.Counter
	Bailouts        metricutil.Counter
	Promotions      metricutil.Counter
	CompileFailures metricutil.Counter
	ActiveWorkers   metricutil.Gauge
}

// NewMetrics builds a fresh Metrics instance, registering its own
// counters with a new registry each time — mirroring the teacher's
// poll.NewFactory(log, registry, ...) pattern of taking observability
// dependencies at construction.
func NewMetrics() *Metrics {
	reg := metricutil.NewRegistry()
	return &Metrics{
		registry:        reg,
		Tier0Directives: reg.NewCounter("tier0_directives_total"),
		Tier1Directives: reg.NewCounter("tier1_directives_total"),
		JITDirectives:   reg.NewCounter("jit_directives_total"),
		Bailouts:        reg.NewCounter("jit_bailouts_total"),
		Promotions:      reg.NewCounter("tier_promotions_total"),
		CompileFailures: reg.NewCounter("jit_compile_failures_total"),
		ActiveWorkers:   reg.NewGauge("active_workers"),
	}
}
