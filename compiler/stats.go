package compiler

import "github.com/prometheus/client_golang/prometheus"

// Stats is the monotonic, deterministic report spec.md §7 requires ("given
// a fixed filesystem and a fixed codec set"): queue depths, cumulative
// parses, and how many paths are still waiting on an unresolved reference.
type Stats struct {
	PrimaryQueueLength int
	ReparseQueueLength int
	ProcessedCount     int
	PendingDepsCount    int
	TotalParses        int
}

// statsCollector owns the Prometheus gauges/counters mirroring Stats, when
// a Registerer was supplied via WithMetricsRegisterer. It is nil-safe:
// every method is a no-op on a nil *statsCollector.
type statsCollector struct {
	primaryQueueLength prometheus.Gauge
	reparseQueueLength prometheus.Gauge
	processedTotal     prometheus.Gauge
	parsesTotal        prometheus.Counter
}

func newStatsCollector(reg prometheus.Registerer) *statsCollector {
	if reg == nil {
		return nil
	}
	sc := &statsCollector{
		primaryQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "noet_primary_queue_length",
			Help: "Number of files never yet parsed this session.",
		}),
		reparseQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "noet_reparse_queue_length",
			Help: "Number of files awaiting reparse due to unresolved references.",
		}),
		processedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "noet_processed_total",
			Help: "Number of distinct paths processed at least once this session.",
		}),
		parsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "noet_parses_total",
			Help: "Cumulative count of parse attempts across all paths.",
		}),
	}
	reg.MustRegister(sc.primaryQueueLength, sc.reparseQueueLength, sc.processedTotal, sc.parsesTotal)
	return sc
}

func (sc *statsCollector) observe(s Stats) {
	if sc == nil {
		return
	}
	sc.primaryQueueLength.Set(float64(s.PrimaryQueueLength))
	sc.reparseQueueLength.Set(float64(s.ReparseQueueLength))
	sc.processedTotal.Set(float64(s.ProcessedCount))
}

func (sc *statsCollector) incParses() {
	if sc == nil {
		return
	}
	sc.parsesTotal.Inc()
}
