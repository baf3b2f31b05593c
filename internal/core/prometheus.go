package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports service operation outcomes as
// prometheus counters and duration histograms, plus per-workflow crucible
// and jar gauges fed through the WorkloadRecorder capability.
type PrometheusMetricsRecorder struct {
	results   *prometheus.CounterVec
	durations *prometheus.HistogramVec
	crucibles *prometheus.GaugeVec
	jars      *prometheus.GaugeVec
	ethanol   *prometheus.GaugeVec
}

// NewPrometheusMetricsRecorder registers the workflow service collectors on
// reg. A nil registerer falls back to the default registry.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labman",
			Subsystem: "workflow_service",
			Name:      "operations_total",
			Help:      "Workflow service operations by result.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labman",
			Subsystem: "workflow_service",
			Name:      "operation_duration_seconds",
			Help:      "Workflow service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		crucibles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "labman",
			Subsystem: "workflow_service",
			Name:      "workflow_crucibles",
			Help:      "Crucibles required by each open workflow.",
		}, []string{"workflow"}),
		jars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "labman",
			Subsystem: "workflow_service",
			Name:      "workflow_jars",
			Help:      "Mixing jars required by each open workflow.",
		}, []string{"workflow"}),
		ethanol: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "labman",
			Subsystem: "workflow_service",
			Name:      "workflow_ethanol_microliters",
			Help:      "Total ethanol volume required by each open workflow.",
		}, []string{"workflow"}),
	}
	for _, c := range []prometheus.Collector{rec.results, rec.durations, rec.crucibles, rec.jars, rec.ethanol} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.results.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWorkload implements WorkloadRecorder.
func (r *PrometheusMetricsRecorder) RecordWorkload(workflow string, crucibles, jars, ethanolUL int) {
	r.crucibles.WithLabelValues(workflow).Set(float64(crucibles))
	r.jars.WithLabelValues(workflow).Set(float64(jars))
	r.ethanol.WithLabelValues(workflow).Set(float64(ethanolUL))
}
