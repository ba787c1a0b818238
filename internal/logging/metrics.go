package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for a Router.
type Metrics struct {
	RecordsTotal    *prometheus.CounterVec
	SuppressedTotal *prometheus.CounterVec
	SinkFailures    *prometheus.CounterVec
	SinksOpen       prometheus.Gauge
}

// NewMetrics creates the router metrics and registers them with reg. A nil
// reg leaves them unregistered, which lets tests build many routers.
//
// Metrics:
//   - scenariolog_records_total{level} - records dispatched after dedup
//   - scenariolog_records_suppressed_total{level} - records dropped as duplicates
//   - scenariolog_sink_failures_total{scenario} - sink pairs degraded to console-only
//   - scenariolog_sinks_open - log files currently open
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenariolog_records_total",
				Help: "Total number of log records dispatched to sinks",
			},
			[]string{"level"},
		),
		SuppressedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenariolog_records_suppressed_total",
				Help: "Total number of duplicate log records suppressed",
			},
			[]string{"level"},
		),
		SinkFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenariolog_sink_failures_total",
				Help: "Total number of scenario sinks degraded to console-only output",
			},
			[]string{"scenario"},
		),
		SinksOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scenariolog_sinks_open",
				Help: "Number of log files currently open",
			},
		),
	}
}
