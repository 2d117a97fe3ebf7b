package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments exposed at /metrics.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	WSClients   prometheus.Gauge
}

// NewMetrics registers the server's instruments with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backtest",
			Name:      "runs_total",
			Help:      "Backtest runs by final status.",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of backtest runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "backtest",
			Name:      "websocket_clients",
			Help:      "Currently connected WebSocket clients.",
		}),
	}
}
