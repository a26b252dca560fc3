package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "posdash_db_"

var queriesCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "queries_total",
		Help: "Number of statements issued, by outcome",
	},
	[]string{"query", "outcome"},
)

var queryDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    MetricsPrefix + "query_duration_seconds",
		Help:    "Time spent waiting for a statement, including timed out waits",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	},
	[]string{"query"},
)

var consecutiveFailuresGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: MetricsPrefix + "consecutive_failures",
		Help: "Consecutive failed statements since the last success",
	},
)

var connectedGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: MetricsPrefix + "connected",
		Help: "1 when the last statement succeeded",
	},
)

var retriesCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "retries_total",
		Help: "Number of strict-mode retries after a retryable failure",
	},
)

func recordQueryMetrics(query string, status Status, kind Kind, duration time.Duration) {
	outcome := status.String()
	if status == StatusErr {
		outcome = kind.String()
	}
	queriesCounter.WithLabelValues(query, outcome).Inc()
	queryDurationHist.WithLabelValues(query).Observe(duration.Seconds())
}

func recordStateMetrics(state ConnectionState) {
	consecutiveFailuresGauge.Set(float64(state.ConsecutiveFailures))
	if state.Connected {
		connectedGauge.Set(1)
	} else {
		connectedGauge.Set(0)
	}
}
