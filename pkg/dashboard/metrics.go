package dashboard

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "posdash_dashboard_"

var summariesCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "summaries_total",
		Help: "Number of dashboard summaries served, by success",
	},
	[]string{"success", "mode"},
)

var summaryDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    MetricsPrefix + "summary_duration_seconds",
		Help:    "Time taken to assemble a dashboard summary",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"mode"},
)

func recordSummary(mode string, success bool, duration time.Duration) {
	summariesCounter.WithLabelValues(strconv.FormatBool(success), mode).Inc()
	summaryDurationHist.WithLabelValues(mode).Observe(duration.Seconds())
}
