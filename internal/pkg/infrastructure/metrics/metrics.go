// Package metrics holds the prometheus metrics of the temporal API
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ngsild"

var (
	TemporalResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temporal_responses_total",
			Help:      "Total number of temporal responses by status code and representation.",
		},
		[]string{"status", "representation"},
	)

	// TruncatedAttributes observes how many attribute series hit the instance limit per response
	TruncatedAttributes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "temporal_truncated_attributes",
			Help:      "Number of truncated attribute series per temporal response.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	TemporalQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "temporal_query_duration_seconds",
			Help:      "Duration of temporal queries against the attribute instance store.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"representation"},
	)
)

func ObserveResponse(status int, representation string, truncated int) {
	TemporalResponsesTotal.WithLabelValues(strconv.Itoa(status), representation).Inc()
	TruncatedAttributes.Observe(float64(truncated))
}

func ObserveQuery(representation string, started time.Time) {
	TemporalQueryDurationSeconds.WithLabelValues(representation).Observe(time.Since(started).Seconds())
}
