package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream provider metrics
var (
	// UpstreamRequestsTotal counts provider calls by outcome
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_upstream_requests_total",
			Help: "Total number of upstream weather provider requests",
		},
		[]string{"provider", "operation", "status"},
	)

	// UpstreamRequestDuration tracks provider latency
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_upstream_request_duration_seconds",
			Help:    "Duration of upstream weather provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// FallbacksTotal counts responses served by the synthetic generator
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_fallbacks_total",
			Help: "Total number of responses served from synthetic data",
		},
		[]string{"operation", "reason"},
	)

	// TokensIssuedTotal counts signed tokens generated (cache misses)
	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weather_tokens_issued_total",
			Help: "Total number of signed provider tokens generated",
		},
	)

	// AppStartTime records when the gateway started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_gateway_start_time_seconds",
			Help: "Unix timestamp of when the gateway started",
		},
	)
)

func init() {
	AppStartTime.SetToCurrentTime()
}

// RecordUpstream records one provider call.
func RecordUpstream(provider, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	UpstreamRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordFallback records a degraded response.
func RecordFallback(operation, reason string) {
	FallbacksTotal.WithLabelValues(operation, reason).Inc()
}
