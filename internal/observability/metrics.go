package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestLatency records REST call latency by endpoint and status.
	APIRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialnet_api_request_latency_seconds",
		Help:    "REST request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIRequestErrors counts failed REST calls by endpoint and reason.
	APIRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_api_request_errors_total",
		Help: "Total number of failed REST requests",
	}, []string{"endpoint", "reason"})

	// WebSocketReconnects counts reconnect attempts by channel.
	WebSocketReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_websocket_reconnects_total",
		Help: "Total number of websocket reconnect attempts",
	}, []string{"channel"})

	// WebSocketEventsTotal counts inbound WebSocket frames by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_websocket_events_total",
		Help: "Total inbound WebSocket events by type",
	}, []string{"channel", "event_type"})

	// WebSocketConnected is 1 while the channel holds an open connection.
	WebSocketConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "socialnet_websocket_connected",
		Help: "Whether the websocket channel is currently connected",
	}, []string{"channel"})

	// SmokeStepResults counts smoke-test step outcomes.
	SmokeStepResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_smoke_step_results_total",
		Help: "Smoke-test step results by scenario and outcome",
	}, []string{"scenario", "outcome"})

	// RedisErrors counts failed redis commands.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_redis_errors_total",
		Help: "Total number of Redis errors",
	}, []string{"operation"})

	// MockHubConnections is the gauge of websocket connections held by the mock backend.
	MockHubConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialnet_mock_hub_connections",
		Help: "Number of websocket connections held by the mock backend",
	})

	// MockHubDrops counts frames dropped by the mock backend hub.
	MockHubDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialnet_mock_hub_drops_total",
		Help: "Frames dropped by the mock backend due to backpressure",
	}, []string{"reason"})
)

// TrackRequest returns a function that records request latency when called
// with the final HTTP status (0 for transport failures).
func TrackRequest(method, endpoint string) func(status int) {
	start := time.Now()
	return func(status int) {
		label := "error"
		if status > 0 {
			label = strconv.Itoa(status)
		}
		APIRequestLatency.WithLabelValues(method, endpoint, label).Observe(time.Since(start).Seconds())
	}
}

// RecordSmokeStep increments the smoke step counter.
func RecordSmokeStep(scenario string, passed bool) {
	outcome := "fail"
	if passed {
		outcome = "pass"
	}
	SmokeStepResults.WithLabelValues(scenario, outcome).Inc()
}
