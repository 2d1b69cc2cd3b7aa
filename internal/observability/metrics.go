package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cozytiny_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cozytiny_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheResults counts cache lookups by outcome (hit, miss, error) and fills
	// dropped because the key was invalidated mid-read (stale_fill).
	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cozytiny_cache_results_total",
		Help: "Cache lookups by outcome",
	}, []string{"result"})

	// UploadsTotal counts stored media files by kind and backend.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cozytiny_uploads_total",
		Help: "Total number of stored uploads",
	}, []string{"kind", "backend"})

	// UploadBytes records stored upload sizes.
	UploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cozytiny_upload_bytes",
		Help:    "Size of stored uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
	}, []string{"kind"})

	// SweptFilesTotal counts orphaned uploads removed by the sweeper.
	SweptFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cozytiny_upload_swept_files_total",
		Help: "Total number of orphaned uploads removed",
	})

	// ContentEventsTotal counts published content events by type.
	ContentEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cozytiny_content_events_total",
		Help: "Total content events published",
	}, []string{"event_type"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cozytiny_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cozytiny_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
