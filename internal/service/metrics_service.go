package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/love-timeline-api/internal/models"
)

// Upload file outcomes.
const (
	FileOutcomeUploaded = "uploaded"
	FileOutcomeFailed   = "failed"
	FileOutcomeTimeout  = "timeout"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	uploadItems     *prometheus.CounterVec
	uploadFiles     *prometheus.CounterVec
	uploadDuration  *prometheus.HistogramVec
	compressedBytes prometheus.Counter
	queueDepth      prometheus.Gauge
	likeCalls       *prometheus.CounterVec
	sessions        prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	itemsCompleted       uint64
	itemsFailed          uint64
	filesFailed          uint64
	activeSessions       int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	uploadItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_queue_items_total",
		Help: "Queue items that reached a terminal status",
	}, []string{"type", "status"})

	uploadFiles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_files_total",
		Help: "Per-file upload attempts by outcome",
	}, []string{"outcome"})

	uploadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upload_item_duration_seconds",
		Help:    "Time from picking up a queue item to its terminal status",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"type"})

	compressedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_compression_saved_bytes_total",
		Help: "Bytes saved by image compression before upload",
	})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "upload_queue_depth",
		Help: "Queue items waiting or in flight across all sessions",
	})

	likeCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "like_confirmations_total",
		Help: "Debounced like confirmations by result",
	}, []string{"result"})

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_sessions_active",
		Help: "Viewer sessions currently held in memory",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		uploadItems, uploadFiles, uploadDuration, compressedBytes, queueDepth, likeCalls, sessions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		uploadItems:     uploadItems,
		uploadFiles:     uploadFiles,
		uploadDuration:  uploadDuration,
		compressedBytes: compressedBytes,
		queueDepth:      queueDepth,
		likeCalls:       likeCalls,
		sessions:        sessions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveUploadItem records a queue item reaching completed or error.
func (m *MetricsService) ObserveUploadItem(memoryType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.uploadItems.WithLabelValues(memoryType, status).Inc()
	m.uploadDuration.WithLabelValues(memoryType).Observe(duration.Seconds())
	if status == "completed" {
		atomic.AddUint64(&m.itemsCompleted, 1)
	} else {
		atomic.AddUint64(&m.itemsFailed, 1)
	}
}

// ObserveUploadFile records one file attempt.
func (m *MetricsService) ObserveUploadFile(outcome string) {
	if m == nil {
		return
	}
	m.uploadFiles.WithLabelValues(outcome).Inc()
	if outcome != FileOutcomeUploaded {
		atomic.AddUint64(&m.filesFailed, 1)
	}
}

// ObserveCompression records the bytes saved by recompressing an image.
func (m *MetricsService) ObserveCompression(before, after int) {
	if m == nil || after >= before {
		return
	}
	m.compressedBytes.Add(float64(before - after))
}

// AddQueueDepth moves the global queue depth gauge by delta.
func (m *MetricsService) AddQueueDepth(delta int) {
	if m == nil {
		return
	}
	m.queueDepth.Add(float64(delta))
}

// ObserveLikeConfirmation records the result of a debounced like call.
func (m *MetricsService) ObserveLikeConfirmation(result string) {
	if m == nil {
		return
	}
	m.likeCalls.WithLabelValues(result).Inc()
}

// AddSessions moves the active session gauge by delta.
func (m *MetricsService) AddSessions(delta int) {
	if m == nil {
		return
	}
	m.sessions.Add(float64(delta))
	atomic.AddInt64(&m.activeSessions, int64(delta))
}

// Snapshot returns aggregated metrics for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		UploadItemsCompleted:     atomic.LoadUint64(&m.itemsCompleted),
		UploadItemsFailed:        atomic.LoadUint64(&m.itemsFailed),
		UploadFilesFailed:        atomic.LoadUint64(&m.filesFailed),
		ActiveSessions:           atomic.LoadInt64(&m.activeSessions),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
