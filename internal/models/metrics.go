package models

import "time"

// SystemMetrics is a point-in-time summary of the service counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	UploadItemsCompleted     uint64    `json:"upload_items_completed"`
	UploadItemsFailed        uint64    `json:"upload_items_failed"`
	UploadFilesFailed        uint64    `json:"upload_files_failed"`
	ActiveSessions           int64     `json:"active_sessions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
