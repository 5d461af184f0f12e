package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ideasaver_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Profile Metrics
	ProfileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_profile_operations_total",
			Help: "Total number of profile reads and upserts",
		},
		[]string{"operation", "status"},
	)

	ProfileOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ideasaver_profile_operation_duration_seconds",
			Help:    "Profile operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ProfilesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ideasaver_profiles_created_total",
			Help: "Total number of profiles created on first contact",
		},
	)

	// Credit Metrics
	CreditsDebitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ideasaver_credits_debited_total",
			Help: "Total credits charged for AI operations",
		},
	)

	CreditsGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_credits_granted_total",
			Help: "Total credits granted",
		},
		[]string{"source"},
	)

	GiftRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_gift_redemptions_total",
			Help: "Total number of gift code redemption attempts",
		},
		[]string{"status"},
	)

	// AI Metrics
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_ai_requests_total",
			Help: "Total number of generative AI requests",
		},
		[]string{"operation", "status"},
	)

	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ideasaver_ai_request_duration_seconds",
			Help:    "Generative AI request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"operation"},
	)

	AudioSecondsTranscribed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ideasaver_audio_seconds_transcribed_total",
			Help: "Total duration of audio transcribed in seconds",
		},
	)

	// Session Metrics
	SessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_session_operations_total",
			Help: "Total number of client session operations",
		},
		[]string{"operation", "outcome"},
	)

	SessionOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ideasaver_session_operation_duration_seconds",
			Help:    "Client session operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cloud Sync Metrics
	SyncJobsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ideasaver_sync_jobs_published_total",
			Help: "Total number of cloud sync jobs published",
		},
	)

	SyncJobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_sync_jobs_completed_total",
			Help: "Total number of processed cloud sync jobs",
		},
		[]string{"status"},
	)

	SyncJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ideasaver_sync_jobs_in_progress",
			Help: "Number of sync jobs currently being processed",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ideasaver_queue_depth",
			Help: "Messages waiting in each sync queue",
		},
		[]string{"queue"},
	)

	RetentionDeletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ideasaver_retention_deletions_total",
			Help: "Total number of cloud recordings removed by retention policy",
		},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ideasaver_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ideasaver_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Webhook Metrics
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_webhook_deliveries_total",
			Help: "Total number of webhook deliveries",
		},
		[]string{"event", "status"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ideasaver_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordHTTPRequest records an HTTP request metric
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordProfileOperation records a profile read or upsert
func RecordProfileOperation(operation string, duration float64, err error) {
	ProfileOperationsTotal.WithLabelValues(operation, status(err)).Inc()
	ProfileOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordProfileCreated records a first-contact profile creation
func RecordProfileCreated() {
	ProfilesCreatedTotal.Inc()
}

// RecordCreditsDebited records credits charged for an AI operation
func RecordCreditsDebited(credits int) {
	if credits > 0 {
		CreditsDebitedTotal.Add(float64(credits))
	}
}

// RecordGiftRedemption records a gift code attempt and the credits it granted
func RecordGiftRedemption(credits int, err error) {
	GiftRedemptionsTotal.WithLabelValues(status(err)).Inc()
	if err == nil && credits > 0 {
		CreditsGrantedTotal.WithLabelValues("gift_code").Add(float64(credits))
	}
}

// RecordAIRequest records a generative AI call
func RecordAIRequest(operation string, duration float64, err error) {
	AIRequestsTotal.WithLabelValues(operation, status(err)).Inc()
	AIRequestDuration.WithLabelValues(operation).Observe(duration)
}

// RecordAudioTranscribed records transcribed audio duration
func RecordAudioTranscribed(seconds int) {
	if seconds > 0 {
		AudioSecondsTranscribed.Add(float64(seconds))
	}
}

// RecordSessionOperation records a client session operation
func RecordSessionOperation(operation, outcome string, duration float64) {
	SessionOperationsTotal.WithLabelValues(operation, outcome).Inc()
	SessionOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordSyncJobPublished records a published cloud sync job
func RecordSyncJobPublished() {
	SyncJobsPublishedTotal.Inc()
}

// RecordSyncJobCompleted records a processed cloud sync job
func RecordSyncJobCompleted(err error) {
	SyncJobsCompletedTotal.WithLabelValues(status(err)).Inc()
}

// TrackSyncJob marks a sync job as in progress until the returned func is called
func TrackSyncJob() func() {
	SyncJobsInProgress.Inc()
	return SyncJobsInProgress.Dec
}

// SetQueueDepth records the number of messages waiting in queue
func SetQueueDepth(queue string, depth int) {
	QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordRetentionDeletions records recordings removed by a retention sweep
func RecordRetentionDeletions(count int) {
	RetentionDeletionsTotal.Add(float64(count))
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records a cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordWebhookDelivery records a webhook delivery outcome
func RecordWebhookDelivery(event, status string) {
	WebhookDeliveriesTotal.WithLabelValues(event, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
