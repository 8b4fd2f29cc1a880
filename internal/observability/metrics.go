package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task metrics
	activeTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcriber_active_tasks",
		Help: "Number of tasks currently processing",
	})

	queuedTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcriber_queued_tasks",
		Help: "Number of tasks waiting for a worker slot",
	})

	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_tasks_total",
		Help: "Total number of tasks by terminal status",
	}, []string{"status"})

	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriber_task_duration_seconds",
		Help:    "Wall-clock duration of completed tasks in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// Provider metrics
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_provider_requests_total",
		Help: "Total number of speech-to-text provider requests",
	}, []string{"status"})

	providerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriber_provider_latency_seconds",
		Help:    "Provider call latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	})

	// Cache metrics
	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_cache_events_total",
		Help: "Transcription result cache hits and misses",
	}, []string{"result"}) // result: "hit" or "miss"

	// Chunk/batch metrics
	chunksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_chunks_processed_total",
		Help: "Total number of audio chunks transcribed",
	})

	batchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_batch_retries_total",
		Help: "Total number of batch retry attempts",
	})

	audioBytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_audio_bytes_total",
		Help: "Total audio bytes decoded for segmentation",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_errors_total",
		Help: "Total number of errors",
	}, []string{"code", "component"})
)

// RecordTaskQueued records a task entering the queue
func RecordTaskQueued() {
	queuedTasks.Inc()
}

// RecordTaskStart records a task being promoted to processing
func RecordTaskStart() {
	queuedTasks.Dec()
	activeTasks.Inc()
}

// RecordTaskEnd records a task reaching a terminal status
func RecordTaskEnd(status string, started time.Time) {
	activeTasks.Dec()
	tasksTotal.WithLabelValues(status).Inc()
	if !started.IsZero() {
		taskDuration.Observe(time.Since(started).Seconds())
	}
}

// RecordTaskDequeued records a queued task leaving the queue without running
func RecordTaskDequeued(status string) {
	queuedTasks.Dec()
	tasksTotal.WithLabelValues(status).Inc()
}

// RecordProviderRequest records one provider call and its latency
func RecordProviderRequest(success bool, started time.Time) {
	status := "success"
	if !success {
		status = "error"
	}
	providerRequests.WithLabelValues(status).Inc()
	providerLatency.Observe(time.Since(started).Seconds())
}

// RecordCacheHit records a transcription cache hit
func RecordCacheHit() {
	cacheEvents.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a transcription cache miss
func RecordCacheMiss() {
	cacheEvents.WithLabelValues("miss").Inc()
}

// RecordChunksProcessed records transcribed audio chunks
func RecordChunksProcessed(n int) {
	chunksProcessed.Add(float64(n))
}

// RecordBatchRetry records one batch retry attempt
func RecordBatchRetry() {
	batchRetries.Inc()
}

// RecordAudioBytes records audio bytes decoded
func RecordAudioBytes(n int64) {
	audioBytesProcessed.Add(float64(n))
}

// RecordError records an error by taxonomy code and component
func RecordError(code, component string) {
	errorsTotal.WithLabelValues(code, component).Inc()
}
