package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recording metrics
	recordingsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicechat_recordings_started_total",
		Help: "Total number of recordings started",
	})

	recordingsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_recordings_stopped_total",
		Help: "Total number of recordings stopped",
	}, []string{"reason"}) // reason: "manual", "deadline", "teardown"

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicechat_recording_duration_seconds",
		Help:    "Duration of recordings in seconds",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60},
	})

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_transcription_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"transport", "status"}) // transport: "multipart", "stream"

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicechat_transcription_latency_seconds",
		Help:    "Transcription upload latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Chat metrics
	chatSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_chat_sends_total",
		Help: "Total number of chat sends",
	}, []string{"status"}) // status: "success", "fallback", "moderated", "skipped"

	chatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicechat_chat_latency_seconds",
		Help:    "Chat completion latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Moderation metrics
	moderationHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicechat_moderation_hits_total",
		Help: "Total number of sends blocked by the moderation filter",
	})

	// Session catalog metrics
	sessionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_session_operations_total",
		Help: "Total number of session catalog operations",
	}, []string{"operation", "status"}) // operation: "refresh", "create", "delete", "switch"

	// Probe metrics
	probeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_probe_results_total",
		Help: "Total number of liveness probe results",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicechat_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RecordRecordingStart records a recording acquisition
func RecordRecordingStart() {
	recordingsStarted.Inc()
}

// RecordRecordingStop records a recording release and its duration
func RecordRecordingStop(reason string, seconds float64) {
	recordingsStopped.WithLabelValues(reason).Inc()
	if seconds > 0 {
		recordingDuration.Observe(seconds)
	}
}

// RecordTranscription records the outcome of a transcription attempt
func RecordTranscription(transport string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(transport, status).Inc()
	if seconds > 0 {
		transcriptionLatency.Observe(seconds)
	}
}

// RecordChatSend records the outcome of a chat send
func RecordChatSend(status string, seconds float64) {
	chatSends.WithLabelValues(status).Inc()
	if seconds > 0 {
		chatLatency.Observe(seconds)
	}
}

// RecordModerationHit records a send blocked by the moderation filter
func RecordModerationHit() {
	moderationHits.Inc()
}

// RecordSessionOp records a session catalog operation
func RecordSessionOp(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	sessionOps.WithLabelValues(operation, status).Inc()
}

// RecordProbe records a liveness probe result
func RecordProbe(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	probeResults.WithLabelValues(status).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
