package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PublishedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "published_events_total",
			Help: "Total number of status-change events published (count)",
		},
		[]string{"notification_type"},
	)

	BatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consumer_batches_total",
			Help: "Total number of batches handled by the consumer (count)",
		},
	)

	BatchRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_batch_records_total",
			Help: "Per-record outcomes of batch processing (count)",
		},
		[]string{"outcome"},
	)

	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification emails sent (count)",
		},
		[]string{"notification_type"},
	)

	NotificationsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Duplicate notifications suppressed by the dedup guard (count)",
		},
	)

	EmailSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_send_duration_ms",
			Help:    "Email transport send duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages routed to the DLQ (count)",
		},
		[]string{"reason"},
	)

	DLQDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_depth",
			Help: "Current number of messages in the dead-letter queue (count)",
		},
	)

	DLQOldestMessageAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_oldest_message_age_seconds",
			Help: "Age of the oldest message in the dead-letter queue (seconds)",
		},
	)

	DLQReprocessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_reprocessed_total",
			Help: "DLQ messages re-injected into the pipeline (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		PublishedEventsTotal,
		BatchesTotal,
		BatchRecordsTotal,
		NotificationsSentTotal,
		NotificationsSuppressedTotal,
		EmailSendDuration,
		RetryAttemptsTotal,
	)
}

func RegisterDLQMetrics() {
	prometheus.MustRegister(
		DLQMessagesTotal,
		DLQDepth,
		DLQOldestMessageAge,
		DLQReprocessedTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerFailures,
	)
}

func ObserveEmailSendDuration(d time.Duration, status string) {
	EmailSendDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}
