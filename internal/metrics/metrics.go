package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dink_events_total",
			Help: "Total number of webhook events received",
		},
		[]string{"endpoint", "status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dink_event_bytes_total",
			Help: "Total bytes of webhook body data received",
		},
	)

	// Payload extraction metrics
	ExtractFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dink_extract_fallbacks_total",
			Help: "Total number of bodies that fell through to the terminal decode strategy",
		},
	)

	// Attachment relocation metrics
	AttachmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dink_attachments_total",
			Help: "Total number of attachments relocated, by storage backend",
		},
		[]string{"backend"},
	)

	AttachmentErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dink_attachment_errors_total",
			Help: "Total number of attachment relocation failures",
		},
	)

	// Storage metrics
	StorageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dink_storage_duration_seconds",
			Help:    "Duration of event store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dink_storage_errors_total",
			Help: "Total number of event store errors",
		},
	)
)
