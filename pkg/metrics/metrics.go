package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_webhooks_received_total",
		Help: "The total number of lead webhooks received",
	}, []string{"method"})

	WebhookProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_webhooks_processed_total",
		Help: "The total number of lead webhooks processed, by outcome",
	}, []string{"outcome"})

	WebhookProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lead_webhook_processing_duration_seconds",
		Help:    "Time taken to process lead webhooks",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	GraphAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_api_requests_total",
		Help: "The total number of Graph API lookups, by requested field and result",
	}, []string{"field", "result"})

	LeadsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_classified_total",
		Help: "The total number of leads classified, by origin kind",
	}, []string{"kind"})

	AuditWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "The total number of audit records that could not be written",
	}, []string{"collection"})

	LeadEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_events_published_total",
		Help: "The total number of lead events published, by type and result",
	}, []string{"type", "result"})

	VerificationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_verification_requests_total",
		Help: "The total number of webhook subscription handshakes, by result",
	}, []string{"result"})
)
