package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_steps_total",
		Help: "Checkout step submissions by step and outcome",
	}, []string{"step", "outcome"})

	CheckoutsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_completed_total",
		Help: "Completed checkouts by payment method",
	}, []string{"method"})

	CheckoutsAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_abandoned_total",
		Help: "Checkouts moved to abandoned by the sweeper",
	})

	OrderLinesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_lines_created_total",
		Help: "Total number of order lines persisted",
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation",
	}, []string{"op"})

	CartSessionsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_sessions_evicted_total",
		Help: "Idle cart sessions evicted from the in-memory arena",
	})

	CatalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Catalog lookups by table and result (hit, miss, shared, rate_limited, error)",
	}, []string{"table", "result"})

	CatalogUpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_upstream_latency_seconds",
		Help:    "Latency of outbound catalog API calls including queue wait",
		Buckets: prometheus.DefBuckets,
	}, []string{"table"})

	MirrorWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_writes_total",
		Help: "External mirror writes by target and outcome",
	}, []string{"target", "outcome"})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events relayed to the broker",
	})

	OutboxFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failed_total",
		Help: "Outbox relay failures",
	}, []string{"reason"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Confirmation emails by outcome",
	}, []string{"outcome"})

	PaymentIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_total",
		Help: "Payment gateway intent operations by op and outcome",
	}, []string{"op", "outcome"})

	PaymentProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
