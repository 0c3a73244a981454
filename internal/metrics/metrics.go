// Package metrics registers the service's prometheus collectors. The
// /metrics endpoint is served by promhttp from the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_processed_total",
		Help: "Payment requests by outcome.",
	}, []string{"outcome"})

	IdempotencyHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_idempotency_hits_total",
		Help: "Payment requests answered from the idempotency ledger.",
	})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_webhook_events_total",
		Help: "Webhook events by type and result.",
	}, []string{"type", "result"})

	RefundsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_refunds_total",
		Help: "Refund requests by outcome.",
	}, []string{"outcome"})

	RetryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_retry_attempts_total",
		Help: "Backoff retries across gateway operations.",
	})

	IdempotencyKeysRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_idempotency_keys_removed_total",
		Help: "Expired idempotency records removed by cleanup sweeps.",
	})
)
