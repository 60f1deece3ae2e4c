// Package metrics exposes Prometheus counters for the generation and
// billing paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts finished generation requests by model and outcome.
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blogforge",
		Name:      "generations_total",
		Help:      "Completed generation requests by model and outcome.",
	}, []string{"model", "outcome"})

	// CreditsSpentTotal counts credits charged through settlements.
	CreditsSpentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blogforge",
		Name:      "credits_spent_total",
		Help:      "Credits charged for completed generations.",
	})

	// CreditsPurchasedTotal counts credits granted through payment webhooks.
	CreditsPurchasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blogforge",
		Name:      "credits_purchased_total",
		Help:      "Credits granted by processed payment events.",
	})

	// UpstreamFailuresTotal counts failed completion API calls by kind.
	UpstreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blogforge",
		Name:      "upstream_failures_total",
		Help:      "Failed completion API calls by kind (text or image).",
	}, []string{"kind"})

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blogforge",
		Name:      "rate_limited_total",
		Help:      "Generation requests rejected by the rate limiter.",
	})
)
