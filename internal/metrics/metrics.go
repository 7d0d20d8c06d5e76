// Package metrics exposes prometheus collectors for the resolution engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts resolution passes by trigger and resulting tier.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiergate",
		Name:      "resolutions_total",
		Help:      "Resolution passes by trigger and resulting tier.",
	}, []string{"trigger", "tier"})

	// StaleResolutionsTotal counts results served without authoritative
	// confirmation (sticky cache, local override, conservative default).
	StaleResolutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tiergate",
		Name:      "stale_resolutions_total",
		Help:      "Resolutions served without authoritative confirmation.",
	})

	// AuthorityChecksTotal counts remote authority checks by outcome.
	AuthorityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiergate",
		Name:      "authority_checks_total",
		Help:      "Remote authority checks by outcome.",
	}, []string{"outcome"})

	// OverrideRevalidationsTotal counts fast-path override revalidations.
	OverrideRevalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiergate",
		Name:      "override_revalidations_total",
		Help:      "Local override revalidations by outcome.",
	}, []string{"outcome"})

	// ResolutionDuration tracks live pass latency.
	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tiergate",
		Name:      "resolution_duration_seconds",
		Help:      "Live resolution pass duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"trigger"})
)

// Authority check outcomes.
const (
	OutcomeAuthoritative    = "authoritative"
	OutcomeNonAuthoritative = "non_authoritative"
)

// Override revalidation outcomes.
const (
	RevalidationConfirmed   = "confirmed"
	RevalidationRevoked     = "revoked"
	RevalidationUnavailable = "unavailable"
	RevalidationSkipped     = "skipped"
)
