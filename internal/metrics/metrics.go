// Package metrics registers the Prometheus collectors the orchestrator
// exercises: per-attempt counters, fallback usage, merge-conflict counts,
// and a reliability gauge, initialized once at process startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors bundles the orchestrator's Prometheus instruments.
type Collectors struct {
	Attempts             *prometheus.CounterVec
	FallbacksUsed        prometheus.Counter
	ConflictsResolved    *prometheus.CounterVec
	EstimatedReliability *prometheus.GaugeVec
}

var registered *Collectors

// Register builds and registers the orchestrator's collectors against reg.
// Safe to call once per process; a nil reg registers against the default
// registry.
func Register(reg prometheus.Registerer) *Collectors {
	if registered != nil {
		return registered
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collectors{
		Attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "listingfeed",
			Subsystem: "orchestrator",
			Name:      "attempts_total",
			Help:      "Adapter extraction attempts by marketplace, channel, and outcome.",
		}, []string{"marketplace", "channel", "success"}),

		FallbacksUsed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "listingfeed",
			Subsystem: "orchestrator",
			Name:      "fallback_used_total",
			Help:      "getData calls that fell back past the first-attempted tier.",
		}),

		ConflictsResolved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "listingfeed",
			Subsystem: "orchestrator",
			Name:      "conflicts_resolved_total",
			Help:      "Field-level conflicts resolved during multi-source merge, by field.",
		}, []string{"field"}),

		EstimatedReliability: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "listingfeed",
			Subsystem: "orchestrator",
			Name:      "adapter_estimated_reliability",
			Help:      "Latest estimatedReliability reported by each adapter's health snapshot.",
		}, []string{"marketplace", "channel"}),
	}

	registered = c
	return c
}
