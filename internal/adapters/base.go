// Package adapters contains the concrete data-source adapters: scraping,
// CSV/data-export, email parsing, a browser-extension bridge, an
// LLM-extraction fallback, and an official-API client. Each embeds Base
// for the read-only attributes and health bookkeeping every adapter
// shares, and implements CanHandle/ExtractWithProvenance/Validate/
// IsAvailable itself.
package adapters

import (
	"time"

	"github.com/sawpanic/listingfeed/internal/health"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// Base implements the read-only attribute methods and health tracking
// common to every adapter. Concrete adapters embed it.
type Base struct {
	channel            listing.Channel
	marketplace        listing.Marketplace
	name               string
	version            string
	requiresUserAction bool
	tracker            *health.Tracker
}

// NewBase constructs the shared adapter state.
func NewBase(channel listing.Channel, marketplace listing.Marketplace, name, version string, requiresUserAction bool) Base {
	return Base{
		channel:            channel,
		marketplace:        marketplace,
		name:               name,
		version:            version,
		requiresUserAction: requiresUserAction,
		tracker:            health.NewTracker(),
	}
}

func (b *Base) Channel() listing.Channel           { return b.channel }
func (b *Base) Tier() int                          { return listing.TierOf(b.channel) }
func (b *Base) ConfidenceRange() listing.TierRange  { return listing.DefaultConfidenceRange(b.channel) }
func (b *Base) RequiresUserAction() bool            { return b.requiresUserAction }
func (b *Base) MarketplaceID() listing.Marketplace  { return b.marketplace }
func (b *Base) Name() string                        { return b.name }
func (b *Base) Version() string                     { return b.version }

// SourceID builds the stable adapter+version identifier used in
// provenance records.
func (b *Base) SourceID() string {
	return b.name + "@" + b.version
}

// RecordAttempt logs one extraction attempt (success or failure) to the
// adapter's own health tracker.
func (b *Base) RecordAttempt(success bool) {
	b.tracker.Record(success)
}

// BaseHealth derives a HealthSnapshot from the tracker plus the adapter's
// own availability check: estimatedReliability is confidenceRange.max
// when healthy, degraded by recentFailureRate when not.
func (b *Base) BaseHealth(available bool) listing.HealthSnapshot {
	stats := b.tracker.Snapshot()
	rng := b.ConfidenceRange()

	reliability := rng.Max
	if stats.RecentFailureRate > 0 {
		reliability = rng.Max * (1 - stats.RecentFailureRate)
	}

	var msg string
	if !available {
		msg = "adapter unavailable"
	}

	return listing.HealthSnapshot{
		Available:                available,
		LastSuccessfulExtraction: stats.LastSuccessfulExtraction,
		RecentFailureRate:        stats.RecentFailureRate,
		EstimatedReliability:     reliability,
		StatusMessage:            msg,
	}
}

// NewProvenance builds the provenance record an adapter attaches to a
// successful extraction.
func (b *Base) NewProvenance(confidence float64, freshness listing.Freshness, userConsented, termsCompliant bool, rawDataHash string) listing.Provenance {
	return listing.Provenance{
		Channel:        b.channel,
		Tier:           b.Tier(),
		Confidence:     confidence,
		Freshness:      freshness,
		SourceID:       b.SourceID(),
		ExtractedAt:    time.Now(),
		RawDataHash:    rawDataHash,
		UserConsented:  userConsented,
		TermsCompliant: termsCompliant,
	}
}
