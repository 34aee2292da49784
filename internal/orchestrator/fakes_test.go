package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// fakeAdapter is a scripted adapter double used to drive the orchestrator
// through exact scenarios without a real network, file, or browser
// dependency: it returns a fixed result, error, or delay per test case
// rather than faking a transport.
type fakeAdapter struct {
	channel    listing.Channel
	tier       int
	rng        listing.TierRange
	userAction bool
	name       string
	version    string
	marketID   listing.Marketplace

	available bool
	result    *listing.WithProvenance
	err       error
	delay     time.Duration
	panics    bool

	calls int
}

func (f *fakeAdapter) Channel() listing.Channel                { return f.channel }
func (f *fakeAdapter) Tier() int                               { return f.tier }
func (f *fakeAdapter) ConfidenceRange() listing.TierRange       { return f.rng }
func (f *fakeAdapter) RequiresUserAction() bool                 { return f.userAction }
func (f *fakeAdapter) MarketplaceID() listing.Marketplace       { return f.marketID }
func (f *fakeAdapter) Name() string                             { return f.name }
func (f *fakeAdapter) Version() string                          { return f.version }
func (f *fakeAdapter) CanHandle(identifier string) bool         { return true }
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool     { return f.available }

func (f *fakeAdapter) ExtractWithProvenance(ctx context.Context, content []byte, identifier string, opts adapter.ExtractOptions) (*listing.WithProvenance, error) {
	f.calls++
	if f.panics {
		panic(fmt.Sprintf("fakeAdapter %s: scripted panic", f.name))
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeAdapter) Validate(l *listing.Listing) adapter.ValidationResult {
	return adapter.ValidationResult{Valid: true}
}

func (f *fakeAdapter) GetHealth() listing.HealthSnapshot {
	return listing.HealthSnapshot{Available: f.available, EstimatedReliability: f.rng.Max}
}

func newFakeListing(marketplace listing.Marketplace, id, title string, channel listing.Channel, confidence float64) *listing.WithProvenance {
	return &listing.WithProvenance{
		Listing: &listing.Listing{
			ID:               id,
			Marketplace:      marketplace,
			URL:              "https://example.test/" + id,
			Title:            title,
			Condition:        listing.ConditionUsedGood,
			Availability:     listing.AvailabilityInStock,
			ExtractedAt:      time.Now(),
			ExtractionMethod: string(channel),
			Confidence:       confidence,
			ExtractorVersion: "test-1",
		},
		Provenance: listing.Provenance{
			Channel:    channel,
			Tier:       listing.TierOf(channel),
			Confidence: confidence,
			SourceID:   "fake@test-1",
		},
	}
}
