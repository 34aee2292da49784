// Package adapter defines the fixed capability set every data-source
// adapter must implement. The orchestrator is polymorphic over this
// interface only; it never type-switches on a concrete adapter.
package adapter

import (
	"context"

	"github.com/sawpanic/listingfeed/internal/listing"
)

// ValidationResult is the output of Validate.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ExtractOptions carries the per-attempt deadline the orchestrator derives
// from the caller's request options.
type ExtractOptions struct {
	// DeadlineMillis is the Unix-epoch millisecond wall-clock point by
	// which extraction must return. The orchestrator also bounds the
	// context.Context it passes by the same deadline; the adapters in this
	// repository rely on that context and do not read this field.
	DeadlineMillis int64
}

// Adapter is the contract every data source implements. A value satisfying
// Adapter is bound to exactly one marketplace and one channel.
type Adapter interface {
	Channel() listing.Channel
	Tier() int
	ConfidenceRange() listing.TierRange
	RequiresUserAction() bool
	MarketplaceID() listing.Marketplace
	Name() string
	Version() string

	// CanHandle is a cheap, local predicate: does this adapter know how to
	// interpret the given identifier (URL, path, raw content)?
	CanHandle(identifier string) bool

	// ExtractWithProvenance is the orchestrator's sole extraction entry
	// point. It returns (nil, nil) for "no data found" and a non-nil error
	// only for transient, recoverable trouble (network failure, parse
	// failure, rate limiting, etc).
	ExtractWithProvenance(ctx context.Context, content []byte, identifier string, opts ExtractOptions) (*listing.WithProvenance, error)

	Validate(l *listing.Listing) ValidationResult

	// IsAvailable checks whether this adapter can serve right now (API key
	// loaded, bridge server up, circuit breaker closed, etc).
	IsAvailable(ctx context.Context) bool

	GetHealth() listing.HealthSnapshot
}
