package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// LLMClient is the seam a real LLM SDK implements. Prompt construction and
// response-schema coercion are adapter-internal; this adapter depends on
// the interface only.
type LLMClient interface {
	ExtractListing(ctx context.Context, content []byte, identifier string) (*listing.Listing, float64, error)
}

// ContentFetcher retrieves the raw bytes backing an identifier (URL or
// local path) when no other channel has already supplied them. As the
// last-resort fallback, the LLM adapter may be the only channel asked to
// handle an identifier it never received bytes for.
type ContentFetcher interface {
	Fetch(ctx context.Context, identifier string) ([]byte, error)
}

// LLMExtractionAdapter is the tier-4 "llm_extraction" channel adapter: the
// last-resort fallback when no structured source handled the input.
type LLMExtractionAdapter struct {
	Base
	client  LLMClient
	fetcher ContentFetcher
	breaker *gobreaker.CircuitBreaker
}

// NewLLMExtractionAdapter wires an LLM client behind the adapter
// contract, circuit-broken since this channel is the flakiest fallback.
// fetcher may be nil, in which case the adapter only accepts content
// supplied directly by the caller.
func NewLLMExtractionAdapter(marketplace listing.Marketplace, name, version string, client LLMClient, fetcher ContentFetcher) *LLMExtractionAdapter {
	a := &LLMExtractionAdapter{
		Base:    NewBase(listing.ChannelLLMExtraction, marketplace, name, version, false),
		client:  client,
		fetcher: fetcher,
	}
	a.breaker = NewExtractionBreaker(name, listing.ChannelLLMExtraction)
	return a
}

// CanHandle is deliberately permissive: the LLM fallback accepts any
// non-empty identifier, since it is the channel of last resort.
func (a *LLMExtractionAdapter) CanHandle(identifier string) bool {
	return identifier != ""
}

func (a *LLMExtractionAdapter) IsAvailable(ctx context.Context) bool {
	return a.client != nil && BreakerAvailable(a.breaker)
}

func (a *LLMExtractionAdapter) ExtractWithProvenance(ctx context.Context, content []byte, identifier string, opts adapter.ExtractOptions) (*listing.WithProvenance, error) {
	result, err := CallExtract(a.breaker, ctx, func() (*listing.WithProvenance, error) {
		if len(content) == 0 && a.fetcher != nil {
			fetched, ferr := a.fetcher.Fetch(ctx, identifier)
			if ferr != nil {
				return nil, fmt.Errorf("llm_extraction: fetch %s: %w", identifier, ferr)
			}
			content = fetched
		}
		if len(content) == 0 {
			return nil, fmt.Errorf("llm_extraction: no content supplied for %s", identifier)
		}

		l, modelConfidence, lerr := a.client.ExtractListing(ctx, content, identifier)
		if lerr != nil {
			return nil, fmt.Errorf("llm_extraction: %w", lerr)
		}
		if l == nil {
			return nil, nil
		}

		l.ExtractedAt = time.Now()
		l.ExtractionMethod = string(listing.ChannelLLMExtraction)
		l.ExtractorVersion = a.Version()
		if l.Marketplace == "" {
			l.Marketplace = a.MarketplaceID()
		}

		rng := a.ConfidenceRange()
		confidence := modelConfidence
		if confidence < rng.Min {
			confidence = rng.Min
		}
		if confidence > rng.Max {
			confidence = rng.Max
		}
		l.Confidence = confidence

		hash := sha256.Sum256(content)
		prov := a.NewProvenance(l.Confidence, listing.FreshnessRecent, false, true, hex.EncodeToString(hash[:]))

		return &listing.WithProvenance{Listing: l, Provenance: prov}, nil
	})

	a.RecordAttempt(err == nil && result != nil)
	return result, err
}

func (a *LLMExtractionAdapter) Validate(l *listing.Listing) adapter.ValidationResult {
	return DefaultValidate(l)
}

func (a *LLMExtractionAdapter) GetHealth() listing.HealthSnapshot {
	return a.BaseHealth(a.client != nil && BreakerAvailable(a.breaker))
}
