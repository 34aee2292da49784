package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// PageFetcher fetches raw HTML for an identifier (URL). The orchestrator
// never calls a fetcher directly; this is the seam a real HTTP
// fetch/render stack implements.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTMLExtractor pulls listing fields out of fetched HTML. ScrapingAdapter
// depends on this interface only; selector logic lives in the concrete
// implementation.
type HTMLExtractor interface {
	Extract(html []byte, url string) (*listing.Listing, error)
}

// ScrapingAdapter is the tier-3 "scraping" channel adapter.
type ScrapingAdapter struct {
	Base
	fetcher   PageFetcher
	extractor HTMLExtractor
	breaker   *gobreaker.CircuitBreaker
}

// NewScrapingAdapter wires a fetcher and extractor behind the adapter
// contract, circuit-broken since scraping is one of the flakiest channels.
func NewScrapingAdapter(marketplace listing.Marketplace, name, version string, fetcher PageFetcher, extractor HTMLExtractor) *ScrapingAdapter {
	a := &ScrapingAdapter{
		Base:      NewBase(listing.ChannelScraping, marketplace, name, version, false),
		fetcher:   fetcher,
		extractor: extractor,
	}
	a.breaker = NewExtractionBreaker(name, listing.ChannelScraping)
	return a
}

func (a *ScrapingAdapter) CanHandle(identifier string) bool {
	return strings.HasPrefix(identifier, "http://") || strings.HasPrefix(identifier, "https://")
}

func (a *ScrapingAdapter) IsAvailable(ctx context.Context) bool {
	return a.fetcher != nil && a.extractor != nil && BreakerAvailable(a.breaker)
}

func (a *ScrapingAdapter) ExtractWithProvenance(ctx context.Context, content []byte, identifier string, opts adapter.ExtractOptions) (*listing.WithProvenance, error) {
	result, err := CallExtract(a.breaker, ctx, func() (*listing.WithProvenance, error) {
		html := content
		if html == nil {
			fetched, ferr := a.fetcher.Fetch(ctx, identifier)
			if ferr != nil {
				return nil, fmt.Errorf("scraping: fetch %s: %w", identifier, ferr)
			}
			html = fetched
		}

		l, eerr := a.extractor.Extract(html, identifier)
		if eerr != nil {
			return nil, fmt.Errorf("scraping: extract %s: %w", identifier, eerr)
		}
		if l == nil {
			return nil, nil
		}

		l.ExtractedAt = time.Now()
		l.ExtractionMethod = string(listing.ChannelScraping)
		l.ExtractorVersion = a.Version()
		if l.Marketplace == "" {
			l.Marketplace = a.MarketplaceID()
		}

		rng := a.ConfidenceRange()
		if l.Confidence == 0 {
			l.Confidence = rng.Max
		}

		hash := sha256.Sum256(html)
		prov := a.NewProvenance(l.Confidence, listing.FreshnessRecent, false, true, hex.EncodeToString(hash[:]))

		return &listing.WithProvenance{Listing: l, Provenance: prov}, nil
	})

	a.RecordAttempt(err == nil && result != nil)
	return result, err
}

func (a *ScrapingAdapter) Validate(l *listing.Listing) adapter.ValidationResult {
	return DefaultValidate(l)
}

func (a *ScrapingAdapter) GetHealth() listing.HealthSnapshot {
	return a.BaseHealth(a.fetcher != nil && a.extractor != nil && BreakerAvailable(a.breaker))
}
