package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// priceLine matches "Total: $12.34" / "Item price: 12.34 USD" style lines
// commonly found in order-confirmation emails. This is a minimal
// illustrative pattern, not a production email parser.
var priceLine = regexp.MustCompile(`(?i)(?:total|price)[:\s]+\$?([0-9]+(?:\.[0-9]{1,2})?)`)
var titleLine = regexp.MustCompile(`(?i)item[:\s]+(.+)`)

// MessageFetcher retrieves the raw body of a message given its identifier
// (a mailto: address or a local .eml path). The orchestrator calls
// ExtractWithProvenance with nil content when it has no bytes in hand;
// EmailParsingAdapter falls back to this seam rather than erroring out.
type MessageFetcher interface {
	Fetch(ctx context.Context, identifier string) ([]byte, error)
}

// EmailParsingAdapter is the tier-2 "email_parsing" channel adapter:
// extracts listing data from an order-confirmation email body.
type EmailParsingAdapter struct {
	Base
	fetcher MessageFetcher
}

// NewEmailParsingAdapter builds an email-parsing adapter. fetcher may be
// nil, in which case the adapter only accepts content supplied directly
// by the caller.
func NewEmailParsingAdapter(marketplace listing.Marketplace, name, version string, fetcher MessageFetcher) *EmailParsingAdapter {
	return &EmailParsingAdapter{
		Base:    NewBase(listing.ChannelEmailParsing, marketplace, name, version, true),
		fetcher: fetcher,
	}
}

func (a *EmailParsingAdapter) CanHandle(identifier string) bool {
	return strings.HasPrefix(identifier, "mailto:") || strings.HasSuffix(strings.ToLower(identifier), ".eml")
}

func (a *EmailParsingAdapter) IsAvailable(ctx context.Context) bool { return true }

func (a *EmailParsingAdapter) ExtractWithProvenance(ctx context.Context, content []byte, identifier string, opts adapter.ExtractOptions) (*listing.WithProvenance, error) {
	if len(content) == 0 && a.fetcher != nil {
		fetched, ferr := a.fetcher.Fetch(ctx, identifier)
		if ferr != nil {
			a.RecordAttempt(false)
			return nil, fmt.Errorf("email_parsing: fetch %s: %w", identifier, ferr)
		}
		content = fetched
	}
	if len(content) == 0 {
		a.RecordAttempt(false)
		return nil, fmt.Errorf("email_parsing: empty message body for %s", identifier)
	}

	body := string(content)
	titleMatch := titleLine.FindStringSubmatch(body)
	if titleMatch == nil {
		a.RecordAttempt(true)
		return nil, nil
	}

	l := &listing.Listing{
		ID:               identifier,
		Marketplace:      a.MarketplaceID(),
		URL:              identifier,
		Title:            strings.TrimSpace(titleMatch[1]),
		Condition:        listing.ConditionUnknown,
		Availability:     listing.AvailabilitySold,
		ExtractedAt:      time.Now(),
		ExtractionMethod: string(listing.ChannelEmailParsing),
		ExtractorVersion: a.Version(),
	}

	if priceMatch := priceLine.FindStringSubmatch(body); priceMatch != nil {
		if amount, err := strconv.ParseFloat(priceMatch[1], 64); err == nil {
			l.Price = &listing.Money{Amount: amount, Currency: "USD"}
		}
	}

	rng := a.ConfidenceRange()
	l.Confidence = rng.Min + (rng.Max-rng.Min)*0.5

	hash := sha256.Sum256(content)
	prov := a.NewProvenance(l.Confidence, listing.FreshnessHistorical, true, true, hex.EncodeToString(hash[:]))

	a.RecordAttempt(true)
	return &listing.WithProvenance{Listing: l, Provenance: prov}, nil
}

func (a *EmailParsingAdapter) Validate(l *listing.Listing) adapter.ValidationResult {
	return DefaultValidate(l)
}

func (a *EmailParsingAdapter) GetHealth() listing.HealthSnapshot {
	return a.BaseHealth(true)
}

// LocalEmailReader is a MessageFetcher that reads a ".eml" identifier as a
// path on local disk; it errors on "mailto:" identifiers, which need a
// real mailbox client to resolve.
type LocalEmailReader struct{}

func (LocalEmailReader) Fetch(ctx context.Context, identifier string) ([]byte, error) {
	if strings.HasPrefix(identifier, "mailto:") {
		return nil, fmt.Errorf("email_parsing: no mailbox client wired to resolve %s", identifier)
	}
	return os.ReadFile(identifier)
}
