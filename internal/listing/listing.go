// Package listing defines the normalized listing value types shared by
// every adapter and by the orchestrator. Values in this package are
// immutable after an adapter returns them; callers that need to change a
// field build a new value rather than mutating one in place.
package listing

import (
	"fmt"
	"time"
)

// Marketplace identifies the source marketplace a listing was extracted from.
type Marketplace string

const (
	MarketplaceEbay    Marketplace = "ebay"
	MarketplaceAmazon  Marketplace = "amazon"
	MarketplaceWalmart Marketplace = "walmart"
	MarketplaceEtsy    Marketplace = "etsy"
	MarketplaceCustom  Marketplace = "custom"
)

// Valid reports whether m is one of the closed set of known marketplaces.
func (m Marketplace) Valid() bool {
	switch m {
	case MarketplaceEbay, MarketplaceAmazon, MarketplaceWalmart, MarketplaceEtsy, MarketplaceCustom:
		return true
	default:
		return false
	}
}

// Condition is the item condition enum.
type Condition string

const (
	ConditionNew            Condition = "new"
	ConditionUsedLikeNew    Condition = "used_like_new"
	ConditionUsedVeryGood   Condition = "used_very_good"
	ConditionUsedGood       Condition = "used_good"
	ConditionUsedAcceptable Condition = "used_acceptable"
	ConditionRefurbished    Condition = "refurbished"
	ConditionUnknown        Condition = "unknown"
)

// Availability is the stock-status enum.
type Availability string

const (
	AvailabilityInStock     Availability = "in_stock"
	AvailabilitySold        Availability = "sold"
	AvailabilityOutOfStock  Availability = "out_of_stock"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityUnknown     Availability = "unknown"
)

// Money is a non-negative decimal amount in a 3-letter ISO-4217 currency.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Valid reports whether the money value satisfies the data-model invariants.
func (m Money) Valid() bool {
	return m.Amount >= 0 && len(m.Currency) == 3
}

// Seller describes the party offering the listing.
type Seller struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Rating      float64 `json:"rating,omitempty"` // 0-100
	ReviewCount int     `json:"reviewCount,omitempty"`
	Verified    bool    `json:"verified,omitempty"`
}

// Listing is the normalized, marketplace-agnostic representation of a
// single marketplace item.
type Listing struct {
	ID          string      `json:"id"`
	Marketplace Marketplace `json:"marketplace"`
	URL         string      `json:"url"`
	Title       string      `json:"title"`

	Price         *Money `json:"price,omitempty"`
	ShippingCost  *Money `json:"shippingCost,omitempty"`
	OriginalPrice *Money `json:"originalPrice,omitempty"`

	Condition    Condition    `json:"condition"`
	Availability Availability `json:"availability"`

	SoldDate          *time.Time `json:"soldDate,omitempty"`
	QuantityAvailable *int       `json:"quantityAvailable,omitempty"`

	Seller Seller `json:"seller"`

	Images []string `json:"images,omitempty"`

	ItemNumber string                 `json:"itemNumber,omitempty"`
	Category   []string               `json:"category,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`

	ExtractedAt      time.Time `json:"extractedAt"`
	ExtractionMethod string    `json:"extractionMethod"`
	Confidence       float64   `json:"confidence"`
	ExtractorVersion string    `json:"extractorVersion"`
}

// Validate checks the data-model invariants every listing must satisfy.
func (l *Listing) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("listing: id is required")
	}
	if !l.Marketplace.Valid() {
		return fmt.Errorf("listing: unknown marketplace %q", l.Marketplace)
	}
	if l.URL == "" {
		return fmt.Errorf("listing: url is required")
	}
	if l.Title == "" {
		return fmt.Errorf("listing: title is required")
	}
	if l.ExtractedAt.IsZero() {
		return fmt.Errorf("listing: extractedAt is required")
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return fmt.Errorf("listing: confidence %v out of range [0,1]", l.Confidence)
	}
	if l.ExtractorVersion == "" {
		return fmt.Errorf("listing: extractorVersion is required")
	}
	if l.Price != nil && !l.Price.Valid() {
		return fmt.Errorf("listing: invalid price %+v", *l.Price)
	}
	if l.ShippingCost != nil && !l.ShippingCost.Valid() {
		return fmt.Errorf("listing: invalid shippingCost %+v", *l.ShippingCost)
	}
	if l.OriginalPrice != nil && !l.OriginalPrice.Valid() {
		return fmt.Errorf("listing: invalid originalPrice %+v", *l.OriginalPrice)
	}
	return nil
}

// Clone returns a deep-enough copy of l for building a merged listing
// without mutating the source adapter's result.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	if l.Price != nil {
		p := *l.Price
		c.Price = &p
	}
	if l.ShippingCost != nil {
		p := *l.ShippingCost
		c.ShippingCost = &p
	}
	if l.OriginalPrice != nil {
		p := *l.OriginalPrice
		c.OriginalPrice = &p
	}
	if l.SoldDate != nil {
		t := *l.SoldDate
		c.SoldDate = &t
	}
	if l.QuantityAvailable != nil {
		q := *l.QuantityAvailable
		c.QuantityAvailable = &q
	}
	if l.Images != nil {
		c.Images = append([]string(nil), l.Images...)
	}
	if l.Category != nil {
		c.Category = append([]string(nil), l.Category...)
	}
	if l.Attributes != nil {
		attrs := make(map[string]interface{}, len(l.Attributes))
		for k, v := range l.Attributes {
			attrs[k] = v
		}
		c.Attributes = attrs
	}
	return &c
}
