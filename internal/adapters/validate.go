package adapters

import (
	"fmt"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// DefaultValidate runs a listing's required-field invariant checks plus a
// few adapter-facing warnings. It is shared by every concrete adapter in
// this package; an adapter with source-specific validation rules can wrap
// it.
func DefaultValidate(l *listing.Listing) adapter.ValidationResult {
	result := adapter.ValidationResult{Valid: true}

	if err := l.Validate(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	if l.Price == nil {
		result.Warnings = append(result.Warnings, "no price extracted")
	}
	if len(l.Images) == 0 {
		result.Warnings = append(result.Warnings, "no images extracted")
	}
	if l.Seller.Name == "" && l.Seller.ID == "" {
		result.Warnings = append(result.Warnings, "no seller information extracted")
	}
	if l.Confidence > 0 && l.Confidence < 0.3 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("low confidence extraction: %.2f", l.Confidence))
	}

	return result
}
