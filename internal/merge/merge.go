// Package merge implements field-level conflict resolution and the
// confidence-boost arithmetic for combining several sources' results into
// one listing: lowest tier wins on disagreement, and agreement across
// sources raises confidence.
package merge

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sawpanic/listingfeed/internal/listing"
)

// Source is one successful adapter result feeding the merge.
type Source struct {
	Provenance listing.Provenance
	Listing    *listing.Listing
}

// conflictFields is the fixed field set checked for disagreement, in the
// fixed order conflicts are emitted.
var conflictFields = []string{"title", "price", "condition", "availability", "soldDate"}

// Merge combines sources into a single listing, field by field. sources
// must be sorted ascending by provenance tier already (the orchestrator
// does this before calling Merge); ties are broken by input order,
// matching Go's stable sort upstream.
func Merge(sources []Source) (*listing.WithProvenance, []listing.ConflictEntry) {
	if len(sources) == 0 {
		return nil, nil
	}

	primary := sources[0]
	merged := primary.Listing.Clone()

	result := &listing.WithProvenance{
		Listing:    merged,
		Provenance: primary.Provenance,
	}
	if len(sources) > 1 {
		correlated := make([]listing.Provenance, len(sources))
		for i, s := range sources {
			correlated[i] = s.Provenance
		}
		result.CorrelatedSources = correlated
	}

	var conflicts []listing.ConflictEntry
	for _, field := range conflictFields {
		values := fieldValues(sources, field)
		if len(values) < 2 {
			continue
		}
		if !hasDisagreement(values) {
			continue
		}

		// sources is already tier-ascending; the first present value is
		// the lowest-tier source's value (ties broken by input order).
		winner := values[0]
		applyField(merged, field, winner.Value)

		conflicts = append(conflicts, listing.ConflictEntry{
			Field:            field,
			Values:           values,
			ResolutionMethod: "highest_tier",
			ResolvedValue:    winner.Value,
		})
	}
	if len(conflicts) > 0 {
		result.ConflictingData = conflicts
	}

	boost := math.Min(0.10, float64(len(sources)-1)*0.03)
	merged.Confidence = math.Min(1.0, primary.Provenance.Confidence+boost)
	result.Provenance.Confidence = merged.Confidence

	return result, conflicts
}

func fieldValues(sources []Source, field string) []listing.FieldValue {
	out := make([]listing.FieldValue, 0, len(sources))
	for _, s := range sources {
		v := fieldValue(s.Listing, field)
		if v == nil {
			continue
		}
		out = append(out, listing.FieldValue{Provenance: s.Provenance, Value: v})
	}
	return out
}

func fieldValue(l *listing.Listing, field string) interface{} {
	switch field {
	case "title":
		if l.Title == "" {
			return nil
		}
		return l.Title
	case "price":
		if l.Price == nil {
			return nil
		}
		return *l.Price
	case "condition":
		if l.Condition == "" || l.Condition == listing.ConditionUnknown {
			return nil
		}
		return l.Condition
	case "availability":
		if l.Availability == "" || l.Availability == listing.AvailabilityUnknown {
			return nil
		}
		return l.Availability
	case "soldDate":
		if l.SoldDate == nil {
			return nil
		}
		return *l.SoldDate
	default:
		return nil
	}
}

func applyField(l *listing.Listing, field string, value interface{}) {
	switch field {
	case "title":
		l.Title = value.(string)
	case "price":
		p := value.(listing.Money)
		l.Price = &p
	case "condition":
		l.Condition = value.(listing.Condition)
	case "availability":
		l.Availability = value.(listing.Availability)
	case "soldDate":
		t := value.(time.Time)
		l.SoldDate = &t
	}
}

// hasDisagreement reports whether values contains at least two distinct
// serialized values; fewer than two distinct values is not a conflict.
func hasDisagreement(values []listing.FieldValue) bool {
	seen := map[string]struct{}{}
	for _, v := range values {
		b, err := json.Marshal(v.Value)
		if err != nil {
			continue
		}
		seen[string(b)] = struct{}{}
		if len(seen) > 1 {
			return true
		}
	}
	return false
}
