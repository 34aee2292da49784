package adapters

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/listingfeed/internal/listing"
)

// NewExtractionBreaker builds a gobreaker.CircuitBreaker tuned for a
// single adapter: wraps extractWithProvenance for the scraping and
// llm_extraction channels, the flakiest two. Closed/half-open/open state
// transitions on a consecutive-failure threshold and a cooldown timeout.
func NewExtractionBreaker(name string, channel listing.Channel) *gobreaker.CircuitBreaker {
	var failureThreshold uint32 = 5
	if channel == listing.ChannelLLMExtraction {
		failureThreshold = 3
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
	}
	return gobreaker.NewCircuitBreaker(st)
}

// BreakerAvailable reports whether cb's current state permits a call
// without actually making one. IsAvailable uses this so an open breaker
// surfaces as "Adapter not available" rather than as a failed attempt.
func BreakerAvailable(cb *gobreaker.CircuitBreaker) bool {
	return cb.State() != gobreaker.StateOpen
}

// CallExtract runs fn through the breaker, translating a gobreaker trip
// into the same recoverable-error shape adapters otherwise return.
func CallExtract(cb *gobreaker.CircuitBreaker, ctx context.Context, fn func() (*listing.WithProvenance, error)) (*listing.WithProvenance, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*listing.WithProvenance), nil
}
