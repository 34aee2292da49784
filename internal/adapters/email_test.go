package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

func TestEmailParsingAdapter_CanHandle(t *testing.T) {
	a := NewEmailParsingAdapter(listing.MarketplaceEbay, "order-emails", "v1", nil)
	assert.True(t, a.CanHandle("mailto:orders@ebay.com"))
	assert.True(t, a.CanHandle("confirmation.eml"))
	assert.False(t, a.CanHandle("https://ebay.com/itm/1"))
}

func TestEmailParsingAdapter_ExtractWithProvenance_ParsesBody(t *testing.T) {
	a := NewEmailParsingAdapter(listing.MarketplaceEbay, "order-emails", "v1", nil)
	body := "Your order has shipped.\nItem: Vintage Lamp\nTotal: $45.50\nThanks for shopping.\n"

	result, err := a.ExtractWithProvenance(context.Background(), []byte(body), "confirmation.eml", adapter.ExtractOptions{})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Vintage Lamp", result.Listing.Title)
	require.NotNil(t, result.Listing.Price)
	assert.Equal(t, 45.50, result.Listing.Price.Amount)
	assert.Equal(t, listing.AvailabilitySold, result.Listing.Availability)
}

func TestEmailParsingAdapter_ExtractWithProvenance_NoItemLineReturnsNil(t *testing.T) {
	a := NewEmailParsingAdapter(listing.MarketplaceEbay, "order-emails", "v1", nil)
	result, err := a.ExtractWithProvenance(context.Background(), []byte("Thanks for your purchase."), "confirmation.eml", adapter.ExtractOptions{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEmailParsingAdapter_ExtractWithProvenance_EmptyBodyErrors(t *testing.T) {
	a := NewEmailParsingAdapter(listing.MarketplaceEbay, "order-emails", "v1", nil)
	_, err := a.ExtractWithProvenance(context.Background(), nil, "confirmation.eml", adapter.ExtractOptions{})
	assert.Error(t, err)
}

type stubMessageFetcher struct {
	content []byte
	err     error
}

func (s stubMessageFetcher) Fetch(ctx context.Context, identifier string) ([]byte, error) {
	return s.content, s.err
}

func TestEmailParsingAdapter_ExtractWithProvenance_FallsBackToFetcherWhenContentNil(t *testing.T) {
	body := "Your order has shipped.\nItem: Vintage Lamp\nTotal: $45.50\nThanks for shopping.\n"
	a := NewEmailParsingAdapter(listing.MarketplaceEbay, "order-emails", "v1", stubMessageFetcher{content: []byte(body)})

	result, err := a.ExtractWithProvenance(context.Background(), nil, "confirmation.eml", adapter.ExtractOptions{})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Vintage Lamp", result.Listing.Title)
}

func TestEmailParsingAdapter_ExtractWithProvenance_FetcherErrorPropagates(t *testing.T) {
	a := NewEmailParsingAdapter(listing.MarketplaceEbay, "order-emails", "v1", stubMessageFetcher{err: assert.AnError})

	_, err := a.ExtractWithProvenance(context.Background(), nil, "confirmation.eml", adapter.ExtractOptions{})
	assert.Error(t, err)
}
