package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

func TestDataExportAdapter_CanHandle(t *testing.T) {
	a := NewDataExportAdapter(listing.MarketplaceEbay, "csv-import", "v1", DefaultCSVColumnMap(), nil)
	assert.True(t, a.CanHandle("export.csv"))
	assert.False(t, a.CanHandle("export.json"))
}

func TestDataExportAdapter_ExtractWithProvenance_ParsesRow(t *testing.T) {
	a := NewDataExportAdapter(listing.MarketplaceEbay, "csv-import", "v1", DefaultCSVColumnMap(), nil)
	csvBody := "item_id,title,price,currency,condition,availability,url\n" +
		"123,Widget,19.99,USD,used_good,in_stock,https://ebay.com/itm/123\n"

	result, err := a.ExtractWithProvenance(context.Background(), []byte(csvBody), "export.csv", adapter.ExtractOptions{})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "123", result.Listing.ID)
	assert.Equal(t, "Widget", result.Listing.Title)
	require.NotNil(t, result.Listing.Price)
	assert.Equal(t, 19.99, result.Listing.Price.Amount)
	assert.Equal(t, listing.ChannelDataExport, result.Provenance.Channel)
}

func TestDataExportAdapter_ExtractWithProvenance_EmptyContentErrors(t *testing.T) {
	a := NewDataExportAdapter(listing.MarketplaceEbay, "csv-import", "v1", DefaultCSVColumnMap(), nil)
	_, err := a.ExtractWithProvenance(context.Background(), nil, "export.csv", adapter.ExtractOptions{})
	assert.Error(t, err)
}

func TestDataExportAdapter_ExtractWithProvenance_EmptyRequiredFieldsReturnsNil(t *testing.T) {
	a := NewDataExportAdapter(listing.MarketplaceEbay, "csv-import", "v1", DefaultCSVColumnMap(), nil)
	csvBody := "item_id,title\n,\n"

	result, err := a.ExtractWithProvenance(context.Background(), []byte(csvBody), "export.csv", adapter.ExtractOptions{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

type stubFileReader struct {
	content []byte
	err     error
}

func (s stubFileReader) Read(ctx context.Context, identifier string) ([]byte, error) {
	return s.content, s.err
}

func TestDataExportAdapter_ExtractWithProvenance_FallsBackToFileReaderWhenContentNil(t *testing.T) {
	csvBody := "item_id,title,price,currency,condition,availability,url\n" +
		"123,Widget,19.99,USD,used_good,in_stock,https://ebay.com/itm/123\n"
	a := NewDataExportAdapter(listing.MarketplaceEbay, "csv-import", "v1", DefaultCSVColumnMap(), stubFileReader{content: []byte(csvBody)})

	result, err := a.ExtractWithProvenance(context.Background(), nil, "export.csv", adapter.ExtractOptions{})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Widget", result.Listing.Title)
}

func TestDataExportAdapter_ExtractWithProvenance_FileReaderErrorPropagates(t *testing.T) {
	a := NewDataExportAdapter(listing.MarketplaceEbay, "csv-import", "v1", DefaultCSVColumnMap(), stubFileReader{err: assert.AnError})

	_, err := a.ExtractWithProvenance(context.Background(), nil, "export.csv", adapter.ExtractOptions{})
	assert.Error(t, err)
}
