package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

var upgrader = websocket.Upgrader{}

func captureServer(t *testing.T, payload CapturedPayload) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req map[string]string
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestBridge_RequestCapture_DialsAndReadsPayload(t *testing.T) {
	srv := captureServer(t, CapturedPayload{URL: "https://ebay.com/itm/1", Title: "Widget"})
	b := NewBridge(wsURL(srv.URL))

	payload, err := b.RequestCapture(context.Background(), "https://ebay.com/itm/1")

	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, "Widget", payload.Title)
	assert.True(t, b.Connected())
}

func TestBridge_RequestCapture_ResetsConnectionOnReadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	b := NewBridge(wsURL(srv.URL))
	_, err := b.RequestCapture(context.Background(), "https://ebay.com/itm/1")

	assert.Error(t, err)
	assert.False(t, b.Connected())
}

func TestBridge_RequestCapture_InvalidEndpointErrors(t *testing.T) {
	b := NewBridge("://not-a-url")
	_, err := b.RequestCapture(context.Background(), "https://ebay.com/itm/1")
	assert.Error(t, err)
}

func TestBrowserExtensionAdapter_CanHandle(t *testing.T) {
	a := NewBrowserExtensionAdapter(listing.MarketplaceEbay, "ebay-ext", "v1", NewBridge("ws://127.0.0.1:9222/bridge"))
	assert.True(t, a.CanHandle("https://ebay.com/itm/1"))
	assert.False(t, a.CanHandle("not a url"))
}

func TestBrowserExtensionAdapter_IsAvailable_FalseWhenUnwired(t *testing.T) {
	a := NewBrowserExtensionAdapter(listing.MarketplaceEbay, "ebay-ext", "v1", nil)
	assert.False(t, a.IsAvailable(context.Background()))
}

func TestBrowserExtensionAdapter_ExtractWithProvenance_Success(t *testing.T) {
	srv := captureServer(t, CapturedPayload{URL: "https://ebay.com/itm/1", Title: "Widget"})
	a := NewBrowserExtensionAdapter(listing.MarketplaceEbay, "ebay-ext", "v1", NewBridge(wsURL(srv.URL)))

	result, err := a.ExtractWithProvenance(context.Background(), nil, "https://ebay.com/itm/1", adapter.ExtractOptions{})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Widget", result.Listing.Title)
	assert.Equal(t, listing.FreshnessRealtime, result.Provenance.Freshness)
}

func TestBrowserExtensionAdapter_ExtractWithProvenance_EmptyTitleReturnsNil(t *testing.T) {
	srv := captureServer(t, CapturedPayload{URL: "https://ebay.com/itm/1"})
	a := NewBrowserExtensionAdapter(listing.MarketplaceEbay, "ebay-ext", "v1", NewBridge(wsURL(srv.URL)))

	result, err := a.ExtractWithProvenance(context.Background(), nil, "https://ebay.com/itm/1", adapter.ExtractOptions{})

	require.NoError(t, err)
	assert.Nil(t, result)
}
