package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// CapturedPayload is the JSON message a companion browser extension
// streams over the bridge: a DOM snapshot for the tab it's currently
// pointed at, addressed by the page URL it was captured from.
type CapturedPayload struct {
	URL   string          `json:"url"`
	Title string          `json:"title"`
	Price *listing.Money  `json:"price,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// Bridge is a long-lived local WebSocket connection to a companion
// browser extension: a single dial-on-demand connection, since the
// bridge server runs locally rather than over the public internet.
type Bridge struct {
	mu       sync.Mutex
	endpoint string
	conn     *websocket.Conn
}

// NewBridge targets a local companion-extension WebSocket endpoint, e.g.
// "ws://127.0.0.1:9222/bridge".
func NewBridge(endpoint string) *Bridge {
	return &Bridge{endpoint: endpoint}
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return b.conn, nil
	}
	if _, err := url.Parse(b.endpoint); err != nil {
		return nil, fmt.Errorf("browser_extension: invalid bridge endpoint: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("browser_extension: dial bridge: %w", err)
	}
	b.conn = conn
	return conn, nil
}

// RequestCapture asks the connected extension to capture the given page
// URL and waits for the resulting payload.
func (b *Bridge) RequestCapture(ctx context.Context, pageURL string) (*CapturedPayload, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(map[string]string{"action": "capture", "url": pageURL}); err != nil {
		b.reset()
		return nil, fmt.Errorf("browser_extension: send capture request: %w", err)
	}

	var payload CapturedPayload
	if err := conn.ReadJSON(&payload); err != nil {
		b.reset()
		return nil, fmt.Errorf("browser_extension: read capture response: %w", err)
	}
	return &payload, nil
}

func (b *Bridge) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Connected reports whether a bridge connection is currently established.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// BrowserExtensionAdapter is the tier-2 "browser_extension" channel
// adapter: captures listing data via a locally bridged browser extension
// rather than fetching the page itself.
type BrowserExtensionAdapter struct {
	Base
	bridge *Bridge
}

// NewBrowserExtensionAdapter wires a bridge behind the adapter contract.
func NewBrowserExtensionAdapter(marketplace listing.Marketplace, name, version string, bridge *Bridge) *BrowserExtensionAdapter {
	return &BrowserExtensionAdapter{
		Base:   NewBase(listing.ChannelBrowserExtension, marketplace, name, version, true),
		bridge: bridge,
	}
}

func (a *BrowserExtensionAdapter) CanHandle(identifier string) bool {
	_, err := url.ParseRequestURI(identifier)
	return err == nil
}

func (a *BrowserExtensionAdapter) IsAvailable(ctx context.Context) bool {
	return a.bridge != nil
}

func (a *BrowserExtensionAdapter) ExtractWithProvenance(ctx context.Context, content []byte, identifier string, opts adapter.ExtractOptions) (*listing.WithProvenance, error) {
	payload, err := a.bridge.RequestCapture(ctx, identifier)
	if err != nil {
		a.RecordAttempt(false)
		return nil, err
	}
	if payload == nil || payload.Title == "" {
		a.RecordAttempt(true)
		return nil, nil
	}

	l := &listing.Listing{
		ID:               identifier,
		Marketplace:      a.MarketplaceID(),
		URL:              identifier,
		Title:            payload.Title,
		Price:            payload.Price,
		Condition:        listing.ConditionUnknown,
		Availability:     listing.AvailabilityUnknown,
		ExtractedAt:      time.Now(),
		ExtractionMethod: string(listing.ChannelBrowserExtension),
		ExtractorVersion: a.Version(),
	}

	rng := a.ConfidenceRange()
	l.Confidence = rng.Max

	hash := sha256.Sum256(payload.Raw)
	prov := a.NewProvenance(l.Confidence, listing.FreshnessRealtime, true, true, hex.EncodeToString(hash[:]))

	a.RecordAttempt(true)
	return &listing.WithProvenance{Listing: l, Provenance: prov}, nil
}

func (a *BrowserExtensionAdapter) Validate(l *listing.Listing) adapter.ValidationResult {
	return DefaultValidate(l)
}

func (a *BrowserExtensionAdapter) GetHealth() listing.HealthSnapshot {
	return a.BaseHealth(a.bridge != nil && a.bridge.Connected())
}
