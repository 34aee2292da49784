package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// FileReader reads the raw bytes of a CSV export given its identifier
// (a local path or an opaque storage key). The orchestrator calls
// ExtractWithProvenance with nil content when it has no bytes in hand;
// DataExportAdapter falls back to this seam rather than erroring out.
type FileReader interface {
	Read(ctx context.Context, identifier string) ([]byte, error)
}

// CSVColumnMap names the columns a user-uploaded CSV export is expected to
// carry. Heuristic column detection (matching header variants, locale
// quirks) is intentionally left thin here; a real implementation would
// sniff headers instead of requiring an exact map.
type CSVColumnMap struct {
	ID, Title, Price, Currency, Condition, Availability, URL string
}

// DefaultCSVColumnMap is the conventional export header layout.
func DefaultCSVColumnMap() CSVColumnMap {
	return CSVColumnMap{
		ID: "item_id", Title: "title", Price: "price", Currency: "currency",
		Condition: "condition", Availability: "availability", URL: "url",
	}
}

// DataExportAdapter is the tier-2 "data_export" channel adapter: parses a
// user-uploaded CSV export of marketplace listings.
type DataExportAdapter struct {
	Base
	columns CSVColumnMap
	reader  FileReader
}

// NewDataExportAdapter builds a CSV-export adapter. reader may be nil, in
// which case the adapter only accepts content supplied directly by the
// caller.
func NewDataExportAdapter(marketplace listing.Marketplace, name, version string, columns CSVColumnMap, reader FileReader) *DataExportAdapter {
	return &DataExportAdapter{
		Base:    NewBase(listing.ChannelDataExport, marketplace, name, version, true),
		columns: columns,
		reader:  reader,
	}
}

func (a *DataExportAdapter) CanHandle(identifier string) bool {
	return strings.HasSuffix(strings.ToLower(identifier), ".csv")
}

func (a *DataExportAdapter) IsAvailable(ctx context.Context) bool { return true }

func (a *DataExportAdapter) ExtractWithProvenance(ctx context.Context, content []byte, identifier string, opts adapter.ExtractOptions) (*listing.WithProvenance, error) {
	if len(content) == 0 {
		if a.reader == nil {
			a.RecordAttempt(false)
			return nil, fmt.Errorf("data_export: empty content for %s", identifier)
		}
		read, rerr := a.reader.Read(ctx, identifier)
		if rerr != nil {
			a.RecordAttempt(false)
			return nil, fmt.Errorf("data_export: read %s: %w", identifier, rerr)
		}
		content = read
	}
	if len(content) == 0 {
		a.RecordAttempt(false)
		return nil, fmt.Errorf("data_export: empty content for %s", identifier)
	}

	reader := csv.NewReader(strings.NewReader(string(content)))
	rows, err := reader.ReadAll()
	if err != nil {
		a.RecordAttempt(false)
		return nil, fmt.Errorf("data_export: parse %s: %w", identifier, err)
	}
	if len(rows) < 2 {
		a.RecordAttempt(true)
		return nil, nil
	}

	header := rows[0]
	idx := indexOf(header)
	row := rows[1]

	l := &listing.Listing{
		ID:          idx.get(row, a.columns.ID),
		Marketplace: a.MarketplaceID(),
		URL:         idx.get(row, a.columns.URL),
		Title:       idx.get(row, a.columns.Title),
		Condition:   listing.Condition(orUnknown(idx.get(row, a.columns.Condition))),
		Availability: listing.Availability(orUnknown(idx.get(row, a.columns.Availability))),
		ExtractedAt: time.Now(),
		ExtractionMethod: string(listing.ChannelDataExport),
		ExtractorVersion: a.Version(),
	}
	if l.ID == "" || l.Title == "" {
		a.RecordAttempt(true)
		return nil, nil
	}

	if raw := idx.get(row, a.columns.Price); raw != "" {
		if amount, perr := strconv.ParseFloat(raw, 64); perr == nil {
			currency := idx.get(row, a.columns.Currency)
			if currency == "" {
				currency = "USD"
			}
			l.Price = &listing.Money{Amount: amount, Currency: currency}
		}
	}

	rng := a.ConfidenceRange()
	l.Confidence = rng.Max

	hash := sha256.Sum256(content)
	prov := a.NewProvenance(l.Confidence, listing.FreshnessHistorical, true, true, hex.EncodeToString(hash[:]))

	a.RecordAttempt(true)
	return &listing.WithProvenance{Listing: l, Provenance: prov}, nil
}

func (a *DataExportAdapter) Validate(l *listing.Listing) adapter.ValidationResult {
	return DefaultValidate(l)
}

func (a *DataExportAdapter) GetHealth() listing.HealthSnapshot {
	return a.BaseHealth(true)
}

// LocalFileReader is a FileReader that reads the identifier as a path on
// local disk.
type LocalFileReader struct{}

func (LocalFileReader) Read(ctx context.Context, identifier string) ([]byte, error) {
	return os.ReadFile(identifier)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

type columnIndex map[string]int

func indexOf(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func (idx columnIndex) get(row []string, column string) string {
	i, ok := idx[strings.ToLower(column)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
