package listing

import "time"

// Channel identifies the mechanism by which a listing was obtained.
type Channel string

const (
	ChannelOfficialAPI      Channel = "official_api"
	ChannelFinancialAPI     Channel = "financial_api"
	ChannelBrowserExtension Channel = "browser_extension"
	ChannelDataExport       Channel = "data_export"
	ChannelEmailParsing     Channel = "email_parsing"
	ChannelCookieImport     Channel = "cookie_import"
	ChannelScraping         Channel = "scraping"
	ChannelOCRExtraction    Channel = "ocr_extraction"
	ChannelLLMExtraction    Channel = "llm_extraction"
)

// AllChannels lists the closed set of channel values in no particular order.
var AllChannels = []Channel{
	ChannelOfficialAPI, ChannelFinancialAPI, ChannelBrowserExtension,
	ChannelDataExport, ChannelEmailParsing, ChannelCookieImport,
	ChannelScraping, ChannelOCRExtraction, ChannelLLMExtraction,
}

// Valid reports whether c is a recognized channel.
func (c Channel) Valid() bool {
	for _, v := range AllChannels {
		if v == c {
			return true
		}
	}
	return false
}

// Freshness classifies how recent the underlying data is.
type Freshness string

const (
	FreshnessRealtime   Freshness = "realtime"
	FreshnessRecent     Freshness = "recent"
	FreshnessHistorical Freshness = "historical"
)

// TierRange is the default confidence band a channel's tier implies.
type TierRange struct {
	Min float64
	Max float64
}

// channelTiers is the fixed, compile-time channel->tier table. It must
// never be mutated at runtime.
var channelTiers = map[Channel]struct {
	Tier  int
	Range TierRange
}{
	ChannelOfficialAPI:      {1, TierRange{0.90, 1.00}},
	ChannelFinancialAPI:     {1, TierRange{0.90, 1.00}},
	ChannelBrowserExtension: {2, TierRange{0.80, 0.95}},
	ChannelDataExport:       {2, TierRange{0.80, 0.95}},
	ChannelEmailParsing:     {2, TierRange{0.80, 0.95}},
	ChannelCookieImport:     {2, TierRange{0.80, 0.95}},
	ChannelScraping:         {3, TierRange{0.70, 0.85}},
	ChannelOCRExtraction:    {4, TierRange{0.55, 0.80}},
	ChannelLLMExtraction:    {4, TierRange{0.55, 0.80}},
}

// TierOf returns the compile-time tier for a channel, or 0 if unknown.
func TierOf(c Channel) int {
	return channelTiers[c].Tier
}

// DefaultConfidenceRange returns the compile-time confidence band for a channel.
func DefaultConfidenceRange(c Channel) TierRange {
	return channelTiers[c].Range
}

// Provenance is the audit record attached to every extraction the
// orchestrator emits.
type Provenance struct {
	Channel        Channel                `json:"channel"`
	Tier           int                    `json:"tier"`
	Confidence     float64                `json:"confidence"`
	Freshness      Freshness              `json:"freshness"`
	SourceID       string                 `json:"sourceId"`
	ExtractedAt    time.Time              `json:"extractedAt"`
	RawDataHash    string                 `json:"rawDataHash,omitempty"`
	UserConsented  bool                   `json:"userConsented"`
	TermsCompliant bool                   `json:"termsCompliant"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ConflictEntry records a single field-level disagreement between sources,
// resolved by lowest-tier precedence.
type ConflictEntry struct {
	Field            string       `json:"field"`
	Values           []FieldValue `json:"values"`
	ResolutionMethod string       `json:"resolutionMethod"`
	ResolvedValue    interface{}  `json:"resolvedValue"`
}

// FieldValue pairs a disagreeing value with the provenance that produced it.
type FieldValue struct {
	Provenance Provenance  `json:"provenance"`
	Value      interface{} `json:"value"`
}

// WithProvenance bundles a normalized listing with its audit trail.
type WithProvenance struct {
	Listing           *Listing        `json:"listing"`
	Provenance        Provenance      `json:"provenance"`
	CorrelatedSources []Provenance    `json:"correlatedSources,omitempty"`
	ConflictingData   []ConflictEntry `json:"conflictingData,omitempty"`
}

// HealthSnapshot is the per-adapter health report.
type HealthSnapshot struct {
	Available                bool       `json:"available"`
	LastSuccessfulExtraction *time.Time `json:"lastSuccessfulExtraction,omitempty"`
	RecentFailureRate        float64    `json:"recentFailureRate"`
	EstimatedReliability     float64    `json:"estimatedReliability"`
	StatusMessage            string     `json:"statusMessage,omitempty"`
}
