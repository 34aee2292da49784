package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/listingfeed/internal/listing"
)

const testMarketplace = listing.MarketplaceEbay

func TestGetData_SingleSourceHit(t *testing.T) {
	orch := New()
	a := &fakeAdapter{
		channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping),
		name: "scraper", version: "v1", marketID: testMarketplace, available: true,
		result: newFakeListing(testMarketplace, "1", "X", listing.ChannelScraping, 0.8),
	}
	orch.Registry().RegisterAdapter(testMarketplace, a)

	result := orch.GetData(context.Background(), testMarketplace, "https://ebay.com/itm/1", DefaultOptions())

	require.NotNil(t, result.Data)
	assert.Equal(t, "X", result.Data.Listing.Title)
	assert.False(t, result.FallbackUsed)
	require.Len(t, result.AttemptedSources, 1)
	assert.True(t, result.AttemptedSources[0].Success)
}

func TestGetData_Tier1FailureTier3Fallback(t *testing.T) {
	orch := New()
	tier1 := &fakeAdapter{
		channel: listing.ChannelOfficialAPI, tier: 1, rng: listing.DefaultConfidenceRange(listing.ChannelOfficialAPI),
		name: "official", version: "v1", marketID: testMarketplace, available: true,
		err: assert.AnError,
	}
	tier3 := &fakeAdapter{
		channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping),
		name: "scraper", version: "v1", marketID: testMarketplace, available: true,
		result: newFakeListing(testMarketplace, "1", "Fallback", listing.ChannelScraping, 0.8),
	}
	orch.Registry().RegisterAdapter(testMarketplace, tier1)
	orch.Registry().RegisterAdapter(testMarketplace, tier3)

	result := orch.GetData(context.Background(), testMarketplace, "u", DefaultOptions())

	require.NotNil(t, result.Data)
	assert.Equal(t, "Fallback", result.Data.Listing.Title)
	assert.True(t, result.FallbackUsed)
	require.Len(t, result.AttemptedSources, 2)
	assert.False(t, result.AttemptedSources[0].Success)
	assert.True(t, result.AttemptedSources[1].Success)
}

func TestGetData_ConfidenceFloor(t *testing.T) {
	orch := New()
	tier3 := &fakeAdapter{
		channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping),
		name: "scraper", version: "v1", marketID: testMarketplace, available: true,
		result: newFakeListing(testMarketplace, "1", "Low", listing.ChannelScraping, 0.4),
	}
	tier2 := &fakeAdapter{
		channel: listing.ChannelDataExport, tier: 2, rng: listing.DefaultConfidenceRange(listing.ChannelDataExport),
		name: "export", version: "v1", marketID: testMarketplace, available: true,
		result: newFakeListing(testMarketplace, "2", "High", listing.ChannelDataExport, 0.9),
	}
	orch.Registry().RegisterAdapter(testMarketplace, tier3)
	orch.Registry().RegisterAdapter(testMarketplace, tier2)
	// The default chain would try tier 2 first; pin tier 3 ahead of it so
	// its low-confidence result is recorded as a failed attempt.
	orch.Registry().SetFallbackChain(testMarketplace, []listing.Channel{listing.ChannelScraping, listing.ChannelDataExport})

	opts := DefaultOptions()
	opts.RequiredConfidence = 0.8
	result := orch.GetData(context.Background(), testMarketplace, "u", opts)

	require.NotNil(t, result.Data)
	assert.Equal(t, 0.9, result.Data.Provenance.Confidence)
	require.Len(t, result.AttemptedSources, 2)
	assert.False(t, result.AttemptedSources[0].Success)
	assert.True(t, result.AttemptedSources[1].Success)
}

func TestGetData_AllFail(t *testing.T) {
	orch := New()
	a := &fakeAdapter{
		channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping),
		name: "scraper", version: "v1", marketID: testMarketplace, available: true,
		err: assert.AnError,
	}
	orch.Registry().RegisterAdapter(testMarketplace, a)

	result := orch.GetData(context.Background(), testMarketplace, "u", DefaultOptions())

	assert.Nil(t, result.Data)
	require.Len(t, result.AttemptedSources, 1)
	assert.False(t, result.AttemptedSources[0].Success)
}

func TestGetData_DisabledAdapterExcluded(t *testing.T) {
	orch := New()
	a := &fakeAdapter{
		channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping),
		name: "scraper", version: "v1", marketID: testMarketplace, available: true,
		result: newFakeListing(testMarketplace, "1", "X", listing.ChannelScraping, 0.8),
	}
	orch.Registry().RegisterAdapter(testMarketplace, a)
	orch.Registry().DisableAdapter(testMarketplace, listing.ChannelScraping)

	result := orch.GetData(context.Background(), testMarketplace, "u", DefaultOptions())

	assert.Nil(t, result.Data)
	assert.Empty(t, result.AttemptedSources)

	avail := orch.Registry().GetAvailableAdapters(testMarketplace)
	require.Len(t, avail, 1)
	assert.False(t, avail[0].Available)
}

func TestGetFromAllSources_MultiSourceConflict(t *testing.T) {
	orch := New()
	primary := newFakeListing(testMarketplace, "1", "A", listing.ChannelOfficialAPI, 0.9)
	primary.Listing.Price = &listing.Money{Amount: 100, Currency: "USD"}
	secondary := newFakeListing(testMarketplace, "1", "B", listing.ChannelScraping, 0.8)
	secondary.Listing.Price = &listing.Money{Amount: 99, Currency: "USD"}

	tier1 := &fakeAdapter{channel: listing.ChannelOfficialAPI, tier: 1, rng: listing.DefaultConfidenceRange(listing.ChannelOfficialAPI), name: "official", version: "v1", marketID: testMarketplace, available: true, result: primary}
	tier3 := &fakeAdapter{channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping), name: "scraper", version: "v1", marketID: testMarketplace, available: true, result: secondary}
	orch.Registry().RegisterAdapter(testMarketplace, tier1)
	orch.Registry().RegisterAdapter(testMarketplace, tier3)

	result := orch.GetFromAllSources(context.Background(), testMarketplace, "u", DefaultOptions())

	require.NotNil(t, result.MergedData)
	assert.Equal(t, "A", result.MergedData.Listing.Title)
	require.NotNil(t, result.MergedData.Listing.Price)
	assert.Equal(t, 100.0, result.MergedData.Listing.Price.Amount)

	fields := map[string]bool{}
	for _, c := range result.Conflicts {
		fields[c.Field] = true
		assert.Equal(t, "highest_tier", c.ResolutionMethod)
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["price"])
}

func TestGetFromAllSources_AgreementBoost(t *testing.T) {
	orch := New()
	a := newFakeListing(testMarketplace, "1", "Same", listing.ChannelOfficialAPI, 0.85)
	a.Listing.Price = &listing.Money{Amount: 50, Currency: "USD"}
	b := newFakeListing(testMarketplace, "1", "Same", listing.ChannelScraping, 0.80)
	b.Listing.Price = &listing.Money{Amount: 50, Currency: "USD"}

	tier1 := &fakeAdapter{channel: listing.ChannelOfficialAPI, tier: 1, rng: listing.DefaultConfidenceRange(listing.ChannelOfficialAPI), name: "official", version: "v1", marketID: testMarketplace, available: true, result: a}
	tier3 := &fakeAdapter{channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping), name: "scraper", version: "v1", marketID: testMarketplace, available: true, result: b}
	orch.Registry().RegisterAdapter(testMarketplace, tier1)
	orch.Registry().RegisterAdapter(testMarketplace, tier3)

	result := orch.GetFromAllSources(context.Background(), testMarketplace, "u", DefaultOptions())

	require.NotNil(t, result.MergedData)
	assert.InDelta(t, 0.88, result.MergedData.Provenance.Confidence, 0.0001)
	assert.Len(t, result.Sources, 2)
	assert.Empty(t, result.Conflicts)
}

func TestGetFromAllSources_AllFail(t *testing.T) {
	orch := New()
	a := &fakeAdapter{channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping), name: "scraper", version: "v1", marketID: testMarketplace, available: true, err: assert.AnError}
	orch.Registry().RegisterAdapter(testMarketplace, a)

	result := orch.GetFromAllSources(context.Background(), testMarketplace, "u", DefaultOptions())

	assert.Nil(t, result.MergedData)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Conflicts)
}

func TestGetFromAllSources_IsolatesPanickingAdapter(t *testing.T) {
	orch := New()
	panicky := &fakeAdapter{channel: listing.ChannelLLMExtraction, tier: 4, rng: listing.DefaultConfidenceRange(listing.ChannelLLMExtraction), name: "llm", version: "v1", marketID: testMarketplace, available: true, panics: true}
	fine := &fakeAdapter{channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping), name: "scraper", version: "v1", marketID: testMarketplace, available: true, result: newFakeListing(testMarketplace, "1", "Fine", listing.ChannelScraping, 0.8)}
	orch.Registry().RegisterAdapter(testMarketplace, panicky)
	orch.Registry().RegisterAdapter(testMarketplace, fine)

	result := orch.GetFromAllSources(context.Background(), testMarketplace, "u", DefaultOptions())

	require.NotNil(t, result.MergedData)
	assert.Equal(t, "Fine", result.MergedData.Listing.Title)
}

func TestGetHealthReport_IsolatesFailingAdapter(t *testing.T) {
	orch := New()
	healthy := &fakeAdapter{channel: listing.ChannelScraping, tier: 3, rng: listing.DefaultConfidenceRange(listing.ChannelScraping), name: "scraper", version: "v1", marketID: testMarketplace, available: true}
	orch.Registry().RegisterAdapter(testMarketplace, healthy)
	orch.Registry().RegisterAdapter(testMarketplace, &panickingHealthAdapter{fakeAdapter: fakeAdapter{channel: listing.ChannelLLMExtraction, tier: 4, rng: listing.DefaultConfidenceRange(listing.ChannelLLMExtraction), name: "llm", version: "v1", marketID: testMarketplace}})

	report := orch.GetHealthReport()

	byChannel := report[testMarketplace]
	require.Len(t, byChannel, 2)
	assert.True(t, byChannel[listing.ChannelScraping].Available)
	assert.False(t, byChannel[listing.ChannelLLMExtraction].Available)
	assert.Contains(t, byChannel[listing.ChannelLLMExtraction].StatusMessage, "Health check failed")
}

// panickingHealthAdapter overrides GetHealth to panic, leaving every other
// method delegated to the embedded fakeAdapter.
type panickingHealthAdapter struct {
	fakeAdapter
}

func (p *panickingHealthAdapter) GetHealth() listing.HealthSnapshot {
	panic("health check exploded")
}
