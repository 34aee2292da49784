// Package registry owns the orchestrator's adapter table and fallback-chain
// overrides. It uses copy-on-write snapshots: writers build and swap in a
// whole new table under a mutex, and readers hold that mutex only long
// enough to take the current table and override map, then work on them
// unlocked.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
)

// Record is one registered adapter plus its lifecycle bookkeeping.
type Record struct {
	Adapter         adapter.Adapter
	Enabled         bool
	LastHealth      listing.HealthSnapshot
	LastHealthCheck time.Time
}

type marketTable map[listing.Marketplace]map[listing.Channel]*Record

// Registry is safe for concurrent use. Writers (RegisterAdapter,
// UnregisterAdapter, EnableAdapter, DisableAdapter, SetFallbackChain)
// build a new snapshot and swap it in; readers take a consistent snapshot
// under a brief lock and read it unlocked.
type Registry struct {
	mu        sync.Mutex // serializes writers and guards the snapshot read
	table     marketTable
	fallbacks map[listing.Marketplace][]listing.Channel
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		table:     marketTable{},
		fallbacks: map[listing.Marketplace][]listing.Channel{},
	}
}

func cloneTable(t marketTable) marketTable {
	out := make(marketTable, len(t))
	for m, byChannel := range t {
		inner := make(map[listing.Channel]*Record, len(byChannel))
		for c, r := range byChannel {
			inner[c] = r
		}
		out[m] = inner
	}
	return out
}

func cloneFallbacks(f map[listing.Marketplace][]listing.Channel) map[listing.Marketplace][]listing.Channel {
	out := make(map[listing.Marketplace][]listing.Channel, len(f))
	for m, chain := range f {
		out[m] = append([]listing.Channel(nil), chain...)
	}
	return out
}

// RegisterAdapter inserts or replaces the adapter for (marketplace,
// adapter.Channel()). A replacement is logged as a warning naming the old
// and new adapter versions.
func (r *Registry) RegisterAdapter(marketplace listing.Marketplace, a adapter.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := cloneTable(r.table)
	byChannel, ok := table[marketplace]
	if !ok {
		byChannel = map[listing.Channel]*Record{}
		table[marketplace] = byChannel
	} else {
		byChannel = cloneInner(byChannel)
		table[marketplace] = byChannel
	}

	channel := a.Channel()
	if old, exists := byChannel[channel]; exists {
		log.Warn().
			Str("marketplace", string(marketplace)).
			Str("channel", string(channel)).
			Str("old_version", old.Adapter.Version()).
			Str("new_version", a.Version()).
			Msg("replacing registered adapter")
	}

	byChannel[channel] = &Record{Adapter: a, Enabled: true}
	r.table = table
}

func cloneInner(in map[listing.Channel]*Record) map[listing.Channel]*Record {
	out := make(map[listing.Channel]*Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// UnregisterAdapter removes the adapter registered for (marketplace, channel).
func (r *Registry) UnregisterAdapter(marketplace listing.Marketplace, channel listing.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byChannel, ok := r.table[marketplace]
	if !ok {
		return
	}
	if _, exists := byChannel[channel]; !exists {
		return
	}

	table := cloneTable(r.table)
	inner := cloneInner(table[marketplace])
	delete(inner, channel)
	table[marketplace] = inner
	r.table = table
}

// setEnabled flips the enabled flag for (marketplace, channel) without
// removing the adapter.
func (r *Registry) setEnabled(marketplace listing.Marketplace, channel listing.Channel, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byChannel, ok := r.table[marketplace]
	if !ok {
		return
	}
	rec, exists := byChannel[channel]
	if !exists {
		return
	}

	table := cloneTable(r.table)
	inner := cloneInner(table[marketplace])
	updated := *rec
	updated.Enabled = enabled
	inner[channel] = &updated
	table[marketplace] = inner
	r.table = table
}

// EnableAdapter flips the enabled flag on.
func (r *Registry) EnableAdapter(marketplace listing.Marketplace, channel listing.Channel) {
	r.setEnabled(marketplace, channel, true)
}

// DisableAdapter flips the enabled flag off. Disabled adapters are treated
// as unavailable by the orchestrator.
func (r *Registry) DisableAdapter(marketplace listing.Marketplace, channel listing.Channel) {
	r.setEnabled(marketplace, channel, false)
}

// SetFallbackChain sets an explicit ordered channel sequence override for a
// marketplace.
func (r *Registry) SetFallbackChain(marketplace listing.Marketplace, chain []listing.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fallbacks := cloneFallbacks(r.fallbacks)
	fallbacks[marketplace] = append([]listing.Channel(nil), chain...)
	r.fallbacks = fallbacks
}

// snapshot is an unlocked, point-in-time read of the table plus overrides.
// Readers take this once and operate on it without holding any lock.
type snapshot struct {
	table     marketTable
	fallbacks map[listing.Marketplace][]listing.Channel
}

func (r *Registry) snapshot() snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot{table: r.table, fallbacks: r.fallbacks}
}

// AvailableAdapter describes one entry in the registry for reporting
// purposes.
type AvailableAdapter struct {
	Channel   listing.Channel
	Tier      int
	Available bool
}

// GetAvailableAdapters lists every registered adapter for a marketplace,
// reporting disabled adapters as unavailable.
func (r *Registry) GetAvailableAdapters(marketplace listing.Marketplace) []AvailableAdapter {
	snap := r.snapshot()
	byChannel := snap.table[marketplace]
	out := make([]AvailableAdapter, 0, len(byChannel))
	for channel, rec := range byChannel {
		out = append(out, AvailableAdapter{
			Channel:   channel,
			Tier:      rec.Adapter.Tier(),
			Available: rec.Enabled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// GetFallbackChain resolves the fallback chain for a marketplace: an
// explicit override filtered to registered+enabled adapters in exact
// order, or else the default ordering (tier ascending, then estimated
// reliability descending).
func (r *Registry) GetFallbackChain(marketplace listing.Marketplace) []listing.Channel {
	snap := r.snapshot()
	byChannel := snap.table[marketplace]

	if override, ok := snap.fallbacks[marketplace]; ok {
		out := make([]listing.Channel, 0, len(override))
		for _, channel := range override {
			rec, exists := byChannel[channel]
			if exists && rec.Enabled {
				out = append(out, channel)
			}
		}
		return out
	}

	type entry struct {
		channel     listing.Channel
		tier        int
		reliability float64
	}
	entries := make([]entry, 0, len(byChannel))
	for channel, rec := range byChannel {
		if !rec.Enabled {
			continue
		}
		entries = append(entries, entry{
			channel:     channel,
			tier:        rec.Adapter.Tier(),
			reliability: reliabilityOf(rec),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].tier != entries[j].tier {
			return entries[i].tier < entries[j].tier
		}
		return entries[i].reliability > entries[j].reliability
	})

	out := make([]listing.Channel, len(entries))
	for i, e := range entries {
		out[i] = e.channel
	}
	return out
}

func reliabilityOf(rec *Record) float64 {
	if rec.LastHealthCheck.IsZero() {
		return rec.Adapter.ConfidenceRange().Max
	}
	return rec.LastHealth.EstimatedReliability
}

// ResolveOptions narrows the fallback chain by the request-time filters:
// preferred tiers plus include/exclude channel lists.
type ResolveOptions struct {
	PreferredTiers  []int
	IncludeChannels []listing.Channel
	ExcludeChannels []listing.Channel
}

// ResolveAdapters returns the ordered, filtered adapter list for one
// request: fallback chain resolution followed by tier/include/exclude
// filtering, with each channel resolved to its registered adapter.
func (r *Registry) ResolveAdapters(marketplace listing.Marketplace, opts ResolveOptions) []adapter.Adapter {
	snap := r.snapshot()
	byChannel := snap.table[marketplace]

	chain := r.GetFallbackChain(marketplace)

	excluded := toSet(opts.ExcludeChannels)
	var included map[listing.Channel]struct{}
	if len(opts.IncludeChannels) > 0 {
		included = toSet(opts.IncludeChannels)
	}
	var tiers map[int]struct{}
	if len(opts.PreferredTiers) > 0 {
		tiers = map[int]struct{}{}
		for _, t := range opts.PreferredTiers {
			tiers[t] = struct{}{}
		}
	}

	out := make([]adapter.Adapter, 0, len(chain))
	for _, channel := range chain {
		rec, exists := byChannel[channel]
		if !exists || !rec.Enabled {
			continue
		}
		if _, bad := excluded[channel]; bad {
			continue
		}
		if included != nil {
			if _, ok := included[channel]; !ok {
				continue
			}
		}
		if tiers != nil {
			if _, ok := tiers[rec.Adapter.Tier()]; !ok {
				continue
			}
		}
		out = append(out, rec.Adapter)
	}
	return out
}

func toSet(channels []listing.Channel) map[listing.Channel]struct{} {
	out := make(map[listing.Channel]struct{}, len(channels))
	for _, c := range channels {
		out[c] = struct{}{}
	}
	return out
}

// CacheHealth stores the latest health snapshot for (marketplace, channel)
// as a side effect of GetHealthReport.
func (r *Registry) CacheHealth(marketplace listing.Marketplace, channel listing.Channel, snap listing.HealthSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byChannel, ok := r.table[marketplace]
	if !ok {
		return
	}
	rec, exists := byChannel[channel]
	if !exists {
		return
	}

	table := cloneTable(r.table)
	inner := cloneInner(table[marketplace])
	updated := *rec
	updated.LastHealth = snap
	updated.LastHealthCheck = time.Now()
	inner[channel] = &updated
	table[marketplace] = inner
	r.table = table
}

// AllRegistered returns every (marketplace, channel, adapter) triple,
// for use by GetHealthReport.
func (r *Registry) AllRegistered() map[listing.Marketplace]map[listing.Channel]adapter.Adapter {
	snap := r.snapshot()
	out := make(map[listing.Marketplace]map[listing.Channel]adapter.Adapter, len(snap.table))
	for m, byChannel := range snap.table {
		inner := make(map[listing.Channel]adapter.Adapter, len(byChannel))
		for c, rec := range byChannel {
			inner[c] = rec.Adapter
		}
		out[m] = inner
	}
	return out
}
