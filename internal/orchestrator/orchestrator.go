// Package orchestrator implements the multi-channel data-source
// orchestrator: single-source-with-fallback (GetData) and concurrent
// multi-source gather-and-merge (GetFromAllSources).
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/listingfeed/internal/adapter"
	"github.com/sawpanic/listingfeed/internal/listing"
	"github.com/sawpanic/listingfeed/internal/merge"
	"github.com/sawpanic/listingfeed/internal/metrics"
	"github.com/sawpanic/listingfeed/internal/registry"
)

// Attempt is one entry in an operation's audit trail.
type Attempt struct {
	Channel  listing.Channel `json:"channel"`
	Tier     int             `json:"tier"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Options are the per-request policy knobs recognized by GetData and
// GetFromAllSources.
type Options struct {
	PreferredTiers     []int
	RequiredConfidence float64
	AllowFallback      bool
	Timeout            time.Duration
	IncludeChannels    []listing.Channel
	ExcludeChannels    []listing.Channel
}

// DefaultOptions returns the orchestrator's documented default policy.
func DefaultOptions() Options {
	return Options{
		PreferredTiers:     []int{1, 2, 3, 4},
		RequiredConfidence: 0.5,
		AllowFallback:      true,
		Timeout:            30 * time.Second,
	}
}

func (o Options) resolveOptions() registry.ResolveOptions {
	return registry.ResolveOptions{
		PreferredTiers:  o.PreferredTiers,
		IncludeChannels: o.IncludeChannels,
		ExcludeChannels: o.ExcludeChannels,
	}
}

func withDefaults(o Options) Options {
	if o.RequiredConfidence == 0 {
		o.RequiredConfidence = 0.5
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Result is the return value of GetData.
type Result struct {
	Data             *listing.WithProvenance `json:"data"`
	AttemptedSources []Attempt               `json:"attemptedSources"`
	FallbackUsed     bool                    `json:"fallbackUsed"`
	TotalDuration    time.Duration           `json:"totalDuration"`
}

// MultiSourceResult is the return value of GetFromAllSources.
type MultiSourceResult struct {
	MergedData *listing.WithProvenance `json:"mergedData"`
	Sources    []listing.Provenance    `json:"sources"`
	Conflicts  []listing.ConflictEntry `json:"conflicts"`
}

// Orchestrator is the process-local coordinator tying a Registry to the
// getData/getFromAllSources algorithms. It owns a Registry; adapters own
// their own health trackers.
type Orchestrator struct {
	registry *registry.Registry
	metrics  *metrics.Collectors
}

// New builds an orchestrator around a fresh, empty registry.
func New() *Orchestrator {
	return &Orchestrator{registry: registry.New()}
}

// Registry exposes the underlying registry for lifecycle operations:
// RegisterAdapter, UnregisterAdapter, SetFallbackChain, EnableAdapter,
// DisableAdapter, GetAvailableAdapters.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// SetMetrics wires a Prometheus collector set; every subsequent GetData,
// GetFromAllSources, and GetHealthReport call reports through it. A nil
// collector set (the default) makes every reporting call a no-op.
func (o *Orchestrator) SetMetrics(c *metrics.Collectors) {
	o.metrics = c
}

func (o *Orchestrator) recordAttempt(marketplace listing.Marketplace, channel listing.Channel, success bool) {
	if o.metrics == nil {
		return
	}
	o.metrics.Attempts.WithLabelValues(string(marketplace), string(channel), strconv.FormatBool(success)).Inc()
}

func (o *Orchestrator) recordFallbackUsed() {
	if o.metrics == nil {
		return
	}
	o.metrics.FallbacksUsed.Inc()
}

func (o *Orchestrator) recordConflicts(conflicts []listing.ConflictEntry) {
	if o.metrics == nil {
		return
	}
	for _, c := range conflicts {
		o.metrics.ConflictsResolved.WithLabelValues(c.Field).Inc()
	}
}

func (o *Orchestrator) recordReliability(marketplace listing.Marketplace, channel listing.Channel, snap listing.HealthSnapshot) {
	if o.metrics == nil {
		return
	}
	o.metrics.EstimatedReliability.WithLabelValues(string(marketplace), string(channel)).Set(snap.EstimatedReliability)
}

// GetData implements the single-source-with-fallback algorithm: it walks
// the resolved adapter chain in order and returns the first acceptable
// result, recording every attempt along the way.
func (o *Orchestrator) GetData(ctx context.Context, marketplace listing.Marketplace, identifier string, opts Options) Result {
	start := time.Now()
	opts = withDefaults(opts)

	adapters := o.registry.ResolveAdapters(marketplace, opts.resolveOptions())
	if len(adapters) == 0 {
		return Result{AttemptedSources: []Attempt{}, TotalDuration: time.Since(start)}
	}

	firstTier := adapters[0].Tier()
	attempts := make([]Attempt, 0, len(adapters))
	fallbackUsed := false

	for _, a := range adapters {
		elapsed := time.Since(start)
		if elapsed >= opts.Timeout {
			break
		}

		if a.Tier() > firstTier {
			fallbackUsed = true
		}

		attemptStart := time.Now()

		if !a.IsAvailable(ctx) {
			attempts = append(attempts, Attempt{
				Channel: a.Channel(), Tier: a.Tier(), Success: false,
				Error: "Adapter not available", Duration: time.Since(attemptStart),
			})
			o.recordAttempt(marketplace, a.Channel(), false)
			if !opts.AllowFallback {
				break
			}
			continue
		}

		remaining := opts.Timeout - elapsed
		deadline := remaining
		if deadline < time.Second {
			deadline = time.Second
		}
		attemptCtx, cancel := context.WithTimeout(ctx, deadline)
		result, err := a.ExtractWithProvenance(attemptCtx, nil, identifier, adapter.ExtractOptions{
			DeadlineMillis: time.Now().Add(deadline).UnixMilli(),
		})
		cancel()

		duration := time.Since(attemptStart)

		if err != nil {
			log.Warn().Str("marketplace", string(marketplace)).Str("channel", string(a.Channel())).Err(err).Msg("adapter extraction failed")
			attempts = append(attempts, Attempt{Channel: a.Channel(), Tier: a.Tier(), Success: false, Error: err.Error(), Duration: duration})
			o.recordAttempt(marketplace, a.Channel(), false)
			if !opts.AllowFallback {
				break
			}
			continue
		}

		if result == nil {
			attempts = append(attempts, Attempt{Channel: a.Channel(), Tier: a.Tier(), Success: false, Error: "Extraction returned null", Duration: duration})
			o.recordAttempt(marketplace, a.Channel(), false)
			if !opts.AllowFallback {
				break
			}
			continue
		}

		if result.Provenance.Confidence < opts.RequiredConfidence {
			attempts = append(attempts, Attempt{
				Channel: a.Channel(), Tier: a.Tier(), Success: false,
				Error:    fmt.Sprintf("Confidence %.2f below threshold %.2f", result.Provenance.Confidence, opts.RequiredConfidence),
				Duration: duration,
			})
			o.recordAttempt(marketplace, a.Channel(), false)
			if !opts.AllowFallback {
				break
			}
			continue
		}

		attempts = append(attempts, Attempt{Channel: a.Channel(), Tier: a.Tier(), Success: true, Duration: duration})
		o.recordAttempt(marketplace, a.Channel(), true)
		if fallbackUsed {
			o.recordFallbackUsed()
		}
		return Result{Data: result, AttemptedSources: attempts, FallbackUsed: fallbackUsed, TotalDuration: time.Since(start)}
	}

	if fallbackUsed {
		o.recordFallbackUsed()
	}
	return Result{Data: nil, AttemptedSources: attempts, FallbackUsed: fallbackUsed, TotalDuration: time.Since(start)}
}

type sourceResult struct {
	provenance listing.Provenance
	listing    *listing.WithProvenance
}

// GetFromAllSources implements the concurrent multi-source gather and
// merge algorithm. Isolation is total: one adapter's error or panic never
// cancels its peers. Each goroutine writes only its own result slot; the
// orchestrator assembles the sequence after every goroutine returns.
func (o *Orchestrator) GetFromAllSources(ctx context.Context, marketplace listing.Marketplace, identifier string, opts Options) MultiSourceResult {
	opts = withDefaults(opts)
	adapters := o.registry.ResolveAdapters(marketplace, opts.resolveOptions())
	if len(adapters) == 0 {
		return MultiSourceResult{Sources: []listing.Provenance{}, Conflicts: []listing.ConflictEntry{}}
	}

	deadline := time.Now().Add(opts.Timeout)
	results := make([]*sourceResult, len(adapters))

	var wg sync.WaitGroup
	wg.Add(len(adapters))
	for i, a := range adapters {
		i, a := i, a
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Str("channel", string(a.Channel())).Interface("panic", rec).Msg("adapter panicked during multi-source gather")
				}
			}()

			if !a.IsAvailable(ctx) {
				o.recordAttempt(marketplace, a.Channel(), false)
				return
			}

			remaining := time.Until(deadline)
			if remaining < time.Second {
				remaining = time.Second
			}
			attemptCtx, cancel := context.WithTimeout(ctx, remaining)
			defer cancel()

			res, err := a.ExtractWithProvenance(attemptCtx, nil, identifier, adapter.ExtractOptions{
				DeadlineMillis: deadline.UnixMilli(),
			})
			if err != nil {
				log.Warn().Str("channel", string(a.Channel())).Err(err).Msg("adapter extraction failed during multi-source gather")
				o.recordAttempt(marketplace, a.Channel(), false)
				return
			}
			if res == nil {
				o.recordAttempt(marketplace, a.Channel(), false)
				return
			}
			o.recordAttempt(marketplace, a.Channel(), true)
			results[i] = &sourceResult{provenance: res.Provenance, listing: res}
		}()
	}
	wg.Wait()

	sources := make([]*sourceResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			sources = append(sources, r)
		}
	}
	if len(sources) == 0 {
		return MultiSourceResult{Sources: []listing.Provenance{}, Conflicts: []listing.ConflictEntry{}}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].provenance.Tier < sources[j].provenance.Tier
	})

	merged, conflicts := merge.Merge(toMergeInputs(sources))
	o.recordConflicts(conflicts)

	provenances := make([]listing.Provenance, len(sources))
	for i, s := range sources {
		provenances[i] = s.provenance
	}

	return MultiSourceResult{MergedData: merged, Sources: provenances, Conflicts: conflicts}
}

func toMergeInputs(sources []*sourceResult) []merge.Source {
	out := make([]merge.Source, len(sources))
	for i, s := range sources {
		out[i] = merge.Source{Provenance: s.provenance, Listing: s.listing.Listing}
	}
	return out
}

// GetHealthReport iterates every registered adapter, isolating GetHealth
// panics/failures into a synthetic unhealthy snapshot, and caches each
// snapshot on the registry record.
func (o *Orchestrator) GetHealthReport() map[listing.Marketplace]map[listing.Channel]listing.HealthSnapshot {
	all := o.registry.AllRegistered()
	out := make(map[listing.Marketplace]map[listing.Channel]listing.HealthSnapshot, len(all))

	for marketplace, byChannel := range all {
		inner := make(map[listing.Channel]listing.HealthSnapshot, len(byChannel))
		for channel, a := range byChannel {
			snap := safeGetHealth(a)
			inner[channel] = snap
			o.registry.CacheHealth(marketplace, channel, snap)
			o.recordReliability(marketplace, channel, snap)
		}
		out[marketplace] = inner
	}
	return out
}

func safeGetHealth(a adapter.Adapter) (snap listing.HealthSnapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			snap = listing.HealthSnapshot{
				Available:            false,
				RecentFailureRate:    1.0,
				EstimatedReliability: 0,
				StatusMessage:        fmt.Sprintf("Health check failed: %v", rec),
			}
		}
	}()
	return a.GetHealth()
}
