// Package health implements the bounded rolling-window event log each
// adapter uses to derive its health snapshot: mutex-guarded counters that
// a status string and reliability estimate can be derived from.
package health

import (
	"sync"
	"time"
)

const (
	// maxEvents bounds the rolling window to the last 100 events per adapter.
	maxEvents = 100
	// window is the maximum age of a retained event.
	window = time.Hour
)

type event struct {
	success   bool
	timestamp time.Time
}

// Tracker is a per-adapter, self-guarded event log. Each adapter owns one
// Tracker; the orchestrator never reaches into it directly.
type Tracker struct {
	mu     sync.Mutex
	events []event
	lastOK time.Time
	hasOK  bool
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends a success/failure event, evicting entries older than the
// one-hour window and capping the log at the last 100 events.
func (t *Tracker) Record(success bool) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, event{success: success, timestamp: now})
	t.evictLocked(now)

	if success {
		t.lastOK = now
		t.hasOK = true
	}
}

func (t *Tracker) evictLocked(now time.Time) {
	cutoff := now.Add(-window)
	start := 0
	for start < len(t.events) && t.events[start].timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		t.events = append([]event(nil), t.events[start:]...)
	}
	if over := len(t.events) - maxEvents; over > 0 {
		t.events = append([]event(nil), t.events[over:]...)
	}
}

// Stats is the raw material a concrete adapter's GetHealth uses to compute
// its estimatedReliability.
type Stats struct {
	Total                    int
	Failures                 int
	RecentFailureRate        float64
	LastSuccessfulExtraction *time.Time
}

// Snapshot returns the current window's stats without any adapter-specific
// interpretation; availability, reliability estimate, and status message
// are each adapter's own job to derive from these stats.
func (t *Tracker) Snapshot() Stats {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(now)

	total := len(t.events)
	failures := 0
	for _, e := range t.events {
		if !e.success {
			failures++
		}
	}

	var rate float64
	if total > 0 {
		rate = float64(failures) / float64(total)
	}

	var last *time.Time
	if t.hasOK {
		ts := t.lastOK
		last = &ts
	}

	return Stats{
		Total:                    total,
		Failures:                 failures,
		RecentFailureRate:        rate,
		LastSuccessfulExtraction: last,
	}
}
