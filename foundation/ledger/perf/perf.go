// Package perf aggregates the timing samples and memory snapshots collected
// while a simulation run executes.
package perf

import (
	"runtime"
	"time"
)

// Category identifies the kind of operation a timing sample measured.
type Category int

// The set of operation categories tracked during a run.
const (
	Encryption Category = iota
	Decryption
	StateTransition
	Multiplication
	Aggregation
	categories
)

// String returns the report name for the category.
func (c Category) String() string {
	switch c {
	case Encryption:
		return "encryption"
	case Decryption:
		return "decryption"
	case StateTransition:
		return "state_transition"
	case Multiplication:
		return "multiplication"
	case Aggregation:
		return "aggregation"
	}
	return "unknown"
}

// Categories returns every tracked category in report order.
func Categories() []Category {
	cats := make([]Category, categories)
	for i := range cats {
		cats[i] = Category(i)
	}
	return cats
}

// =============================================================================

// Tracker collects timing samples per category and brackets the run with
// heap snapshots. A tracker is owned by a single simulation run and is not
// safe for concurrent use.
type Tracker struct {
	samples [categories][]time.Duration
	current uint64
	peak    uint64
}

// New constructs a tracker and takes the opening heap snapshot.
func New() *Tracker {
	var t Tracker
	t.snapshot()
	return &t
}

// Record appends a timing sample for the category and refreshes the heap
// snapshot so the peak reflects mid-run allocation.
func (t *Tracker) Record(c Category, d time.Duration) {
	t.samples[c] = append(t.samples[c], d)
	t.snapshot()
}

// Samples returns the recorded samples for the category.
func (t *Tracker) Samples(c Category) []time.Duration {
	return t.samples[c]
}

// Average returns the arithmetic mean of the category's samples. A category
// with no samples averages to 0.
func (t *Tracker) Average(c Category) time.Duration {
	samples := t.samples[c]
	if len(samples) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return sum / time.Duration(len(samples))
}

// Memory returns the final heap snapshot pair: bytes currently allocated
// and the peak observed across all snapshots taken during the run.
func (t *Tracker) Memory() (current uint64, peak uint64) {
	t.snapshot()
	return t.current, t.peak
}

// snapshot reads the heap size and tracks the high-water mark.
func (t *Tracker) snapshot() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	t.current = ms.HeapAlloc
	if ms.HeapAlloc > t.peak {
		t.peak = ms.HeapAlloc
	}
}
