package state

import (
	"time"

	"github.com/cipherledger/cipherledger/foundation/ledger/noise"
	"github.com/cipherledger/cipherledger/foundation/ledger/perf"
	"github.com/cipherledger/cipherledger/foundation/ledger/stats"
)

// PartyResult bundles the final decrypted balance and the noise bookkeeping
// for one party. FinalBalance is nil when the decryption failed.
type PartyResult struct {
	Party        int           `json:"party"`
	FinalBalance *float64      `json:"final_balance"`
	NoiseLevels  []float64     `json:"noise_levels"`
	NoiseSummary noise.Summary `json:"noise_summary"`
}

// Performance bundles the per-category timing samples, their means and the
// memory snapshot pair for a run. Durations are reported in seconds.
type Performance struct {
	Samples            map[string][]float64 `json:"samples"`
	Averages           map[string]float64   `json:"averages"`
	MemoryCurrentBytes uint64               `json:"memory_current_bytes"`
	MemoryPeakBytes    uint64               `json:"memory_peak_bytes"`
}

// Result is the immutable record produced by one simulation run.
type Result struct {
	RunID            string                 `json:"run_id"`
	StartedAt        time.Time              `json:"started_at"`
	CompletedAt      time.Time              `json:"completed_at"`
	BlocksProcessed  int                    `json:"blocks_processed"`
	Parties          []PartyResult          `json:"parties"`
	AggregateBalance *float64               `json:"aggregate_balance"`
	TotalGasCost     uint64                 `json:"total_gas_cost"`
	TransactionCount int                    `json:"transaction_count"`
	TransactionStats stats.TransactionStats `json:"transaction_stats"`
	BlockStats       stats.BlockStats       `json:"block_stats"`
	GasCosts         stats.GasCosts         `json:"gas_costs"`
	Performance      Performance            `json:"performance"`
}

// newPerformance reduces a tracker to the reportable bundle.
func newPerformance(tracker *perf.Tracker) Performance {
	samples := make(map[string][]float64)
	averages := make(map[string]float64)

	for _, cat := range perf.Categories() {
		seconds := make([]float64, 0, len(tracker.Samples(cat)))
		for _, d := range tracker.Samples(cat) {
			seconds = append(seconds, d.Seconds())
		}
		samples[cat.String()] = seconds
		averages[cat.String()] = tracker.Average(cat).Seconds()
	}

	current, peak := tracker.Memory()

	return Performance{
		Samples:            samples,
		Averages:           averages,
		MemoryCurrentBytes: current,
		MemoryPeakBytes:    peak,
	}
}
