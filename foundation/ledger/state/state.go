// Package state is the core API for the encrypted ledger simulation. It
// replays a window of real blocks through the secure-computation capability,
// advancing three encrypted party balances and a cross-party aggregate while
// the plaintext noise ledger tracks every homomorphic operation performed.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cipherledger/cipherledger/foundation/ledger/crypt"
	"github.com/cipherledger/cipherledger/foundation/ledger/fetcher"
	"github.com/cipherledger/cipherledger/foundation/ledger/noise"
	"github.com/cipherledger/cipherledger/foundation/ledger/perf"
	"github.com/cipherledger/cipherledger/foundation/ledger/stats"
	"github.com/google/uuid"
)

// party holds the fixed plaintext parameters for one encrypted balance track.
type party struct {
	initial float64 // Starting balance, encrypted before the first block.
	scale   float64 // Applied to each transaction value before encryption.
	growth  float64 // Balance growth factor multiplied in per transaction.
}

// The three simulated parties.
var parties = [...]party{
	{initial: 1000.0, scale: 1.0, growth: 1.05},
	{initial: 500.0, scale: 1.5, growth: 1.10},
	{initial: 750.0, scale: 1.2, growth: 1.03},
}

// =============================================================================

// EventHandler defines a function that is called when events occur in the
// processing of the simulation.
type EventHandler func(v string, args ...any)

// BlockWindow represents the behavior required to resolve a window of
// recent blocks for replay.
type BlockWindow interface {
	FetchWindow(ctx context.Context, n int) ([]fetcher.Block, error)
}

// Config represents the configuration required to construct a Simulator.
type Config struct {
	Window     BlockWindow
	Capability crypt.Capability
	EvHandler  EventHandler
}

// Simulator drives simulation runs against a block window and a
// secure-computation capability.
type Simulator struct {
	window     BlockWindow
	capability crypt.Capability
	ev         EventHandler

	// The capability and the timing samples assume a single logical thread
	// of control, so runs are serialized.
	mu sync.Mutex
}

// New constructs a Simulator for executing runs.
func New(cfg Config) (*Simulator, error) {
	if cfg.Window == nil {
		return nil, errors.New("block window required")
	}
	if cfg.Capability == nil {
		return nil, errors.New("capability required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Simulator{
		window:     cfg.Window,
		capability: cfg.Capability,
		ev:         ev,
	}, nil
}

// Run replays the most recent numBlocks blocks through the encrypted state
// pipeline and returns the assembled result. The only fatal data condition
// is a fully empty block window, reported as fetcher.ErrNoData.
func (s *Simulator) Run(ctx context.Context, numBlocks int) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if numBlocks < 1 {
		numBlocks = 20
	}

	s.ev("state: simulating with %d recent blocks", numBlocks)

	started := time.Now().UTC()
	tracker := perf.New()

	blocks, err := s.window.FetchWindow(ctx, numBlocks)
	if err != nil {
		if errors.Is(err, fetcher.ErrNoData) {
			s.ev("state: no block data available, ending simulation")
		}
		return nil, fmt.Errorf("fetching block window: %w", err)
	}

	r, err := s.newRun(tracker)
	if err != nil {
		return nil, fmt.Errorf("initializing encrypted states: %w", err)
	}

	for _, block := range blocks {
		r.processBlock(block)
	}

	result := r.finish(started)
	result.RunID = uuid.NewString()

	s.report(result)

	return result, nil
}

// =============================================================================

// run owns the mutable state of one simulation run: the encrypted balances,
// the aggregate, the noise ledger and every accumulator feeding the final
// result. Nothing outside the run touches these until it completes.
type run struct {
	sim     *Simulator
	tracker *perf.Tracker
	ledger  *noise.Ledger

	balances  []crypt.Ciphertext
	growths   []crypt.Ciphertext
	aggregate crypt.Ciphertext

	totalGas    uint64
	txCount     int
	txValues    []float64
	blockSizes  []float64
	blockTimes  []float64
	gasPrices   []float64
	blocksTotal int
}

// newRun encrypts the initial party balances, the per-party growth factors
// and the zeroed aggregate. A capability failure here is fatal to the run
// since there is no state to simulate against.
func (s *Simulator) newRun(tracker *perf.Tracker) (*run, error) {
	balances := make([]crypt.Ciphertext, len(parties))
	growths := make([]crypt.Ciphertext, len(parties))

	for i, p := range parties {
		balance, err := s.capability.Encrypt(p.initial)
		if err != nil {
			return nil, fmt.Errorf("encrypting party %d initial balance: %w", i+1, err)
		}
		balances[i] = balance

		growth, err := s.capability.Encrypt(p.growth)
		if err != nil {
			return nil, fmt.Errorf("encrypting party %d growth factor: %w", i+1, err)
		}
		growths[i] = growth
	}

	aggregate, err := s.capability.Encrypt(0.0)
	if err != nil {
		return nil, fmt.Errorf("encrypting aggregate state: %w", err)
	}

	return &run{
		sim:       s,
		tracker:   tracker,
		ledger:    noise.NewLedger(len(parties)),
		balances:  balances,
		growths:   growths,
		aggregate: aggregate,
	}, nil
}

// processBlock replays one block. Every block that reaches this point
// contributes at least one entry to each party's noise sequence: one per
// processed transaction, or a single unchanged entry when the block yields
// nothing to process.
func (r *run) processBlock(block fetcher.Block) {
	r.blocksTotal++

	if block.Malformed {
		r.sim.ev("state: ERROR: block %d carries unusable data, advancing noise only", block.Number)
		r.ledger.Append()
		return
	}

	r.blockSizes = append(r.blockSizes, float64(block.Size))
	r.blockTimes = append(r.blockTimes, float64(block.Timestamp))
	r.gasPrices = append(r.gasPrices, float64(block.BaseFee))

	processed := 0
	for _, tx := range block.Transactions {

		// Zero-value transactions are excluded from all downstream
		// processing: not encrypted, not counted.
		if tx.Value == 0 {
			continue
		}

		if err := r.processTransaction(tx); err != nil {
			r.sim.ev("state: ERROR: block %d: skipping transaction: %s", block.Number, err)
			continue
		}
		processed++
	}

	if processed == 0 {
		r.ledger.Append()
	}
}

// processTransaction applies the full encrypted pipeline for a single
// transaction. All ciphertext results are computed into temporaries and
// committed only when every capability call succeeded, so a failure cannot
// leave the party states out of lockstep or let a nil ciphertext flow into
// later arithmetic.
func (r *run) processTransaction(tx fetcher.Transaction) error {
	capability := r.sim.capability

	// Encrypt the scaled per-party transaction values.
	encStart := time.Now()
	values := make([]crypt.Ciphertext, len(parties))
	for i, p := range parties {
		ct, err := capability.Encrypt(tx.Value * p.scale)
		if err != nil {
			return fmt.Errorf("encrypting party %d value: %w", i+1, err)
		}
		values[i] = ct
	}
	encElapsed := time.Since(encStart)

	// Add each value into its party's balance, then multiply the balance
	// by the party growth factor.
	transStart := time.Now()
	next := make([]crypt.Ciphertext, len(parties))
	for i := range parties {
		sum, err := capability.Add(r.balances[i], values[i])
		if err != nil {
			return fmt.Errorf("adding into party %d balance: %w", i+1, err)
		}

		grown, err := capability.Mul(sum, r.growths[i])
		if err != nil {
			return fmt.Errorf("multiplying party %d balance: %w", i+1, err)
		}
		next[i] = grown
	}
	transElapsed := time.Since(transStart)

	// Sum the per-transaction values across parties into the aggregate.
	aggStart := time.Now()
	sum, err := capability.Add(values[0], values[1])
	if err != nil {
		return fmt.Errorf("aggregating party values: %w", err)
	}
	sum, err = capability.Add(sum, values[2])
	if err != nil {
		return fmt.Errorf("aggregating party values: %w", err)
	}
	aggregate, err := capability.Add(r.aggregate, sum)
	if err != nil {
		return fmt.Errorf("adding into aggregate state: %w", err)
	}
	aggElapsed := time.Since(aggStart)

	// Commit: balances, aggregate, noise, counters and timing samples all
	// move together.
	copy(r.balances, next)
	r.aggregate = aggregate

	r.ledger.RecordAddition()
	r.ledger.RecordMultiplication()
	r.ledger.Append()

	r.totalGas += tx.GasUsed
	r.txCount++
	r.txValues = append(r.txValues, tx.Value)

	r.tracker.Record(perf.Encryption, encElapsed)
	r.tracker.Record(perf.Multiplication, transElapsed)
	r.tracker.Record(perf.StateTransition, transElapsed)
	r.tracker.Record(perf.Aggregation, aggElapsed)

	return nil
}

// finish decrypts the final states and assembles the result. A decrypt
// failure surfaces as a missing balance without failing the run.
func (r *run) finish(started time.Time) *Result {
	capability := r.sim.capability

	decStart := time.Now()

	partyResults := make([]PartyResult, len(parties))
	for i := range parties {
		pr := PartyResult{
			Party:        i + 1,
			NoiseLevels:  r.ledger.History(i),
			NoiseSummary: r.ledger.Summarize(i),
		}

		value, err := capability.Decrypt(r.balances[i])
		if err != nil {
			r.sim.ev("state: ERROR: decrypting party %d final state: %s", i+1, err)
		} else {
			balance := value
			pr.FinalBalance = &balance
		}

		partyResults[i] = pr
	}

	var aggregateBalance *float64
	if value, err := capability.Decrypt(r.aggregate); err != nil {
		r.sim.ev("state: ERROR: decrypting aggregate state: %s", err)
	} else {
		aggregateBalance = &value
	}

	r.tracker.Record(perf.Decryption, time.Since(decStart))

	return &Result{
		StartedAt:        started,
		CompletedAt:      time.Now().UTC(),
		BlocksProcessed:  r.blocksTotal,
		Parties:          partyResults,
		AggregateBalance: aggregateBalance,
		TotalGasCost:     r.totalGas,
		TransactionCount: r.txCount,
		TransactionStats: stats.AnalyzeTransactions(r.txValues),
		BlockStats:       stats.AnalyzeBlocks(r.blockSizes, r.blockTimes, r.gasPrices),
		GasCosts:         stats.AnalyzeGasCosts(r.txCount, float64(r.totalGas)),
		Performance:      newPerformance(r.tracker),
	}
}

// report emits the end-of-run event lines.
func (s *Simulator) report(result *Result) {
	for _, pr := range result.Parties {
		if pr.FinalBalance != nil {
			s.ev("state: final decrypted state (party %d): %f", pr.Party, *pr.FinalBalance)
		} else {
			s.ev("state: final decrypted state (party %d): unavailable", pr.Party)
		}
	}

	if result.AggregateBalance != nil {
		s.ev("state: final decrypted aggregate state: %f", *result.AggregateBalance)
	} else {
		s.ev("state: final decrypted aggregate state: unavailable")
	}

	s.ev("state: total transactions: %d, total gas cost: %d", result.TransactionCount, result.TotalGasCost)

	for cat, avg := range result.Performance.Averages {
		s.ev("state: avg %s time: %.6fs", cat, avg)
	}
	s.ev("state: memory usage: current=%.2fKB, peak=%.2fKB",
		float64(result.Performance.MemoryCurrentBytes)/1024,
		float64(result.Performance.MemoryPeakBytes)/1024)

	for _, pr := range result.Parties {
		s.ev("state: noise growth (party %d): avg=%.6f, max=%.6f, min=%.6f",
			pr.Party, pr.NoiseSummary.Average, pr.NoiseSummary.Max, pr.NoiseSummary.Min)
	}
}
