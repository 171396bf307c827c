// Package fetcher retrieves a bounded window of recent blocks from a data
// source, resolving each block with bounded retry and parsing the raw hex
// fields into typed values the simulation can replay.
package fetcher

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/cipherledger/cipherledger/foundation/ledger/datasource"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrNoData indicates not a single block of the requested window could be
// validated.
var ErrNoData = errors.New("no valid block data")

var (
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cipherledger",
		Subsystem: "fetcher",
		Name:      "retries_total",
		Help:      "Number of block request retries.",
	})
	skippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cipherledger",
		Subsystem: "fetcher",
		Name:      "blocks_skipped_total",
		Help:      "Number of blocks dropped from a window after retry exhaustion.",
	})
)

// =============================================================================

// EventHandler defines a function that is called when events occur while
// fetching the block window.
type EventHandler func(v string, args ...any)

// Source represents the behavior required of the data source providing
// block lookups.
type Source interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*datasource.RawBlock, error)
}

// Delayer pauses the caller between retry attempts. Tests provide a delayer
// that returns immediately so retry logic runs without elapsed time.
type Delayer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// stdDelayer sleeps on the wall clock while honoring context cancellation.
type stdDelayer struct{}

// Wait implements the Delayer interface using the wall clock.
func (stdDelayer) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================

// Transaction represents a parsed transaction. Value is expressed in native
// token units, converted from the raw wei amount.
type Transaction struct {
	Value   float64
	GasUsed uint64
}

// Block represents a validated block from the window. A block flagged
// Malformed passed the source's envelope checks but carries a field that
// would not parse; it occupies its window slot with no usable data so the
// simulation can still account for it.
type Block struct {
	Number       uint64
	Size         uint64
	Timestamp    uint64
	BaseFee      uint64
	Transactions []Transaction
	Malformed    bool
}

// =============================================================================

// Config represents the settings required to construct a Fetcher.
type Config struct {
	Source     Source
	MaxRetries int           // Total request attempts per block.
	RetryDelay time.Duration // Pause between attempts.
	Delay      Delayer       // Defaults to the wall clock.
	Progress   func()        // Optional, called once per window slot resolved.
	EvHandler  EventHandler
}

// Fetcher resolves windows of recent blocks against a data source.
type Fetcher struct {
	source     Source
	maxRetries int
	retryDelay time.Duration
	delay      Delayer
	progress   func()
	ev         EventHandler
}

// New constructs a Fetcher for resolving block windows.
func New(cfg Config) *Fetcher {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}

	delay := cfg.Delay
	if delay == nil {
		delay = stdDelayer{}
	}

	progress := cfg.Progress
	if progress == nil {
		progress = func() {}
	}

	return &Fetcher{
		source:     cfg.Source,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		delay:      delay,
		progress:   progress,
		ev:         ev,
	}
}

// FetchWindow resolves the most recent n distinct block numbers counting
// down from the current head. Blocks that remain invalid after retry are
// logged and omitted from the window. ErrNoData is returned only when the
// whole window came up empty.
func (f *Fetcher) FetchWindow(ctx context.Context, n int) ([]Block, error) {
	head, err := f.source.LatestBlockNumber(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "resolving chain head")
	}

	f.ev("fetcher: resolving window of %d blocks down from head %d", n, head)

	var window []Block
	for i := 0; i < n; i++ {
		number := head - uint64(i)

		raw, attempts, err := f.fetchWithRetry(ctx, number)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return nil, err

		case err != nil:
			skippedTotal.Inc()
			f.ev("fetcher: ERROR: no valid data for block %d after %d attempts: %s", number, attempts, err)

		default:
			window = append(window, f.parseBlock(number, raw))
		}
		f.progress()

		// The window cannot extend below the genesis block, whether or not
		// it resolved.
		if number == 0 {
			break
		}
	}

	if len(window) == 0 {
		return nil, ErrNoData
	}

	return window, nil
}

// fetchWithRetry requests a single block, retrying with a fixed delay until
// a well-formed block object arrives or the attempt budget is spent. The
// number of attempts actually used is returned either way.
func (f *Fetcher) fetchWithRetry(ctx context.Context, number uint64) (*datasource.RawBlock, int, error) {
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		raw, err := f.source.BlockByNumber(ctx, number)
		if err == nil {
			return raw, attempt, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, attempt, err
		}

		f.ev("fetcher: retrying block %d: attempt %d", number, attempt)

		if attempt < f.maxRetries {
			retriesTotal.Inc()
			if err := f.delay.Wait(ctx, f.retryDelay); err != nil {
				return nil, attempt, err
			}
		}
	}

	return nil, f.maxRetries, errors.WithMessagef(lastErr, "block %d", number)
}

// parseBlock converts a raw block into its typed form. A block field that
// will not parse marks the whole block malformed; a transaction that will
// not parse drops just that transaction.
func (f *Fetcher) parseBlock(number uint64, raw *datasource.RawBlock) Block {
	size, err := hexutil.DecodeUint64(raw.Size)
	if err != nil {
		f.ev("fetcher: ERROR: block %d: parsing size %q: %s", number, raw.Size, err)
		return Block{Number: number, Malformed: true}
	}

	timestamp, err := hexutil.DecodeUint64(raw.Timestamp)
	if err != nil {
		f.ev("fetcher: ERROR: block %d: parsing timestamp %q: %s", number, raw.Timestamp, err)
		return Block{Number: number, Malformed: true}
	}

	baseFee, err := hexutil.DecodeUint64(raw.BaseFeePerGas)
	if err != nil {
		f.ev("fetcher: ERROR: block %d: parsing baseFeePerGas %q: %s", number, raw.BaseFeePerGas, err)
		return Block{Number: number, Malformed: true}
	}

	return Block{
		Number:       number,
		Size:         size,
		Timestamp:    timestamp,
		BaseFee:      baseFee,
		Transactions: f.parseTransactions(number, raw.Transactions),
	}
}

// parseTransactions converts the raw transaction list. A list that is not
// well-formed yields no transactions at all, which the simulation treats as
// a block with nothing to process.
func (f *Fetcher) parseTransactions(number uint64, raw json.RawMessage) []Transaction {
	if len(raw) == 0 {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		f.ev("fetcher: ERROR: block %d: transactions field is not a list: %s", number, err)
		return nil
	}

	txs := make([]Transaction, 0, len(items))
	for i, item := range items {
		var rawTx datasource.RawTransaction
		if err := json.Unmarshal(item, &rawTx); err != nil {
			f.ev("fetcher: ERROR: block %d: transaction %d is not an object: %s", number, i, err)
			continue
		}

		value, err := parseTokenValue(rawTx.Value)
		if err != nil {
			f.ev("fetcher: ERROR: block %d: transaction %d: parsing value %q: %s", number, i, rawTx.Value, err)
			continue
		}

		gasUsed, err := hexutil.DecodeUint64(rawTx.Gas)
		if err != nil {
			f.ev("fetcher: ERROR: block %d: transaction %d: parsing gas %q: %s", number, i, rawTx.Gas, err)
			continue
		}

		txs = append(txs, Transaction{Value: value, GasUsed: gasUsed})
	}

	return txs
}

// parseTokenValue converts a hex wei quantity into native token units. The
// raw amount can exceed 64 bits so the division runs over big values.
func parseTokenValue(hex string) (float64, error) {
	wei, err := hexutil.DecodeBig(hex)
	if err != nil {
		return 0, err
	}

	value, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return value, nil
}
