package fetcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/cipherledger/cipherledger/foundation/ledger/datasource"
	"github.com/cipherledger/cipherledger/foundation/ledger/fetcher"
	"github.com/pkg/errors"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

// stubSource scripts per-block behavior: a block fails its first
// failures[n] requests and then returns the configured raw block, or fails
// forever when no raw block is configured.
type stubSource struct {
	head     uint64
	failures map[uint64]int
	blocks   map[uint64]*datasource.RawBlock
	calls    map[uint64]int
}

func newStubSource(head uint64) *stubSource {
	return &stubSource{
		head:     head,
		failures: make(map[uint64]int),
		blocks:   make(map[uint64]*datasource.RawBlock),
		calls:    make(map[uint64]int),
	}
}

func (s *stubSource) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return s.head, nil
}

func (s *stubSource) BlockByNumber(ctx context.Context, number uint64) (*datasource.RawBlock, error) {
	s.calls[number]++

	if s.calls[number] <= s.failures[number] {
		return nil, errors.WithMessagef(datasource.ErrInvalidResult, "block %d", number)
	}

	block, exists := s.blocks[number]
	if !exists {
		return nil, errors.WithMessagef(datasource.ErrInvalidResult, "block %d", number)
	}

	return block, nil
}

// noDelay lets retry logic run without elapsed time.
type noDelay struct {
	waits int
}

func (d *noDelay) Wait(ctx context.Context, wait time.Duration) error {
	d.waits++
	return nil
}

// validBlock returns a well-formed raw block carrying one 1.0 token
// transaction and one zero-value transaction.
func validBlock() *datasource.RawBlock {
	return &datasource.RawBlock{
		Number:        "0x64",
		Size:          "0x3e8",
		Timestamp:     "0x65f0e100",
		BaseFeePerGas: "0x3b9aca00",
		Transactions:  []byte(`[{"value":"0xde0b6b3a7640000","gas":"0x5208"},{"value":"0x0","gas":"0x5208"}]`),
	}
}

// =============================================================================

func Test_RetryBounds(t *testing.T) {
	type table struct {
		name       string
		maxRetries int
		wantCalls  int
	}

	tt := []table{
		{name: "single attempt", maxRetries: 1, wantCalls: 1},
		{name: "three attempts", maxRetries: 3, wantCalls: 3},
		{name: "five attempts", maxRetries: 5, wantCalls: 5},
	}

	t.Log("Given the need to bound retries per block.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen a block never validates with %d max retries.", testID, tst.maxRetries)
			{
				f := func(t *testing.T) {
					source := newStubSource(100)
					delay := noDelay{}

					f := fetcher.New(fetcher.Config{
						Source:     source,
						MaxRetries: tst.maxRetries,
						Delay:      &delay,
					})

					if _, err := f.FetchWindow(context.Background(), 1); !errors.Is(err, fetcher.ErrNoData) {
						t.Fatalf("\t%s\tTest %d:\tShould get ErrNoData for an empty window: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get ErrNoData for an empty window.", success, testID)

					if got := source.calls[100]; got != tst.wantCalls {
						t.Fatalf("\t%s\tTest %d:\tShould issue exactly %d requests, got %d.", failed, testID, tst.wantCalls, got)
					}
					t.Logf("\t%s\tTest %d:\tShould issue exactly %d requests.", success, testID, tst.wantCalls)

					if delay.waits != tst.wantCalls-1 {
						t.Fatalf("\t%s\tTest %d:\tShould wait between attempts only, got %d waits.", failed, testID, delay.waits)
					}
					t.Logf("\t%s\tTest %d:\tShould wait between attempts only.", success, testID)
				}
				t.Run(tst.name, f)
			}
		}
	}
}

func Test_WindowSkipsExhaustedBlocks(t *testing.T) {
	t.Log("Given the need to keep a window alive when one block stays invalid.")
	{
		t.Log("\tTest 0:\tWhen the middle block of a window of three never validates.")
		{
			source := newStubSource(100)
			source.blocks[100] = validBlock()
			source.blocks[98] = validBlock()
			source.failures[98] = 1

			f := fetcher.New(fetcher.Config{
				Source:     source,
				MaxRetries: 3,
				Delay:      &noDelay{},
			})

			window, err := f.FetchWindow(context.Background(), 3)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould fetch the window: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould fetch the window.", success)

			if len(window) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould keep 2 blocks, got %d.", failed, len(window))
			}
			t.Logf("\t%s\tTest 0:\tShould keep 2 blocks.", success)

			if window[0].Number != 100 || window[1].Number != 98 {
				t.Fatalf("\t%s\tTest 0:\tShould keep blocks 100 and 98, got %d and %d.", failed, window[0].Number, window[1].Number)
			}
			t.Logf("\t%s\tTest 0:\tShould keep blocks 100 and 98 in head-first order.", success)

			if source.calls[98] != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould resolve block 98 on the retry, got %d calls.", failed, source.calls[98])
			}
			t.Logf("\t%s\tTest 0:\tShould resolve block 98 on the retry.", success)
		}
	}
}

func Test_WindowStopsAtGenesis(t *testing.T) {
	t.Log("Given the need to bound a window at the bottom of a short chain.")
	{
		t.Log("\tTest 0:\tWhen the window is larger than the chain and the genesis block never validates.")
		{
			source := newStubSource(1)
			source.blocks[1] = validBlock()

			f := fetcher.New(fetcher.Config{
				Source:     source,
				MaxRetries: 2,
				Delay:      &noDelay{},
			})

			window, err := f.FetchWindow(context.Background(), 5)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould fetch the window: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould fetch the window.", success)

			if len(window) != 1 || window[0].Number != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould keep only block 1, got %d blocks.", failed, len(window))
			}
			t.Logf("\t%s\tTest 0:\tShould keep only block 1.", success)

			for number := range source.calls {
				if number > 1 {
					t.Fatalf("\t%s\tTest 0:\tShould never request block %d above the head.", failed, number)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould never request a block above the head.", success)

			if source.calls[0] != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould exhaust the genesis block's attempts once, got %d calls.", failed, source.calls[0])
			}
			t.Logf("\t%s\tTest 0:\tShould exhaust the genesis block's attempts once.", success)
		}
	}
}

func Test_ParseBlock(t *testing.T) {
	t.Log("Given the need to parse raw hex block fields.")
	{
		t.Log("\tTest 0:\tWhen handling a well-formed block.")
		{
			source := newStubSource(100)
			source.blocks[100] = validBlock()

			f := fetcher.New(fetcher.Config{Source: source, Delay: &noDelay{}})

			window, err := f.FetchWindow(context.Background(), 1)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould fetch the window: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould fetch the window.", success)

			block := window[0]

			if block.BaseFee != 1000000000 {
				t.Fatalf("\t%s\tTest 0:\tShould parse baseFeePerGas 0x3b9aca00 to 1000000000, got %d.", failed, block.BaseFee)
			}
			t.Logf("\t%s\tTest 0:\tShould parse baseFeePerGas 0x3b9aca00 to 1000000000.", success)

			if block.Size != 1000 {
				t.Fatalf("\t%s\tTest 0:\tShould parse size to 1000, got %d.", failed, block.Size)
			}
			t.Logf("\t%s\tTest 0:\tShould parse size to 1000.", success)

			if len(block.Transactions) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould keep both transactions, got %d.", failed, len(block.Transactions))
			}
			t.Logf("\t%s\tTest 0:\tShould keep both transactions.", success)

			if block.Transactions[0].Value != 1.0 {
				t.Fatalf("\t%s\tTest 0:\tShould convert 0xde0b6b3a7640000 wei to 1.0 token, got %f.", failed, block.Transactions[0].Value)
			}
			t.Logf("\t%s\tTest 0:\tShould convert 0xde0b6b3a7640000 wei to 1.0 token.", success)

			if block.Transactions[1].Value != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould keep the zero-value transaction as 0, got %f.", failed, block.Transactions[1].Value)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the zero-value transaction as 0.", success)

			if block.Transactions[0].GasUsed != 21000 {
				t.Fatalf("\t%s\tTest 0:\tShould parse gas to 21000, got %d.", failed, block.Transactions[0].GasUsed)
			}
			t.Logf("\t%s\tTest 0:\tShould parse gas to 21000.", success)
		}

		t.Log("\tTest 1:\tWhen a block field does not parse.")
		{
			source := newStubSource(100)
			block := validBlock()
			block.Size = "not-hex"
			source.blocks[100] = block

			f := fetcher.New(fetcher.Config{Source: source, Delay: &noDelay{}})

			window, err := f.FetchWindow(context.Background(), 1)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould still deliver the window: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould still deliver the window.", success)

			if !window[0].Malformed {
				t.Fatalf("\t%s\tTest 1:\tShould flag the block malformed.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould flag the block malformed.", success)
		}

		t.Log("\tTest 2:\tWhen the transactions field is not a list.")
		{
			source := newStubSource(100)
			block := validBlock()
			block.Transactions = []byte(`"not-a-list"`)
			source.blocks[100] = block

			f := fetcher.New(fetcher.Config{Source: source, Delay: &noDelay{}})

			window, err := f.FetchWindow(context.Background(), 1)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould still deliver the window: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould still deliver the window.", success)

			if window[0].Malformed {
				t.Fatalf("\t%s\tTest 2:\tShould not flag the block malformed.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould not flag the block malformed.", success)

			if len(window[0].Transactions) != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould deliver no transactions, got %d.", failed, len(window[0].Transactions))
			}
			t.Logf("\t%s\tTest 2:\tShould deliver no transactions.", success)
		}

		t.Log("\tTest 3:\tWhen one transaction in the list is unparsable.")
		{
			source := newStubSource(100)
			block := validBlock()
			block.Transactions = []byte(`[{"value":"bogus","gas":"0x5208"},{"value":"0xde0b6b3a7640000","gas":"0x5208"}]`)
			source.blocks[100] = block

			f := fetcher.New(fetcher.Config{Source: source, Delay: &noDelay{}})

			window, err := f.FetchWindow(context.Background(), 1)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould still deliver the window: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould still deliver the window.", success)

			if len(window[0].Transactions) != 1 {
				t.Fatalf("\t%s\tTest 3:\tShould drop only the offending transaction, got %d kept.", failed, len(window[0].Transactions))
			}
			t.Logf("\t%s\tTest 3:\tShould drop only the offending transaction.", success)
		}
	}
}
