package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cipherledger/cipherledger/foundation/ledger/crypt"
	"github.com/cipherledger/cipherledger/foundation/ledger/crypt/ckks"
	"github.com/cipherledger/cipherledger/foundation/ledger/crypt/plain"
	"github.com/cipherledger/cipherledger/foundation/ledger/datasource"
	"github.com/cipherledger/cipherledger/foundation/ledger/fetcher"
	"github.com/cipherledger/cipherledger/foundation/ledger/state"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	numBlocks  int
	outputJSON bool
)

func init() {
	runCmd.Flags().IntVarP(&numBlocks, "blocks", "n", 20, "Number of recent blocks to replay.")
	runCmd.Flags().BoolVar(&outputJSON, "json", false, "Print the full result document as JSON.")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one simulation run and print the report",
	RunE:  runSimulation,
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source := datasource.New(datasource.Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 10 * time.Second,
	})

	bar := progressbar.NewOptions(numBlocks,
		progressbar.OptionSetDescription("fetching blocks"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	fetch := fetcher.New(fetcher.Config{
		Source:     source,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		Progress:   func() { bar.Add(1) },
	})

	capability, err := newCapability(backend, precision)
	if err != nil {
		return err
	}

	sim, err := state.New(state.Config{
		Window:     fetch,
		Capability: capability,
		EvHandler: func(v string, args ...any) {
			fmt.Fprintf(os.Stderr, v+"\n", args...)
		},
	})
	if err != nil {
		return err
	}

	result, err := sim.Run(ctx, numBlocks)
	bar.Finish()
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("run %s: %d blocks, %d transactions\n", result.RunID, result.BlocksProcessed, result.TransactionCount)
	return nil
}

// newCapability selects the secure-computation backend by name.
func newCapability(backend string, precision float64) (crypt.Capability, error) {
	switch backend {
	case "ckks":
		return ckks.New(precision)
	case "plain":
		return plain.New(precision)
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}
