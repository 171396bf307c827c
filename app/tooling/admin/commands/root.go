// Package commands contains the admin CLI.
package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiKey     string
	baseURL    string
	backend    string
	precision  float64
	maxRetries int
	retryDelay time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "", "Explorer API key.")
	rootCmd.PersistentFlags().StringVarP(&baseURL, "base-url", "u", "https://api-optimistic.etherscan.io", "Explorer API base URL.")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "ckks", "Secure-computation backend: ckks or plain.")
	rootCmd.PersistentFlags().Float64VarP(&precision, "precision", "p", 1e-6, "Encoding precision for the backend.")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", 3, "Total request attempts per block.")
	rootCmd.PersistentFlags().DurationVar(&retryDelay, "retry-delay", 2*time.Second, "Pause between block request attempts.")
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Encrypted ledger simulation admin",
}

// Execute runs the command line program.
func Execute(build string) {
	buildVersion = build

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
