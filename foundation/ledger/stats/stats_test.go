package stats_test

import (
	"math"
	"testing"

	"github.com/cipherledger/cipherledger/foundation/ledger/stats"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const tolerance = 1e-9

func within(got float64, want float64) bool {
	return math.Abs(got-want) <= tolerance
}

// =============================================================================

func Test_AnalyzeTransactions(t *testing.T) {
	type table struct {
		name   string
		values []float64
		want   stats.TransactionStats
	}

	tt := []table{
		{
			name:   "empty",
			values: nil,
			want:   stats.TransactionStats{},
		},
		{
			name:   "constant",
			values: []float64{2, 2, 2, 2},
			want: stats.TransactionStats{
				Mean:   2,
				Min:    2,
				Max:    2,
				Median: 2,
			},
		},
		{
			name:   "skewed",
			values: []float64{0, 0, 0, 1},
			want: stats.TransactionStats{
				Mean:     0.25,
				Variance: 0.1875,
				Min:      0,
				Max:      1,
				Median:   0,
				Skewness: 2 / math.Sqrt(3),
				Kurtosis: -2.0 / 3.0,
			},
		},
		{
			name:   "even median",
			values: []float64{4, 1, 3, 2},
			want: stats.TransactionStats{
				Mean:     2.5,
				Variance: 1.25,
				Min:      1,
				Max:      4,
				Median:   2.5,
				Skewness: 0,
				Kurtosis: 2.5625/(1.25*1.25) - 3,
			},
		},
	}

	t.Log("Given the need to compute transaction value statistics.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen analyzing the %s input.", testID, tst.name)
			{
				f := func(t *testing.T) {
					got := stats.AnalyzeTransactions(tst.values)

					checks := []struct {
						field string
						got   float64
						want  float64
					}{
						{"mean", got.Mean, tst.want.Mean},
						{"variance", got.Variance, tst.want.Variance},
						{"min", got.Min, tst.want.Min},
						{"max", got.Max, tst.want.Max},
						{"median", got.Median, tst.want.Median},
						{"skewness", got.Skewness, tst.want.Skewness},
						{"kurtosis", got.Kurtosis, tst.want.Kurtosis},
					}

					for _, check := range checks {
						if !within(check.got, check.want) {
							t.Fatalf("\t%s\tTest %d:\tShould compute %s as %v, got %v.", failed, testID, check.field, check.want, check.got)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould compute every moment correctly.", success, testID)
				}
				t.Run(tst.name, f)
			}
		}
	}
}

func Test_AnalyzeBlocks(t *testing.T) {
	t.Log("Given the need to compute block metrics.")
	{
		t.Log("\tTest 0:\tWhen any input sequence is empty.")
		{
			got := stats.AnalyzeBlocks(nil, nil, nil)

			if got.AvgBlockSize != 0 || got.AvgBlockTime != 0 || got.AvgGasPrice != 0 || got.GasPriceVolatility != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould zero every aggregate, got %+v.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould zero every aggregate.", success)

			if got.BlockTimes == nil || got.GasPrices == nil || len(got.BlockTimes) != 0 || len(got.GasPrices) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould echo empty sequences.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould echo empty sequences.", success)
		}

		t.Log("\tTest 1:\tWhen analyzing four blocks.")
		{
			sizes := []float64{1000, 2000, 3000, 4000}
			times := []float64{10, 20, 30, 40}
			prices := []float64{1, 2, 3, 4}

			got := stats.AnalyzeBlocks(sizes, times, prices)

			if !within(got.AvgBlockSize, 2500) {
				t.Fatalf("\t%s\tTest 1:\tShould compute avg block size 2500, got %v.", failed, got.AvgBlockSize)
			}
			t.Logf("\t%s\tTest 1:\tShould compute avg block size 2500.", success)

			if !within(got.AvgGasPrice, 2.5) {
				t.Fatalf("\t%s\tTest 1:\tShould compute avg gas price 2.5, got %v.", failed, got.AvgGasPrice)
			}
			t.Logf("\t%s\tTest 1:\tShould compute avg gas price 2.5.", success)

			if !within(got.GasPriceVolatility, math.Sqrt(1.25)) {
				t.Fatalf("\t%s\tTest 1:\tShould compute volatility as the population stddev, got %v.", failed, got.GasPriceVolatility)
			}
			t.Logf("\t%s\tTest 1:\tShould compute volatility as the population stddev.", success)

			if len(got.BlockTimes) != 4 || len(got.GasPrices) != 4 {
				t.Fatalf("\t%s\tTest 1:\tShould echo the input sequences verbatim.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould echo the input sequences verbatim.", success)
		}
	}
}

func Test_AnalyzeGasCosts(t *testing.T) {
	t.Log("Given the need to compute gas cost analysis.")
	{
		t.Log("\tTest 0:\tWhen 5 transactions consumed 150 gas.")
		{
			got := stats.AnalyzeGasCosts(5, 150)

			if got.TotalGasCost != 150 || !within(got.AverageGasCostTx, 30.0) {
				t.Fatalf("\t%s\tTest 0:\tShould return (150, 30.0), got (%v, %v).", failed, got.TotalGasCost, got.AverageGasCostTx)
			}
			t.Logf("\t%s\tTest 0:\tShould return (150, 30.0).", success)
		}

		t.Log("\tTest 1:\tWhen no transactions were processed.")
		{
			got := stats.AnalyzeGasCosts(0, 0)

			if got.AverageGasCostTx != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould define the average as 0, got %v.", failed, got.AverageGasCostTx)
			}
			t.Logf("\t%s\tTest 1:\tShould define the average as 0.", success)
		}
	}
}
