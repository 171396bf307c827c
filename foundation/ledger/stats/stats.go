// Package stats computes the descriptive statistics reported at the end of
// a simulation run. All moments are population moments: variance divides by
// n, skewness is Fisher-Pearson g1 and kurtosis is excess kurtosis g2. A
// zero-variance input yields skewness and kurtosis of 0 rather than NaN.
package stats

import (
	"math"
	"sort"
)

// TransactionStats describes the distribution of plaintext transaction
// values processed during a run.
type TransactionStats struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// BlockStats describes the blocks a run processed. The block time and gas
// price sequences are echoed verbatim for downstream charting.
type BlockStats struct {
	AvgBlockSize       float64   `json:"avg_block_size"`
	AvgBlockTime       float64   `json:"avg_block_time"`
	AvgGasPrice        float64   `json:"avg_gas_price"`
	GasPriceVolatility float64   `json:"gas_price_volatility"`
	BlockTimes         []float64 `json:"block_times"`
	GasPrices          []float64 `json:"gas_prices"`
}

// GasCosts describes total and per-transaction gas consumption.
type GasCosts struct {
	TotalGasCost     float64 `json:"total_gas_cost"`
	AverageGasCostTx float64 `json:"average_gas_per_tx"`
}

// =============================================================================

// AnalyzeTransactions computes the distribution of the specified transaction
// values. An empty input yields the zero value.
func AnalyzeTransactions(values []float64) TransactionStats {
	if len(values) == 0 {
		return TransactionStats{}
	}

	mean := mean(values)
	m2 := centralMoment(values, mean, 2)
	m3 := centralMoment(values, mean, 3)
	m4 := centralMoment(values, mean, 4)

	ts := TransactionStats{
		Mean:     mean,
		Variance: m2,
		Min:      values[0],
		Max:      values[0],
		Median:   median(values),
	}

	for _, v := range values {
		if v < ts.Min {
			ts.Min = v
		}
		if v > ts.Max {
			ts.Max = v
		}
	}

	if m2 > 0 {
		ts.Skewness = m3 / math.Pow(m2, 1.5)
		ts.Kurtosis = m4/(m2*m2) - 3
	}

	return ts
}

// AnalyzeBlocks computes aggregate block metrics. Volatility is the
// population standard deviation of the gas prices. If any input sequence is
// empty the zeroed record with empty echoes is returned.
func AnalyzeBlocks(sizes []float64, times []float64, gasPrices []float64) BlockStats {
	if len(sizes) == 0 || len(times) == 0 || len(gasPrices) == 0 {
		return BlockStats{
			BlockTimes: []float64{},
			GasPrices:  []float64{},
		}
	}

	gasMean := mean(gasPrices)

	return BlockStats{
		AvgBlockSize:       mean(sizes),
		AvgBlockTime:       mean(times),
		AvgGasPrice:        gasMean,
		GasPriceVolatility: math.Sqrt(centralMoment(gasPrices, gasMean, 2)),
		BlockTimes:         times,
		GasPrices:          gasPrices,
	}
}

// AnalyzeGasCosts reduces the total gas consumed across the specified number
// of transactions to a per-transaction average. A zero transaction count
// yields an average of 0 rather than a division error.
func AnalyzeGasCosts(transactionCount int, totalGasCost float64) GasCosts {
	gc := GasCosts{TotalGasCost: totalGasCost}
	if transactionCount > 0 {
		gc.AverageGasCostTx = totalGasCost / float64(transactionCount)
	}
	return gc
}

// =============================================================================

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// centralMoment computes the population central moment of the given order.
func centralMoment(values []float64, mean float64, order int) float64 {
	var sum float64
	for _, v := range values {
		sum += math.Pow(v-mean, float64(order))
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
