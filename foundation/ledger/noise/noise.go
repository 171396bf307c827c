// Package noise maintains the plaintext noise bookkeeping that runs in
// lockstep with the homomorphic operations applied to the encrypted states.
// The model is a simplified growth heuristic, not an error term of any real
// encryption scheme, and it is kept strictly separate from the ciphertext
// representation so either side can change without touching the other.
package noise

// Growth constants applied once per processed transaction.
const (
	AdditionConstant     = 1.0
	MultiplicationFactor = 1.05
	InitialLevel         = 0.01
)

// Summary describes how noise accumulated for one party over a run.
type Summary struct {
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

// Ledger tracks one noise scalar per party together with the history of
// values appended over a run. The ledger is owned by a single simulation
// run and is not safe for concurrent use.
type Ledger struct {
	levels    []float64
	histories [][]float64
}

// NewLedger constructs a ledger for the specified number of parties, each
// starting at the initial noise level.
func NewLedger(parties int) *Ledger {
	levels := make([]float64, parties)
	for i := range levels {
		levels[i] = InitialLevel
	}

	return &Ledger{
		levels:    levels,
		histories: make([][]float64, parties),
	}
}

// RecordAddition advances every party's noise for one homomorphic addition.
func (l *Ledger) RecordAddition() {
	for i := range l.levels {
		l.levels[i] += AdditionConstant
	}
}

// RecordMultiplication advances every party's noise for one homomorphic
// multiplication.
func (l *Ledger) RecordMultiplication() {
	for i := range l.levels {
		l.levels[i] *= MultiplicationFactor
	}
}

// Append pushes the current noise value of every party onto its history.
// Called once per processed transaction, or once per block when the block
// contributed no processed transactions.
func (l *Ledger) Append() {
	for i := range l.levels {
		l.histories[i] = append(l.histories[i], l.levels[i])
	}
}

// Level returns the current noise value for the specified party.
func (l *Ledger) Level(party int) float64 {
	return l.levels[party]
}

// History returns the appended noise sequence for the specified party.
func (l *Ledger) History(party int) []float64 {
	return l.histories[party]
}

// Summarize reduces the specified party's history to its average, max and
// min. An empty history yields a zero summary.
func (l *Ledger) Summarize(party int) Summary {
	history := l.histories[party]
	if len(history) == 0 {
		return Summary{}
	}

	summary := Summary{Max: history[0], Min: history[0]}
	var sum float64
	for _, level := range history {
		sum += level
		if level > summary.Max {
			summary.Max = level
		}
		if level < summary.Min {
			summary.Min = level
		}
	}
	summary.Average = sum / float64(len(history))

	return summary
}
