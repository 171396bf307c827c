// Package crypt defines the secure-computation capability the simulation
// consumes. Arithmetic on encrypted values is only valid through this
// contract; a ciphertext handle is opaque to every other package.
package crypt

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrBackendMismatch indicates a ciphertext handle was produced by a
// different backend than the one consuming it.
var ErrBackendMismatch = errors.New("ciphertext from different backend")

// Ciphertext is an opaque handle to an encrypted value. The concrete
// representation belongs to the backend that produced it.
type Ciphertext interface {
	Backend() string
}

// Capability represents the behavior required of a secure-computation
// backend. Every operation can fail; a failed operation returns a nil
// ciphertext that must never be fed back into arithmetic, so callers are
// expected to short-circuit on error.
type Capability interface {
	Encrypt(plaintext float64) (Ciphertext, error)
	Decrypt(c Ciphertext) (float64, error)
	Add(a Ciphertext, b Ciphertext) (Ciphertext, error)
	Mul(a Ciphertext, b Ciphertext) (Ciphertext, error)
}

// =============================================================================

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cipherledger",
	Subsystem: "crypt",
	Name:      "operations_total",
	Help:      "Number of capability operations by backend, operation and status.",
}, []string{"backend", "op", "status"})

// Observe records the outcome of a capability operation. Backends call this
// once per operation.
func Observe(backend string, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	opsTotal.WithLabelValues(backend, op, status).Inc()
}
