// Package plain implements the secure-computation capability as a
// fixed-point passthrough. Values are quantized to the configured precision
// but never actually encrypted, which makes runs deterministic and fast.
// Useful for property tests and for exercising the pipeline without the
// cost of a real backend.
package plain

import (
	"fmt"
	"math"

	"github.com/cipherledger/cipherledger/foundation/ledger/crypt"
)

const backendName = "plain"

// ciphertext carries the quantized value as an integer multiple of the
// backend precision, mirroring a fixed-point encoding.
type ciphertext struct {
	units int64
}

// Backend implements the crypt.Ciphertext interface.
func (ciphertext) Backend() string { return backendName }

// =============================================================================

// Backend is a plaintext passthrough capability.
type Backend struct {
	precision float64
}

// New constructs a passthrough backend with the specified precision.
func New(precision float64) (*Backend, error) {
	if precision <= 0 {
		return nil, fmt.Errorf("precision must be positive, got %g", precision)
	}
	return &Backend{precision: precision}, nil
}

// Precision returns the configured encoding precision.
func (b *Backend) Precision() float64 {
	return b.precision
}

// Encrypt quantizes the plaintext to the configured precision.
func (b *Backend) Encrypt(plaintext float64) (crypt.Ciphertext, error) {
	defer crypt.Observe(backendName, "encrypt", nil)
	return ciphertext{units: int64(math.Round(plaintext / b.precision))}, nil
}

// Decrypt recovers the quantized plaintext.
func (b *Backend) Decrypt(c crypt.Ciphertext) (float64, error) {
	ct, err := b.handle(c)
	crypt.Observe(backendName, "decrypt", err)
	if err != nil {
		return 0, err
	}
	return float64(ct.units) * b.precision, nil
}

// Add returns the sum of two handles.
func (b *Backend) Add(a crypt.Ciphertext, c crypt.Ciphertext) (crypt.Ciphertext, error) {
	ca, err := b.handle(a)
	if err != nil {
		crypt.Observe(backendName, "add", err)
		return nil, err
	}
	cb, err := b.handle(c)
	crypt.Observe(backendName, "add", err)
	if err != nil {
		return nil, err
	}
	return ciphertext{units: ca.units + cb.units}, nil
}

// Mul returns the product of two handles.
func (b *Backend) Mul(a crypt.Ciphertext, c crypt.Ciphertext) (crypt.Ciphertext, error) {
	ca, err := b.handle(a)
	if err != nil {
		crypt.Observe(backendName, "mul", err)
		return nil, err
	}
	cb, err := b.handle(c)
	crypt.Observe(backendName, "mul", err)
	if err != nil {
		return nil, err
	}

	product := float64(ca.units) * b.precision * float64(cb.units) * b.precision
	return ciphertext{units: int64(math.Round(product / b.precision))}, nil
}

// handle asserts a ciphertext belongs to this backend.
func (b *Backend) handle(c crypt.Ciphertext) (ciphertext, error) {
	ct, ok := c.(ciphertext)
	if !ok {
		return ciphertext{}, crypt.ErrBackendMismatch
	}
	return ct, nil
}
