// Package ckks implements the secure-computation capability on top of the
// lattigo CKKS scheme. One party keyset is generated per backend; the
// backend owns the secret key for the lifetime of the simulation.
package ckks

import (
	"fmt"
	"sync"

	"github.com/cipherledger/cipherledger/foundation/ledger/crypt"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/schemes/ckks"
)

const backendName = "ckks"

// ciphertext wraps the lattigo ciphertext as an opaque handle.
type ciphertext struct {
	ct *rlwe.Ciphertext
}

// Backend implements the crypt.Ciphertext interface.
func (ciphertext) Backend() string { return backendName }

// =============================================================================

// Backend is a CKKS-backed capability. The lattigo primitives are not safe
// for concurrent use so every operation runs under the backend mutex.
type Backend struct {
	mu        sync.Mutex
	params    ckks.Parameters
	encoder   *ckks.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor
	eval      *ckks.Evaluator
	precision float64
}

// New constructs a CKKS backend with a fresh keyset. The precision is the
// guaranteed encode/decode round-trip accuracy for values in the simulated
// balance range.
func New(precision float64) (*Backend, error) {
	if precision <= 0 {
		return nil, fmt.Errorf("precision must be positive, got %g", precision)
	}

	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            13,
		LogQ:            []int{55, 45, 45, 45, 45},
		LogP:            []int{61},
		LogDefaultScale: 45,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing parameters: %w", err)
	}

	kgen := rlwe.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk)

	return &Backend{
		params:    params,
		encoder:   ckks.NewEncoder(params),
		encryptor: ckks.NewEncryptor(params, sk),
		decryptor: ckks.NewDecryptor(params, sk),
		eval:      ckks.NewEvaluator(params, evk),
		precision: precision,
	}, nil
}

// Precision returns the configured encoding precision.
func (b *Backend) Precision() float64 {
	return b.precision
}

// Encrypt encodes and encrypts a single plaintext value.
func (b *Backend) Encrypt(plaintext float64) (crypt.Ciphertext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ct, err := b.encrypt(plaintext)
	crypt.Observe(backendName, "encrypt", err)
	if err != nil {
		return nil, err
	}

	return ciphertext{ct: ct}, nil
}

// Decrypt recovers the plaintext value from a handle.
func (b *Backend) Decrypt(c crypt.Ciphertext) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ct, err := b.handle(c)
	if err != nil {
		crypt.Observe(backendName, "decrypt", err)
		return 0, err
	}

	value, err := b.decrypt(ct)
	crypt.Observe(backendName, "decrypt", err)
	if err != nil {
		return 0, err
	}

	return value, nil
}

// Add performs a homomorphic addition of two handles.
func (b *Backend) Add(a crypt.Ciphertext, c crypt.Ciphertext) (crypt.Ciphertext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ca, err := b.handle(a)
	if err != nil {
		crypt.Observe(backendName, "add", err)
		return nil, err
	}
	cb, err := b.handle(c)
	if err != nil {
		crypt.Observe(backendName, "add", err)
		return nil, err
	}

	ct, err := b.eval.AddNew(ca, cb)
	crypt.Observe(backendName, "add", err)
	if err != nil {
		return nil, fmt.Errorf("homomorphic add: %w", err)
	}

	return ciphertext{ct: ct}, nil
}

// Mul performs a homomorphic multiplication with relinearization and
// rescaling. The result is refreshed back to the top of the modulus chain
// so any number of operations can follow; refreshing re-encrypts under the
// backend's own key, which is fine for a simulation but would defeat a real
// multi-party deployment.
func (b *Backend) Mul(a crypt.Ciphertext, c crypt.Ciphertext) (crypt.Ciphertext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ca, err := b.handle(a)
	if err != nil {
		crypt.Observe(backendName, "mul", err)
		return nil, err
	}
	cb, err := b.handle(c)
	if err != nil {
		crypt.Observe(backendName, "mul", err)
		return nil, err
	}

	ct, err := b.mul(ca, cb)
	crypt.Observe(backendName, "mul", err)
	if err != nil {
		return nil, err
	}

	return ciphertext{ct: ct}, nil
}

// =============================================================================

func (b *Backend) encrypt(plaintext float64) (*rlwe.Ciphertext, error) {
	pt := ckks.NewPlaintext(b.params, b.params.MaxLevel())
	if err := b.encoder.Encode([]float64{plaintext}, pt); err != nil {
		return nil, fmt.Errorf("encoding plaintext: %w", err)
	}

	ct, err := b.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypting plaintext: %w", err)
	}

	return ct, nil
}

func (b *Backend) decrypt(ct *rlwe.Ciphertext) (float64, error) {
	pt := b.decryptor.DecryptNew(ct)

	values := make([]float64, b.params.MaxSlots())
	if err := b.encoder.Decode(pt, values); err != nil {
		return 0, fmt.Errorf("decoding plaintext: %w", err)
	}

	return values[0], nil
}

func (b *Backend) mul(a *rlwe.Ciphertext, c *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	ct, err := b.eval.MulRelinNew(a, c)
	if err != nil {
		return nil, fmt.Errorf("homomorphic mul: %w", err)
	}

	if err := b.eval.Rescale(ct, ct); err != nil {
		return nil, fmt.Errorf("rescaling: %w", err)
	}

	// Re-encrypt the product at full level so later additions always see
	// matching levels and scales regardless of how long the run is.
	value, err := b.decrypt(ct)
	if err != nil {
		return nil, fmt.Errorf("refreshing: %w", err)
	}

	fresh, err := b.encrypt(value)
	if err != nil {
		return nil, fmt.Errorf("refreshing: %w", err)
	}

	return fresh, nil
}

// handle asserts a ciphertext belongs to this backend.
func (b *Backend) handle(c crypt.Ciphertext) (*rlwe.Ciphertext, error) {
	ct, ok := c.(ciphertext)
	if !ok {
		return nil, crypt.ErrBackendMismatch
	}
	return ct.ct, nil
}
