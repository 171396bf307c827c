package ckks_test

import (
	"math"
	"testing"

	"github.com/cipherledger/cipherledger/foundation/ledger/crypt/ckks"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_HomomorphicPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping lattice keygen in short mode")
	}

	backend, err := ckks.New(1e-6)
	if err != nil {
		t.Fatalf("\t%s\tShould construct the backend: %v", failed, err)
	}

	t.Log("Given the need to run encrypted arithmetic end to end.")
	{
		t.Log("\tTest 0:\tWhen round-tripping a balance-sized value.")
		{
			ct, err := backend.Encrypt(1000.0)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould encrypt: %v", failed, err)
			}

			value, err := backend.Decrypt(ct)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould decrypt: %v", failed, err)
			}

			if math.Abs(value-1000.0) > backend.Precision() {
				t.Fatalf("\t%s\tTest 0:\tShould recover 1000.0 within precision, got %v.", failed, value)
			}
			t.Logf("\t%s\tTest 0:\tShould recover 1000.0 within precision.", success)
		}

		t.Log("\tTest 1:\tWhen adding two ciphertexts.")
		{
			a, _ := backend.Encrypt(2.0)
			b, _ := backend.Encrypt(3.0)

			sum, err := backend.Add(a, b)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould add: %v", failed, err)
			}

			value, err := backend.Decrypt(sum)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould decrypt the sum: %v", failed, err)
			}

			if math.Abs(value-5.0) > backend.Precision() {
				t.Fatalf("\t%s\tTest 1:\tShould sum to 5.0, got %v.", failed, value)
			}
			t.Logf("\t%s\tTest 1:\tShould sum to 5.0.", success)
		}

		t.Log("\tTest 2:\tWhen multiplying two ciphertexts.")
		{
			a, _ := backend.Encrypt(2.0)
			b, _ := backend.Encrypt(3.0)

			product, err := backend.Mul(a, b)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould multiply: %v", failed, err)
			}

			value, err := backend.Decrypt(product)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould decrypt the product: %v", failed, err)
			}

			if math.Abs(value-6.0) > backend.Precision() {
				t.Fatalf("\t%s\tTest 2:\tShould multiply to 6.0, got %v.", failed, value)
			}
			t.Logf("\t%s\tTest 2:\tShould multiply to 6.0.", success)
		}

		t.Log("\tTest 3:\tWhen chaining multiplications past the modulus depth.")
		{
			const chain = 12

			balance, _ := backend.Encrypt(1000.0)
			growth, _ := backend.Encrypt(1.05)

			want := 1000.0
			for i := 0; i < chain; i++ {
				next, err := backend.Mul(balance, growth)
				if err != nil {
					t.Fatalf("\t%s\tTest 3:\tShould survive multiplication %d: %v", failed, i+1, err)
				}
				balance = next
				want *= 1.05
			}

			value, err := backend.Decrypt(balance)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould decrypt the chained product: %v", failed, err)
			}

			if math.Abs(value-want) > 1e-3 {
				t.Fatalf("\t%s\tTest 3:\tShould track %v after %d multiplications, got %v.", failed, want, chain, value)
			}
			t.Logf("\t%s\tTest 3:\tShould track %d chained multiplications.", success, chain)
		}
	}
}
