// Package bignum is a thin façade over math/big exposing only the
// arbitrary-precision operations the RSA/OAEP/PSS code in pki
// consumes.
package bignum

import (
	"crypto/rand"
	"io"
	"math/big"
)

// Int is an arbitrary-precision signed integer.
type Int = big.Int

// FromBytes interprets b as an unsigned big-endian integer.
func FromBytes(b []byte) *Int {
	return new(big.Int).SetBytes(b)
}

// ToBytes renders x as an unsigned big-endian byte string with no
// leading zero byte; x == 0 renders as an empty slice.
func ToBytes(x *Int) []byte {
	return x.Bytes()
}

// ToBytesPadded renders x as an unsigned big-endian byte string
// left-padded with zeros to exactly size bytes, as required by
// PKCS#1 encoded-message assembly.
func ToBytesPadded(x *Int, size int) []byte {
	b := x.Bytes()
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// ModPow computes base^exp mod m.
func ModPow(base, exp, m *Int) *Int {
	return new(big.Int).Exp(base, exp, m)
}

// ModInverse computes the modular inverse of x mod m, or nil if none
// exists (x and m are not coprime).
func ModInverse(x, m *Int) *Int {
	return new(big.Int).ModInverse(x, m)
}

// GCD computes the greatest common divisor of a and b.
func GCD(a, b *Int) *Int {
	return new(big.Int).GCD(nil, nil, a, b)
}

// IsProbablyPrime runs Miller-Rabin (via math/big) with n rounds.
func IsProbablyPrime(x *Int, n int) bool {
	return x.ProbablyPrime(n)
}

// RandomPrime returns a random prime of the given bit length, read
// from rnd (typically crypto/rand.Reader or a prng.Pool adapter).
func RandomPrime(rnd io.Reader, bits int) (*Int, error) {
	return rand.Prime(rnd, bits)
}

// RandomBelow returns a uniform random integer in [0, max).
func RandomBelow(rnd io.Reader, max *Int) (*Int, error) {
	return rand.Int(rnd, max)
}

// Cmp compares a and b.
func Cmp(a, b *Int) int { return a.Cmp(b) }

// Sub, Add, Mul, Mod are exposed directly since math/big's receiver
// style already matches what callers need; these thin wrappers keep
// pki's call sites free of *big.Int allocation boilerplate.

func Sub(a, b *Int) *Int { return new(big.Int).Sub(a, b) }
func Add(a, b *Int) *Int { return new(big.Int).Add(a, b) }
func Mul(a, b *Int) *Int { return new(big.Int).Mul(a, b) }
func Mod(a, m *Int) *Int { return new(big.Int).Mod(a, m) }
func One() *Int          { return big.NewInt(1) }
