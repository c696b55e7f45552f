// Package pki implements RSA with PKCS#1 v1.5, OAEP, and PSS padding,
// Ed25519 signatures, PBKDF2, and key import/export over this module's
// ASN.1 and PEM codecs.
package pki

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/paymentlogs/cryptosuite/bignum"
	"github.com/paymentlogs/cryptosuite/digest"
)

// PublicKey is an RSA public key.
type PublicKey struct {
	N *bignum.Int
	E *bignum.Int
}

// Size returns the modulus length in bytes.
func (k *PublicKey) Size() int { return (k.N.BitLen() + 7) / 8 }

// PrivateKey is an RSA private key with CRT parameters.
type PrivateKey struct {
	PublicKey
	D    *bignum.Int
	P    *bignum.Int
	Q    *bignum.Int
	DP   *bignum.Int
	DQ   *bignum.Int
	QInv *bignum.Int
}

// ErrDecryption is the uniform failure for every padding problem on
// decrypt, deliberately carrying no detail.
var ErrDecryption = errors.New("pki: decryption error")

// ErrVerification is the uniform signature verification failure.
var ErrVerification = errors.New("pki: verification error")

// GenerateKey produces an RSA key of the given modulus bit length with
// public exponent 65537.
func GenerateKey(rnd io.Reader, bits int) (*PrivateKey, error) {
	if bits < 512 {
		return nil, fmt.Errorf("pki: modulus of %d bits is too small", bits)
	}
	e := bignum.FromBytes([]byte{0x01, 0x00, 0x01})
	one := bignum.One()
	for {
		p, err := bignum.RandomPrime(rnd, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := bignum.RandomPrime(rnd, bits-bits/2)
		if err != nil {
			return nil, err
		}
		if bignum.Cmp(p, q) == 0 {
			continue
		}
		n := bignum.Mul(p, q)
		if n.BitLen() != bits {
			continue
		}
		phi := bignum.Mul(bignum.Sub(p, one), bignum.Sub(q, one))
		d := bignum.ModInverse(e, phi)
		if d == nil {
			continue
		}
		return &PrivateKey{
			PublicKey: PublicKey{N: n, E: e},
			D:         d,
			P:         p,
			Q:         q,
			DP:        bignum.Mod(d, bignum.Sub(p, one)),
			DQ:        bignum.Mod(d, bignum.Sub(q, one)),
			QInv:      bignum.ModInverse(q, p),
		}, nil
	}
}

// rawPublic applies the public operation m^e mod n.
func rawPublic(pub *PublicKey, m *bignum.Int) *bignum.Int {
	return bignum.ModPow(m, pub.E, pub.N)
}

// rawPrivate applies the private operation via the CRT when the
// parameters are present.
func rawPrivate(priv *PrivateKey, c *bignum.Int) *bignum.Int {
	if priv.P == nil || priv.Q == nil || priv.QInv == nil {
		return bignum.ModPow(c, priv.D, priv.N)
	}
	m1 := bignum.ModPow(c, priv.DP, priv.P)
	m2 := bignum.ModPow(c, priv.DQ, priv.Q)
	h := bignum.Mod(bignum.Mul(priv.QInv, bignum.Sub(m1, m2)), priv.P)
	return bignum.Add(m2, bignum.Mul(h, priv.Q))
}

// EncryptPKCS1v15 pads msg per EME-PKCS1-v1_5 (block type 2) and
// encrypts it.
func EncryptPKCS1v15(rnd io.Reader, pub *PublicKey, msg []byte) ([]byte, error) {
	k := pub.Size()
	if len(msg) > k-11 {
		return nil, fmt.Errorf("pki: message too long for %d-byte modulus", k)
	}
	em := make([]byte, k)
	em[1] = 0x02
	ps := em[2 : k-len(msg)-1]
	if err := fillNonZero(rnd, ps); err != nil {
		return nil, err
	}
	copy(em[k-len(msg):], msg)
	c := rawPublic(pub, bignum.FromBytes(em))
	return bignum.ToBytesPadded(c, k), nil
}

func fillNonZero(rnd io.Reader, ps []byte) error {
	if _, err := io.ReadFull(rnd, ps); err != nil {
		return err
	}
	for i := range ps {
		for ps[i] == 0 {
			var b [1]byte
			if _, err := io.ReadFull(rnd, b[:]); err != nil {
				return err
			}
			ps[i] = b[0]
		}
	}
	return nil
}

// DecryptPKCS1v15 reverses EncryptPKCS1v15. The padding scan touches
// the whole encoded message regardless of where it fails.
func DecryptPKCS1v15(priv *PrivateKey, ct []byte) ([]byte, error) {
	k := priv.Size()
	if len(ct) != k || k < 11 {
		return nil, ErrDecryption
	}
	em := bignum.ToBytesPadded(rawPrivate(priv, bignum.FromBytes(ct)), k)

	firstZero := subtle.ConstantTimeByteEq(em[0], 0)
	secondTwo := subtle.ConstantTimeByteEq(em[1], 2)
	// Find the 0x00 separator without branching on secret bytes: track
	// the first zero index at or after the mandatory 8 padding bytes.
	sepIndex := 0
	lookingDone := 0
	for i := 2; i < k; i++ {
		isZero := subtle.ConstantTimeByteEq(em[i], 0)
		validPos := 0
		if i >= 10 {
			validPos = 1
		}
		found := isZero & validPos & (1 - lookingDone)
		sepIndex = subtle.ConstantTimeSelect(found, i, sepIndex)
		lookingDone |= found
	}
	valid := firstZero & secondTwo & lookingDone
	if valid != 1 {
		return nil, ErrDecryption
	}
	return em[sepIndex+1:], nil
}

// signEncode builds the EMSA-PKCS1-v1_5 block. An empty algorithm
// omits the DigestInfo wrapper, which TLS 1.0/1.1 certificate verify
// signatures require.
func signEncode(algorithm string, hashed []byte, k int) ([]byte, error) {
	t := hashed
	if algorithm != "" {
		var err error
		t, err = digestInfo(algorithm, hashed)
		if err != nil {
			return nil, err
		}
	}
	if k < len(t)+11 {
		return nil, fmt.Errorf("pki: modulus too small for %s signature", algorithm)
	}
	em := make([]byte, k)
	em[1] = 0x01
	for i := 2; i < k-len(t)-1; i++ {
		em[i] = 0xFF
	}
	copy(em[k-len(t):], t)
	return em, nil
}

// SignPKCS1v15 signs an already-computed digest. algorithm names the
// hash used ("SHA-256", ...); pass "" to sign the raw digest without a
// DigestInfo wrapper.
func SignPKCS1v15(priv *PrivateKey, algorithm string, hashed []byte) ([]byte, error) {
	em, err := signEncode(algorithm, hashed, priv.Size())
	if err != nil {
		return nil, err
	}
	s := rawPrivate(priv, bignum.FromBytes(em))
	return bignum.ToBytesPadded(s, priv.Size()), nil
}

// VerifyPKCS1v15 checks sig over hashed under pub.
func VerifyPKCS1v15(pub *PublicKey, algorithm string, hashed, sig []byte) error {
	k := pub.Size()
	if len(sig) != k {
		return ErrVerification
	}
	expected, err := signEncode(algorithm, hashed, k)
	if err != nil {
		return ErrVerification
	}
	em := bignum.ToBytesPadded(rawPublic(pub, bignum.FromBytes(sig)), k)
	if subtle.ConstantTimeCompare(em, expected) != 1 {
		return ErrVerification
	}
	return nil
}

// mgf1 is the PKCS#1 mask generation function over the named hash.
func mgf1(algorithm string, seed []byte, length int) ([]byte, error) {
	h, err := digest.New(algorithm)
	if err != nil {
		return nil, err
	}
	var out []byte
	var counter uint32
	for len(out) < length {
		h.Start()
		_, _ = h.Write(seed)
		_, _ = h.Write([]byte{
			byte(counter >> 24), byte(counter >> 16), byte(counter >> 8), byte(counter),
		})
		out = append(out, h.Sum()...)
		counter++
	}
	return out[:length], nil
}

func hashBytes(algorithm string, data []byte) ([]byte, error) {
	h, err := digest.New(algorithm)
	if err != nil {
		return nil, err
	}
	h.Start()
	_, _ = h.Write(data)
	return h.Sum(), nil
}
