package pki

import (
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/paymentlogs/cryptosuite/bignum"
	"github.com/paymentlogs/cryptosuite/digest"
)

// SignPSS signs an already-computed digest with EMSA-PSS. The salt
// length equals the digest length.
func SignPSS(rnd io.Reader, priv *PrivateKey, algorithm string, hashed []byte) ([]byte, error) {
	emBits := priv.N.BitLen() - 1
	emLen := (emBits + 7) / 8
	hLen := len(hashed)
	if emLen < 2*hLen+2 {
		return nil, fmt.Errorf("pki: modulus too small for PSS with %s", algorithm)
	}

	salt := make([]byte, hLen)
	if _, err := io.ReadFull(rnd, salt); err != nil {
		return nil, err
	}
	h, err := pssMPrime(algorithm, hashed, salt)
	if err != nil {
		return nil, err
	}

	db := make([]byte, emLen-hLen-1)
	db[len(db)-hLen-1] = 0x01
	copy(db[len(db)-hLen:], salt)
	dbMask, err := mgf1(algorithm, h, len(db))
	if err != nil {
		return nil, err
	}
	for i := range db {
		db[i] ^= dbMask[i]
	}
	db[0] &= 0xFF >> uint(8*emLen-emBits)

	em := make([]byte, emLen)
	copy(em, db)
	copy(em[len(db):], h)
	em[emLen-1] = 0xBC

	s := rawPrivate(priv, bignum.FromBytes(em))
	return bignum.ToBytesPadded(s, priv.Size()), nil
}

// VerifyPSS checks a PSS signature over hashed.
func VerifyPSS(pub *PublicKey, algorithm string, hashed, sig []byte) error {
	if len(sig) != pub.Size() {
		return ErrVerification
	}
	emBits := pub.N.BitLen() - 1
	emLen := (emBits + 7) / 8
	hLen := len(hashed)
	if emLen < 2*hLen+2 {
		return ErrVerification
	}

	em := bignum.ToBytesPadded(rawPublic(pub, bignum.FromBytes(sig)), emLen)
	if em[emLen-1] != 0xBC {
		return ErrVerification
	}
	db := append([]byte(nil), em[:emLen-hLen-1]...)
	h := em[emLen-hLen-1 : emLen-1]
	if em[0]&^(0xFF>>uint(8*emLen-emBits)) != 0 {
		return ErrVerification
	}

	dbMask, err := mgf1(algorithm, h, len(db))
	if err != nil {
		return ErrVerification
	}
	for i := range db {
		db[i] ^= dbMask[i]
	}
	db[0] &= 0xFF >> uint(8*emLen-emBits)

	for i := 0; i < len(db)-hLen-1; i++ {
		if db[i] != 0 {
			return ErrVerification
		}
	}
	if db[len(db)-hLen-1] != 0x01 {
		return ErrVerification
	}
	salt := db[len(db)-hLen:]

	expected, err := pssMPrime(algorithm, hashed, salt)
	if err != nil {
		return ErrVerification
	}
	if subtle.ConstantTimeCompare(h, expected) != 1 {
		return ErrVerification
	}
	return nil
}

// pssMPrime hashes the padded M' = 8 zero bytes || mHash || salt.
func pssMPrime(algorithm string, hashed, salt []byte) ([]byte, error) {
	h, err := digest.New(algorithm)
	if err != nil {
		return nil, err
	}
	h.Start()
	_, _ = h.Write(make([]byte, 8))
	_, _ = h.Write(hashed)
	_, _ = h.Write(salt)
	return h.Sum(), nil
}
