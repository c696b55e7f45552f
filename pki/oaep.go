package pki

import (
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/paymentlogs/cryptosuite/bignum"
)

// EncryptOAEP encrypts msg with EME-OAEP (PKCS#1 v2.2) under pub.
// algorithm names the hash for both lHash and MGF1; label may be nil.
func EncryptOAEP(rnd io.Reader, pub *PublicKey, msg, label []byte, algorithm string) ([]byte, error) {
	k := pub.Size()
	lHash, err := hashBytes(algorithm, label)
	if err != nil {
		return nil, err
	}
	hLen := len(lHash)
	if len(msg) > k-2*hLen-2 {
		return nil, fmt.Errorf("pki: message too long for OAEP with %d-byte modulus", k)
	}

	db := make([]byte, k-hLen-1)
	copy(db, lHash)
	db[len(db)-len(msg)-1] = 0x01
	copy(db[len(db)-len(msg):], msg)

	seed := make([]byte, hLen)
	if _, err := io.ReadFull(rnd, seed); err != nil {
		return nil, err
	}

	dbMask, err := mgf1(algorithm, seed, len(db))
	if err != nil {
		return nil, err
	}
	for i := range db {
		db[i] ^= dbMask[i]
	}
	seedMask, err := mgf1(algorithm, db, hLen)
	if err != nil {
		return nil, err
	}
	for i := range seed {
		seed[i] ^= seedMask[i]
	}

	em := make([]byte, k)
	copy(em[1:], seed)
	copy(em[1+hLen:], db)
	c := rawPublic(pub, bignum.FromBytes(em))
	return bignum.ToBytesPadded(c, k), nil
}

// DecryptOAEP reverses EncryptOAEP. The padding scan covers the whole
// data block regardless of where the 0x01 separator sits, and every
// validity condition folds into one final constant-time decision.
func DecryptOAEP(priv *PrivateKey, ct, label []byte, algorithm string) ([]byte, error) {
	k := priv.Size()
	lHash, err := hashBytes(algorithm, label)
	if err != nil {
		return nil, err
	}
	hLen := len(lHash)
	if len(ct) != k || k < 2*hLen+2 {
		return nil, ErrDecryption
	}

	em := bignum.ToBytesPadded(rawPrivate(priv, bignum.FromBytes(ct)), k)
	firstByteIsZero := subtle.ConstantTimeByteEq(em[0], 0)

	seed := append([]byte(nil), em[1:1+hLen]...)
	db := append([]byte(nil), em[1+hLen:]...)

	seedMask, err := mgf1(algorithm, db, hLen)
	if err != nil {
		return nil, ErrDecryption
	}
	for i := range seed {
		seed[i] ^= seedMask[i]
	}
	dbMask, err := mgf1(algorithm, seed, len(db))
	if err != nil {
		return nil, ErrDecryption
	}
	for i := range db {
		db[i] ^= dbMask[i]
	}

	lHashOK := subtle.ConstantTimeCompare(lHash, db[:hLen])

	// Scan the full padding region for the 0x01 separator; bytes before
	// it must be zero. No early exit.
	rest := db[hLen:]
	index := 0
	looking := 1
	invalid := 0
	for i := 0; i < len(rest); i++ {
		equals0 := subtle.ConstantTimeByteEq(rest[i], 0)
		equals1 := subtle.ConstantTimeByteEq(rest[i], 1)
		index = subtle.ConstantTimeSelect(looking&equals1, i, index)
		looking = subtle.ConstantTimeSelect(equals1, 0, looking)
		invalid = subtle.ConstantTimeSelect(looking&(1-equals0), 1, invalid)
	}

	valid := firstByteIsZero & lHashOK & (1 - invalid) & (1 - looking)
	if valid != 1 {
		return nil, ErrDecryption
	}
	return rest[index+1:], nil
}
