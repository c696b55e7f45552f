package pki

import (
	"hash"

	"golang.org/x/crypto/pbkdf2"

	"github.com/paymentlogs/cryptosuite/digest"
)

// hashAdapter presents a digest.Hash as a standard hash.Hash so it can
// drive x/crypto primitives.
type hashAdapter struct{ d digest.Hash }

func (h hashAdapter) Write(p []byte) (int, error) { return h.d.Write(p) }
func (h hashAdapter) Sum(b []byte) []byte         { return append(b, h.d.Sum()...) }
func (h hashAdapter) Reset()                      { h.d.Start() }
func (h hashAdapter) Size() int                   { return h.d.Size() }
func (h hashAdapter) BlockSize() int              { return h.d.BlockLen() }

// PBKDF2 derives keyLen bytes from password and salt with the named
// digest algorithm, e.g. deriving PEM body encryption keys from a
// DEK-Info passphrase.
func PBKDF2(password, salt []byte, iterations, keyLen int, algorithm string) ([]byte, error) {
	if _, err := digest.New(algorithm); err != nil {
		return nil, err
	}
	return pbkdf2.Key(password, salt, iterations, keyLen, func() hash.Hash {
		d, _ := digest.New(algorithm)
		d.Start()
		return hashAdapter{d: d}
	}), nil
}
