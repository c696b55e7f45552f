package blockcipher

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha20Poly1305Mode adapts the x/crypto AEAD to the Mode interface
// so callers can drive it with the same Start/Update/Finish sequence
// as GCM. It is keyed at construction and ignores the Algorithm
// argument to Start.
type ChaCha20Poly1305Mode struct {
	aead        cipher.AEAD
	nonce       []byte
	aad         []byte
	decrypt     bool
	expectedTag []byte
	pending     []byte
}

// NewChaCha20Poly1305 builds the mode for a 32-byte key.
func NewChaCha20Poly1305(key []byte) (*ChaCha20Poly1305Mode, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &ChaCha20Poly1305Mode{aead: aead}, nil
}

func (m *ChaCha20Poly1305Mode) Start(_ Algorithm, opts StartOptions) error {
	if len(opts.IV) != chacha20poly1305.NonceSize {
		return fmt.Errorf("blockcipher: ChaCha20-Poly1305 nonce must be %d bytes", chacha20poly1305.NonceSize)
	}
	if opts.Decrypt && len(opts.Tag) != chacha20poly1305.Overhead {
		return fmt.Errorf("blockcipher: ChaCha20-Poly1305 decryption requires a %d-byte tag", chacha20poly1305.Overhead)
	}
	m.nonce = append([]byte(nil), opts.IV...)
	m.aad = append([]byte(nil), opts.AdditionalData...)
	m.expectedTag = append([]byte(nil), opts.Tag...)
	m.decrypt = opts.Decrypt
	m.pending = nil
	return nil
}

func (m *ChaCha20Poly1305Mode) Update(input []byte) []byte {
	m.pending = append(m.pending, input...)
	return nil
}

func (m *ChaCha20Poly1305Mode) Finish() ([]byte, bool, error) {
	if m.decrypt {
		pt, err := m.aead.Open(nil, m.nonce, append(m.pending, m.expectedTag...), m.aad)
		if err != nil {
			return nil, false, nil
		}
		return pt, true, nil
	}
	return m.aead.Seal(nil, m.nonce, m.pending, m.aad), true, nil
}
