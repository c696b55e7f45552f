package tlsengine

import (
	"crypto/subtle"

	"github.com/paymentlogs/cryptosuite/blockcipher"
	"github.com/paymentlogs/cryptosuite/hmac"
)

// Cipher suite identifiers. The engine negotiates TLS 1.0/1.1 with RSA
// key exchange only.
const (
	TLS_RSA_WITH_3DES_EDE_CBC_SHA uint16 = 0x000a
	TLS_RSA_WITH_AES_128_CBC_SHA  uint16 = 0x002f
	TLS_RSA_WITH_AES_256_CBC_SHA  uint16 = 0x0035
)

// A cipherSuite is a specific combination of cipher and MAC function.
type cipherSuite struct {
	id uint16
	// the lengths, in bytes, of the key material needed for each component.
	keyLen int
	macLen int
	ivLen  int
	cipher func(key []byte) (blockcipher.Algorithm, error)
	mac    func(macKey []byte) (macFunction, error)
}

var cipherSuites = []*cipherSuite{
	{TLS_RSA_WITH_AES_128_CBC_SHA, 16, 20, 16, cipherAES, macSHA1},
	{TLS_RSA_WITH_AES_256_CBC_SHA, 32, 20, 16, cipherAES, macSHA1},
	{TLS_RSA_WITH_3DES_EDE_CBC_SHA, 24, 20, 8, cipher3DES, macSHA1},
}

func cipherAES(key []byte) (blockcipher.Algorithm, error)  { return blockcipher.NewAES(key) }
func cipher3DES(key []byte) (blockcipher.Algorithm, error) { return blockcipher.NewTripleDES(key) }

func macSHA1(key []byte) (macFunction, error) {
	mac, err := hmac.New("SHA-1", key)
	if err != nil {
		return nil, err
	}
	return &tls10MAC{mac: mac, size: 20}, nil
}

// macFunction computes the record-layer MAC over the implicit sequence
// number, the record header, and the fragment.
type macFunction interface {
	// Size returns the length of the MAC.
	Size() int
	// MAC computes the MAC of (seq, header, data). The extra data is
	// fed through an equivalent computation after obtaining the result
	// to normalize timing between valid- and invalid-padding paths.
	MAC(seq, header, data, extra []byte) ([]byte, error)
}

type tls10MAC struct {
	mac  *hmac.HMAC
	size int
}

func (m *tls10MAC) Size() int { return m.size }

func (m *tls10MAC) MAC(seq, header, data, extra []byte) ([]byte, error) {
	if err := m.mac.Start("", nil); err != nil {
		return nil, err
	}
	_, _ = m.mac.Write(seq)
	_, _ = m.mac.Write(header)
	_, _ = m.mac.Write(data)
	out, err := m.mac.Sum()
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		if err := m.mac.Start("", nil); err == nil {
			_, _ = m.mac.Write(extra)
			_, _ = m.mac.Sum()
		}
	}
	return out, nil
}

// macEqual compares two MACs in constant time.
func macEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// selectedCipherSuite returns the suite for id, or nil.
func selectedCipherSuite(id uint16) *cipherSuite {
	for _, s := range cipherSuites {
		if s.id == id {
			return s
		}
	}
	return nil
}

// mutualCipherSuite walks have, the list the peer offered, and picks
// the first suite this engine implements in our preference order.
func mutualCipherSuite(have []uint16) *cipherSuite {
	for _, s := range cipherSuites {
		for _, id := range have {
			if s.id == id {
				return s
			}
		}
	}
	return nil
}

// defaultCipherSuiteIDs lists every implemented suite in preference
// order.
func defaultCipherSuiteIDs() []uint16 {
	ids := make([]uint16, len(cipherSuites))
	for i, s := range cipherSuites {
		ids[i] = s.id
	}
	return ids
}
