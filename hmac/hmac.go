// Package hmac implements keyed-hash message authentication (RFC 2104)
// over any digest.Hash from this module's own digest package.
package hmac

import "github.com/paymentlogs/cryptosuite/digest"

const (
	ipad = 0x36
	opad = 0x5c
)

// HMAC computes HMAC_H(K, M) incrementally. Start("", nil) resets the
// running hash while keeping the previous algorithm and key, which the
// TLS PRF's inner P_hash loop depends on.
type HMAC struct {
	newHash func() (digest.Hash, error)
	h       digest.Hash
	key     []byte // already padded/hashed to block length
}

// New starts an HMAC instance for the named digest algorithm and key.
func New(algorithm string, key []byte) (*HMAC, error) {
	m := &HMAC{newHash: func() (digest.Hash, error) { return digest.New(algorithm) }}
	if err := m.Start(algorithm, key); err != nil {
		return nil, err
	}
	return m, nil
}

// Start (re)initializes the HMAC. Passing "" for algorithm and nil for
// key reuses the previously configured algorithm/key while resetting
// the running hash.
func (m *HMAC) Start(algorithm string, key []byte) error {
	if algorithm != "" || key != nil {
		name := algorithmOrDefault(algorithm, m)
		h, err := digest.New(name)
		if err != nil {
			return err
		}
		blockLen := h.BlockLen()
		k := key
		if len(k) > blockLen {
			h.Start()
			_, _ = h.Write(k)
			k = h.Sum()
		}
		padded := make([]byte, blockLen)
		copy(padded, k)
		m.key = padded
		m.newHash = func() (digest.Hash, error) { return digest.New(name) }
	}
	h, err := m.newHash()
	if err != nil {
		return err
	}
	m.h = h
	m.h.Start()
	inner := make([]byte, len(m.key))
	for i, b := range m.key {
		inner[i] = b ^ ipad
	}
	_, _ = m.h.Write(inner)
	return nil
}

func algorithmOrDefault(algorithm string, m *HMAC) string {
	if algorithm != "" {
		return algorithm
	}
	if m.h != nil {
		return m.h.Algorithm()
	}
	return algorithm
}

// Write feeds message bytes into the inner hash.
func (m *HMAC) Write(p []byte) (int, error) { return m.h.Write(p) }

// Sum finalizes and returns the MAC. The inner digest's running state
// is not mutated, but the outer hash is a fresh one-shot computation
// over the inner digest, so Sum is a true finalizer: call Start again
// to begin a new MAC.
func (m *HMAC) Sum() ([]byte, error) {
	inner := m.h.Sum()
	outerAlgo := m.h.Algorithm()
	outer, err := digest.New(outerAlgo)
	if err != nil {
		return nil, err
	}
	outer.Start()
	pad := make([]byte, len(m.key))
	for i, b := range m.key {
		pad[i] = b ^ opad
	}
	_, _ = outer.Write(pad)
	_, _ = outer.Write(inner)
	return outer.Sum(), nil
}

// Sum1 is a one-shot convenience wrapper: HMAC_H(key, data).
func Sum1(algorithm string, key, data []byte) ([]byte, error) {
	m, err := New(algorithm, key)
	if err != nil {
		return nil, err
	}
	if _, err := m.Write(data); err != nil {
		return nil, err
	}
	return m.Sum()
}
