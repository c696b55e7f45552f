// Package prng implements a Fortuna-style pooled generator. Entropy
// from a pluggable platform source is accumulated into pools through a
// hash, and output keys an AES-256 counter generator that is rekeyed
// after every request.
package prng

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/paymentlogs/cryptosuite/blockcipher"
	"github.com/paymentlogs/cryptosuite/digest"
)

const (
	numPools   = 32
	reseedMin  = 64   // bytes of fresh entropy in pool 0 before a reseed
	maxRequest = 1 << 20
)

// Pool is a shared generator. The zero value is not usable; call New.
// All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	source  io.Reader
	pools   [numPools]digest.Hash
	pool0   int // bytes fed into pool 0 since the last reseed
	reseeds uint64
	key     [32]byte
	counter [16]byte
	seeded  bool
}

// New builds a pool drawing from source, or crypto/rand when source is
// nil.
func New(source io.Reader) (*Pool, error) {
	if source == nil {
		source = rand.Reader
	}
	p := &Pool{source: source}
	for i := range p.pools {
		p.pools[i] = digest.NewSHA256()
		p.pools[i].Start()
	}
	if err := p.collect(64); err != nil {
		return nil, err
	}
	return p, nil
}

// collect feeds n bytes from the platform source across the pools.
// Caller holds no lock during construction; AddEntropy takes it.
func (p *Pool) collect(n int) error {
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.source, buf); err != nil {
		return fmt.Errorf("prng: platform source: %w", err)
	}
	p.AddEntropy(buf)
	return nil
}

// AddEntropy spreads event bytes across the pools round-robin.
func (p *Pool) AddEntropy(event []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range event {
		pool := i % numPools
		_, _ = p.pools[pool].Write([]byte{b})
		if pool == 0 {
			p.pool0++
		}
	}
}

// reseed folds the selected pools' digests into the generator key.
// Pool i participates in every 2^i-th reseed.
func (p *Pool) reseed() {
	p.reseeds++
	h := digest.NewSHA256()
	h.Start()
	_, _ = h.Write(p.key[:])
	for i := 0; i < numPools; i++ {
		if p.reseeds%(1<<uint(i)) != 0 {
			break
		}
		_, _ = h.Write(p.pools[i].Sum())
		p.pools[i].Start()
	}
	copy(p.key[:], h.Sum())
	p.pool0 = 0
	p.seeded = true
}

// GetBytes fills and returns n random bytes.
func (p *Pool) GetBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	if err := p.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Read fills buf with random bytes. Requests larger than 1 MiB are
// split internally so the generator rekeys between chunks.
func (p *Pool) Read(buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(buf) > 0 {
		if !p.seeded || p.pool0 >= reseedMin {
			p.reseed()
		}
		chunk := buf
		if len(chunk) > maxRequest {
			chunk = chunk[:maxRequest]
		}
		if err := p.generate(chunk); err != nil {
			return err
		}
		buf = buf[len(chunk):]
	}
	return nil
}

// generate produces len(out) bytes from the AES-256 counter generator,
// then replaces the key with two further counter blocks so earlier
// output cannot be reconstructed from a later state capture.
func (p *Pool) generate(out []byte) error {
	aes, err := blockcipher.NewAES(p.key[:])
	if err != nil {
		return err
	}
	var block [16]byte
	for off := 0; off < len(out); off += 16 {
		p.next(aes, &block)
		copy(out[off:], block[:])
	}
	var newKey [32]byte
	p.next(aes, &block)
	copy(newKey[:16], block[:])
	p.next(aes, &block)
	copy(newKey[16:], block[:])
	p.key = newKey
	return nil
}

func (p *Pool) next(aes blockcipher.Algorithm, block *[16]byte) {
	for i := 15; i >= 0; i-- {
		p.counter[i]++
		if p.counter[i] != 0 {
			break
		}
	}
	aes.EncryptBlock(block[:], p.counter[:])
}

// Reader adapts the pool to io.Reader for APIs that take one.
type Reader struct{ Pool *Pool }

func (r Reader) Read(b []byte) (int, error) {
	if err := r.Pool.Read(b); err != nil {
		return 0, err
	}
	return len(b), nil
}
