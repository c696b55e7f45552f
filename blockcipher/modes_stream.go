package blockcipher

import "fmt"

// CFBMode is cipher feedback with a segment size equal to the block
// size. The feedback register starts as the IV and is refilled with
// each ciphertext block as it is produced (encrypt) or consumed
// (decrypt). No padding; output length equals input length.
type CFBMode struct {
	alg     Algorithm
	decrypt bool
	reg     []byte
	ks      []byte
	pos     int
}

func (m *CFBMode) Start(alg Algorithm, opts StartOptions) error {
	bs := alg.BlockSize()
	if len(opts.IV) != bs {
		return fmt.Errorf("blockcipher: CFB IV must be %d bytes", bs)
	}
	m.alg, m.decrypt = alg, opts.Decrypt
	m.reg = append([]byte(nil), opts.IV...)
	m.ks = make([]byte, bs)
	m.pos = bs
	return nil
}

func (m *CFBMode) Update(input []byte) []byte {
	bs := m.alg.BlockSize()
	out := make([]byte, len(input))
	for i, b := range input {
		if m.pos == bs {
			m.alg.EncryptBlock(m.ks, m.reg)
			m.pos = 0
		}
		o := b ^ m.ks[m.pos]
		if m.decrypt {
			m.reg[m.pos] = b
		} else {
			m.reg[m.pos] = o
		}
		out[i] = o
		m.pos++
	}
	return out
}

func (m *CFBMode) Finish() ([]byte, bool, error) { return nil, true, nil }

// OFBMode generates its keystream by iterating the block cipher over
// the IV, independent of the data; encryption and decryption are the
// same XOR. No padding.
type OFBMode struct {
	alg Algorithm
	ks  []byte
	pos int
}

func (m *OFBMode) Start(alg Algorithm, opts StartOptions) error {
	bs := alg.BlockSize()
	if len(opts.IV) != bs {
		return fmt.Errorf("blockcipher: OFB IV must be %d bytes", bs)
	}
	m.alg = alg
	m.ks = append([]byte(nil), opts.IV...)
	m.pos = bs
	return nil
}

func (m *OFBMode) Update(input []byte) []byte {
	bs := m.alg.BlockSize()
	out := make([]byte, len(input))
	for i, b := range input {
		if m.pos == bs {
			m.alg.EncryptBlock(m.ks, m.ks)
			m.pos = 0
		}
		out[i] = b ^ m.ks[m.pos]
		m.pos++
	}
	return out
}

func (m *OFBMode) Finish() ([]byte, bool, error) { return nil, true, nil }

// CTRMode XORs the input with E(counter-block) keystream. The counter
// occupies the low 8 bytes of the IV (the whole block for 8-byte
// ciphers) and increments big-endian after each keystream block.
type CTRMode struct {
	alg     Algorithm
	counter []byte
	ks      []byte
	pos     int
}

func (m *CTRMode) Start(alg Algorithm, opts StartOptions) error {
	bs := alg.BlockSize()
	if len(opts.IV) != bs {
		return fmt.Errorf("blockcipher: CTR IV must be %d bytes", bs)
	}
	m.alg = alg
	m.counter = append([]byte(nil), opts.IV...)
	m.ks = make([]byte, bs)
	m.pos = bs
	return nil
}

func (m *CTRMode) Update(input []byte) []byte {
	bs := m.alg.BlockSize()
	out := make([]byte, len(input))
	for i, b := range input {
		if m.pos == bs {
			m.alg.EncryptBlock(m.ks, m.counter)
			incCounter(m.counter)
			m.pos = 0
		}
		out[i] = b ^ m.ks[m.pos]
		m.pos++
	}
	return out
}

func (m *CTRMode) Finish() ([]byte, bool, error) { return nil, true, nil }

// incCounter increments the trailing counter field big-endian, carrying
// across at most the low 8 bytes.
func incCounter(block []byte) {
	width := 8
	if len(block) < width {
		width = len(block)
	}
	for i := len(block) - 1; i >= len(block)-width; i-- {
		block[i]++
		if block[i] != 0 {
			return
		}
	}
}
