package blockcipher

import "fmt"

// ECBMode encrypts/decrypts each block independently.
// Update buffers input; padding can only be resolved once Finish knows
// no more bytes are coming, so emission happens at Finish.
type ECBMode struct {
	alg       Algorithm
	decrypt   bool
	padding   PaddingPolicy
	pending   []byte
}

func (m *ECBMode) Start(alg Algorithm, opts StartOptions) error {
	m.alg, m.decrypt, m.padding = alg, opts.Decrypt, opts.Padding
	m.pending = nil
	return nil
}

func (m *ECBMode) Update(input []byte) []byte {
	m.pending = append(m.pending, input...)
	return nil
}

func (m *ECBMode) Finish() ([]byte, bool, error) {
	bs := m.alg.BlockSize()
	if m.decrypt {
		if err := mustBlockAligned(m.pending, bs); err != nil {
			return nil, false, err
		}
		out := make([]byte, len(m.pending))
		for i := 0; i < len(m.pending); i += bs {
			m.alg.DecryptBlock(out[i:i+bs], m.pending[i:i+bs])
		}
		if m.padding == PadNone {
			return out, true, nil
		}
		unpadded, ok := pkcs7Unpad(out, bs)
		return unpadded, ok, nil
	}

	in := m.pending
	if m.padding == PadPKCS7 {
		in = pkcs7Pad(in, bs)
	} else if len(in)%bs != 0 {
		return nil, false, fmt.Errorf("blockcipher: ECB encrypt input not block-aligned")
	}
	out := make([]byte, len(in))
	for i := 0; i < len(in); i += bs {
		m.alg.EncryptBlock(out[i:i+bs], in[i:i+bs])
	}
	return out, true, nil
}

// CBCMode XORs each plaintext block with the previous ciphertext block
// (or IV for the first block); decryption reverses the chain.
type CBCMode struct {
	alg     Algorithm
	decrypt bool
	padding PaddingPolicy
	iv      []byte
	pending []byte
}

func (m *CBCMode) Start(alg Algorithm, opts StartOptions) error {
	if len(opts.IV) != alg.BlockSize() {
		return fmt.Errorf("blockcipher: CBC IV must be %d bytes", alg.BlockSize())
	}
	m.alg, m.decrypt, m.padding = alg, opts.Decrypt, opts.Padding
	m.iv = append([]byte(nil), opts.IV...)
	m.pending = nil
	return nil
}

func (m *CBCMode) Update(input []byte) []byte {
	m.pending = append(m.pending, input...)
	return nil
}

func (m *CBCMode) Finish() ([]byte, bool, error) {
	bs := m.alg.BlockSize()
	prev := m.iv

	if m.decrypt {
		if err := mustBlockAligned(m.pending, bs); err != nil {
			return nil, false, err
		}
		out := make([]byte, len(m.pending))
		for i := 0; i < len(m.pending); i += bs {
			block := m.pending[i : i+bs]
			var plain [64]byte // generous upper bound for supported block sizes
			m.alg.DecryptBlock(plain[:bs], block)
			for j := 0; j < bs; j++ {
				out[i+j] = plain[j] ^ prev[j]
			}
			prev = block
		}
		if m.padding == PadNone {
			return out, true, nil
		}
		unpadded, ok := pkcs7Unpad(out, bs)
		return unpadded, ok, nil
	}

	in := m.pending
	if m.padding == PadPKCS7 {
		in = pkcs7Pad(in, bs)
	} else if len(in)%bs != 0 {
		return nil, false, fmt.Errorf("blockcipher: CBC encrypt input not block-aligned")
	}
	out := make([]byte, len(in))
	xored := make([]byte, bs)
	for i := 0; i < len(in); i += bs {
		for j := 0; j < bs; j++ {
			xored[j] = in[i+j] ^ prev[j]
		}
		m.alg.EncryptBlock(out[i:i+bs], xored)
		prev = out[i : i+bs]
	}
	return out, true, nil
}
