// Package blockcipher implements a block-cipher framework: an
// Algorithm (key schedule + single-block op) paired with a pluggable
// streaming Mode (ECB/CBC/CFB/OFB/CTR/GCM), built on this module's own
// AES/3DES/RC2 primitives instead of crypto/aes, crypto/des.
package blockcipher

import "fmt"

// Algorithm is a keyed block cipher capable of encrypting or
// decrypting exactly one block at a time.
type Algorithm interface {
	// BlockSize returns the cipher's block size in bytes.
	BlockSize() int
	// EncryptBlock encrypts src into dst; both must be BlockSize() long.
	EncryptBlock(dst, src []byte)
	// DecryptBlock decrypts src into dst; both must be BlockSize() long.
	DecryptBlock(dst, src []byte)
}

// PaddingPolicy controls whether a non-AEAD mode pads its plaintext.
type PaddingPolicy int

const (
	// PadPKCS7 always adds 1..BlockSize() pad bytes, a full block when
	// the input is already block-aligned.
	PadPKCS7 PaddingPolicy = iota
	// PadNone disables padding (required for CFB/OFB/CTR/GCM).
	PadNone
)

// StartOptions configures a Mode for one encrypt or decrypt pass.
type StartOptions struct {
	IV             []byte
	AdditionalData []byte // GCM AAD
	Tag            []byte // GCM: expected tag, decryption only
	Decrypt        bool
	Padding        PaddingPolicy
}

// Mode is a streaming cipher mode: Start configures it, Update may be
// called any number of times with any chunking, Finish flushes
// padding/tag material. For AEAD modes, Finish's ok result reports tag
// verification; for padded modes it reports padding validity.
type Mode interface {
	Start(alg Algorithm, opts StartOptions) error
	Update(input []byte) (output []byte)
	Finish() (output []byte, ok bool, err error)
}

// NewAlgorithm constructs a named Algorithm ("AES", "3DES", "RC2");
// the key length selects the variant.
func NewAlgorithm(name string, key []byte) (Algorithm, error) {
	switch name {
	case "AES":
		return NewAES(key)
	case "3DES":
		return NewTripleDES(key)
	case "RC2":
		return NewRC2(key, len(key)*8)
	default:
		return nil, fmt.Errorf("blockcipher: unsupported algorithm %q", name)
	}
}

// NewMode constructs a named Mode ("ECB", "CBC", "CFB", "OFB", "CTR",
// "GCM"). A mode is algorithm-agnostic given any Algorithm of the
// right block size.
func NewMode(modeName string) (Mode, error) {
	switch modeName {
	case "ECB":
		return &ECBMode{}, nil
	case "CBC":
		return &CBCMode{}, nil
	case "CFB":
		return &CFBMode{}, nil
	case "OFB":
		return &OFBMode{}, nil
	case "CTR":
		return &CTRMode{}, nil
	case "GCM":
		return &GCMMode{}, nil
	default:
		return nil, fmt.Errorf("blockcipher: unsupported mode %q", modeName)
	}
}
