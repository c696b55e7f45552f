package pki

import (
	"crypto/ed25519"
	"io"
)

// GenerateEd25519 produces a fresh Ed25519 key pair from rnd.
func GenerateEd25519(rnd io.Reader) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rnd)
}

// SignEd25519 signs msg (Ed25519 hashes internally; msg is the full
// message, not a digest).
func SignEd25519(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// VerifyEd25519 reports whether sig is a valid signature of msg.
func VerifyEd25519(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}
