package pki

import (
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// ExportOpenSSHPublicKey renders an RSA or Ed25519 public key in
// OpenSSH authorized_keys format.
func ExportOpenSSHPublicKey(pub interface{}) ([]byte, error) {
	var sshKey ssh.PublicKey
	var err error
	switch k := pub.(type) {
	case *PublicKey:
		sshKey, err = ssh.NewPublicKey(&rsa.PublicKey{N: k.N, E: int(k.E.Int64())})
	case ed25519.PublicKey:
		sshKey, err = ssh.NewPublicKey(k)
	default:
		return nil, fmt.Errorf("pki: cannot export %T in OpenSSH format", pub)
	}
	if err != nil {
		return nil, err
	}
	return ssh.MarshalAuthorizedKey(sshKey), nil
}
