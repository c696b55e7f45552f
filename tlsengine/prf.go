package tlsengine

import "github.com/paymentlogs/cryptosuite/hmac"

// pHash is the P_hash expansion from RFC 2246 section 5: A(i) chains
// HMACs of the seed, and each round contributes HMAC(secret, A(i) ||
// seed) to the output stream.
func pHash(algorithm string, secret, seed []byte, length int) ([]byte, error) {
	mac, err := hmac.New(algorithm, secret)
	if err != nil {
		return nil, err
	}
	a := seed
	var out []byte
	for len(out) < length {
		if err := mac.Start("", nil); err != nil {
			return nil, err
		}
		_, _ = mac.Write(a)
		a, err = mac.Sum()
		if err != nil {
			return nil, err
		}
		if err := mac.Start("", nil); err != nil {
			return nil, err
		}
		_, _ = mac.Write(a)
		_, _ = mac.Write(seed)
		round, err := mac.Sum()
		if err != nil {
			return nil, err
		}
		out = append(out, round...)
	}
	return out[:length], nil
}

// prfTLS1 is the TLS 1.0/1.1 pseudorandom function: P_MD5 over the
// first half of the secret XOR P_SHA1 over the second half, the halves
// overlapping by one byte when the secret length is odd.
func prfTLS1(secret []byte, label string, seed []byte, length int) ([]byte, error) {
	half := (len(secret) + 1) / 2
	s1 := secret[:half]
	s2 := secret[len(secret)-half:]
	labeled := append([]byte(label), seed...)

	md5Out, err := pHash("MD5", s1, labeled, length)
	if err != nil {
		return nil, err
	}
	sha1Out, err := pHash("SHA-1", s2, labeled, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = md5Out[i] ^ sha1Out[i]
	}
	return out, nil
}
