package digest

import "fmt"

// New constructs a Hash by algorithm name.
func New(algorithm string) (Hash, error) {
	switch algorithm {
	case "MD5":
		return NewMD5(), nil
	case "SHA-1":
		return NewSHA1(), nil
	case "SHA-256":
		return NewSHA256(), nil
	case "SHA-384":
		return NewSHA384(), nil
	case "SHA-512":
		return NewSHA512(), nil
	case "SHA-512/224":
		return NewSHA512_224(), nil
	case "SHA-512/256":
		return NewSHA512_256(), nil
	default:
		return nil, fmt.Errorf("digest: unsupported algorithm %q", algorithm)
	}
}
