package asn1x

// IntegerToDER encodes x as the shortest two's-complement big-endian
// byte string. The domain is the signed 32-bit range.
func IntegerToDER(x int32) []byte {
	b := []byte{byte(x >> 24), byte(x >> 16), byte(x >> 8), byte(x)}
	for len(b) > 1 {
		if b[0] == 0x00 && b[1]&0x80 == 0 {
			b = b[1:]
			continue
		}
		if b[0] == 0xFF && b[1]&0x80 != 0 {
			b = b[1:]
			continue
		}
		break
	}
	return b
}

// DERToInteger interprets b as a signed big-endian integer of at most
// four bytes.
func DERToInteger(b []byte) (int32, error) {
	if len(b) == 0 {
		return 0, errf(KindMalformedInteger, "empty integer")
	}
	if len(b) > 4 {
		return 0, &Error{Kind: KindIntegerTooLarge, ByteCount: len(b), Message: "integer exceeds 4 bytes"}
	}
	v := int32(int8(b[0])) // sign-extend from the first byte
	for _, x := range b[1:] {
		v = v<<8 | int32(x)
	}
	return v, nil
}
