package blockcipher

import "fmt"

// rc2PiTable is RC2's fixed key-expansion permutation (RFC 2268).
var rc2PiTable = [256]byte{
	0xd9, 0x78, 0xf9, 0xc4, 0x19, 0xdd, 0xb5, 0xed, 0x28, 0xe9, 0xfd, 0x79, 0x4a, 0xa0, 0xd8, 0x9d,
	0xc6, 0x7e, 0x37, 0x83, 0x2b, 0x76, 0x53, 0x8e, 0x62, 0x4c, 0x64, 0x88, 0x44, 0x8b, 0xfb, 0xa2,
	0x17, 0x9a, 0x59, 0xf5, 0x87, 0xb3, 0x4f, 0x13, 0x61, 0x45, 0x6d, 0x8d, 0x09, 0x81, 0x7d, 0x32,
	0xbd, 0x8f, 0x40, 0xeb, 0x86, 0xb7, 0x7b, 0x0b, 0xf0, 0x95, 0x21, 0x22, 0x5c, 0x6b, 0x4e, 0x82,
	0x54, 0xd6, 0x65, 0x93, 0xce, 0x60, 0xb2, 0x1c, 0x73, 0x56, 0xc0, 0x14, 0xa7, 0x8c, 0xf1, 0xdc,
	0x12, 0x75, 0xca, 0x1f, 0x3b, 0xbe, 0xe4, 0xd1, 0x42, 0x3d, 0xd4, 0x30, 0xa3, 0x3c, 0xb6, 0x26,
	0x6f, 0xbf, 0x0e, 0xda, 0x46, 0x69, 0x07, 0x57, 0x27, 0xf2, 0x1d, 0x9b, 0xbc, 0x94, 0x43, 0x03,
	0xf8, 0x11, 0xc7, 0xf6, 0x90, 0xef, 0x3e, 0xe7, 0x06, 0xc3, 0xd5, 0x2f, 0xc8, 0x66, 0x1e, 0xd7,
	0x08, 0xe8, 0xea, 0xde, 0x80, 0x52, 0xee, 0xf7, 0x84, 0xaa, 0x72, 0xac, 0x35, 0x4d, 0x6a, 0x2a,
	0x96, 0x1a, 0xd2, 0x71, 0x5a, 0x15, 0x49, 0x74, 0x4b, 0x9f, 0xd0, 0x5e, 0x04, 0x18, 0xa4, 0xec,
	0xc2, 0xe0, 0x41, 0x6e, 0x0f, 0x51, 0xcb, 0xcc, 0x24, 0x91, 0xaf, 0x50, 0xa1, 0xf4, 0x70, 0x39,
	0x99, 0x7c, 0x3a, 0x85, 0x23, 0xb8, 0xb4, 0x7a, 0xfc, 0x02, 0x36, 0x5b, 0x25, 0x55, 0x97, 0x31,
	0x2d, 0x5d, 0xfa, 0x98, 0xe3, 0x8a, 0x92, 0xae, 0x05, 0xdf, 0x29, 0x10, 0x67, 0x6c, 0xba, 0xc9,
	0xd3, 0x00, 0xe6, 0xcf, 0xe1, 0x9e, 0xa8, 0x2c, 0x63, 0x16, 0x01, 0x3f, 0x58, 0xe2, 0x89, 0xa9,
	0x0d, 0x38, 0x34, 0x1b, 0xab, 0x33, 0xff, 0xb0, 0xbb, 0x48, 0x0c, 0x5f, 0xb9, 0xb1, 0xcd, 0x2e,
	0xc5, 0xf3, 0xdb, 0x47, 0xe5, 0xa5, 0x9c, 0x77, 0x0a, 0xa6, 0x20, 0x68, 0xfe, 0x7f, 0xc1, 0xad,
}

func rotl16(x uint16, s uint) uint16 { return x<<s | x>>(16-s) }
func rotr16(x uint16, s uint) uint16 { return x>>s | x<<(16-s) }

// RC2 implements the RC2 block cipher with a variable effective key
// size (RFC 2268).
type RC2 struct {
	k [64]uint16
}

// NewRC2 expands key (1..128 bytes) into the RC2 round-key schedule
// using effective key size effectiveBits (defaults to 8*len(key)).
func NewRC2(key []byte, effectiveBits int) (*RC2, error) {
	if len(key) < 1 || len(key) > 128 {
		return nil, fmt.Errorf("blockcipher: invalid RC2 key length %d", len(key))
	}
	if effectiveBits <= 0 {
		effectiveBits = len(key) * 8
	}
	t := len(key)
	t1 := effectiveBits
	t8 := (t1 + 7) / 8

	l := make([]byte, 128)
	copy(l, key)
	for i := t; i < 128; i++ {
		l[i] = rc2PiTable[(int(l[i-1])+int(l[i-t]))&0xFF]
	}
	if t1%8 == 0 {
		l[128-t8] = rc2PiTable[l[128-t8]]
	} else {
		l[128-t8] = rc2PiTable[l[128-t8]&(0xFF>>uint(8-t1%8))]
	}
	for i := 127 - t8; i >= 0; i-- {
		l[i] = rc2PiTable[l[i+1]^l[i+t8]]
	}

	r := &RC2{}
	for j := 0; j < 64; j++ {
		r.k[j] = uint16(l[2*j]) | uint16(l[2*j+1])<<8
	}
	return r, nil
}

func (r *RC2) BlockSize() int { return 8 }

func rc2Load(src []byte) [4]uint16 {
	var w [4]uint16
	for i := 0; i < 4; i++ {
		w[i] = uint16(src[2*i]) | uint16(src[2*i+1])<<8
	}
	return w
}

func rc2Store(dst []byte, w [4]uint16) {
	for i := 0; i < 4; i++ {
		dst[2*i] = byte(w[i])
		dst[2*i+1] = byte(w[i] >> 8)
	}
}

func (r *RC2) EncryptBlock(dst, src []byte) {
	w := rc2Load(src)
	j := 0
	for i := 0; i < 16; i++ {
		w[0] = rotl16(w[0]+r.k[j]+(w[3]&w[2])+(^w[3]&w[1]), 1)
		j++
		w[1] = rotl16(w[1]+r.k[j]+(w[0]&w[3])+(^w[0]&w[2]), 2)
		j++
		w[2] = rotl16(w[2]+r.k[j]+(w[1]&w[0])+(^w[1]&w[3]), 3)
		j++
		w[3] = rotl16(w[3]+r.k[j]+(w[2]&w[1])+(^w[2]&w[0]), 5)
		j++
		if i == 4 || i == 10 {
			w[0] = w[0] + r.k[w[3]&63]
			w[1] = w[1] + r.k[w[0]&63]
			w[2] = w[2] + r.k[w[1]&63]
			w[3] = w[3] + r.k[w[2]&63]
		}
	}
	rc2Store(dst, w)
}

func (r *RC2) DecryptBlock(dst, src []byte) {
	w := rc2Load(src)
	j := 63
	for i := 15; i >= 0; i-- {
		if i == 4 || i == 10 {
			w[3] = w[3] - r.k[w[2]&63]
			w[2] = w[2] - r.k[w[1]&63]
			w[1] = w[1] - r.k[w[0]&63]
			w[0] = w[0] - r.k[w[3]&63]
		}
		w[3] = rotr16(w[3], 5)
		w[3] = w[3] - r.k[j] - (w[2] & w[1]) - (^w[2] & w[0])
		j--
		w[2] = rotr16(w[2], 3)
		w[2] = w[2] - r.k[j] - (w[1] & w[0]) - (^w[1] & w[3])
		j--
		w[1] = rotr16(w[1], 2)
		w[1] = w[1] - r.k[j] - (w[0] & w[3]) - (^w[0] & w[2])
		j--
		w[0] = rotr16(w[0], 1)
		w[0] = w[0] - r.k[j] - (w[3] & w[2]) - (^w[3] & w[1])
		j--
	}
	rc2Store(dst, w)
}
