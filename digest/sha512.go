package digest

// The SHA-512 family uses native uint64 compression state. The
// message-length counter is wide enough for inputs whose bit length
// exceeds 2^64, handled with an explicit hi/lo uint64 pair for the
// 128-bit length footer.

var sha512Init = [8]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b, 0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f, 0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
}

var sha384Init = [8]uint64{
	0xcbbb9d5dc1059ed8, 0x629a292a367cd507, 0x9159015a3070dd17, 0x152fecd8f70e5939,
	0x67332667ffc00b31, 0x8eb44a8768581511, 0xdb0c2e0d64f98fa7, 0x47b5481dbefa4fa4,
}

var sha512_224Init = [8]uint64{
	0x8c3d37c819544da2, 0x73e1996689dcd4d6, 0x1dfab7ae32ff9c82, 0x679dd514582f9fcf,
	0x0f6d2b697bd44da8, 0x77e36f7304c48942, 0x3f9d85a86a1d36c8, 0x1112e6ad91d692a1,
}

var sha512_256Init = [8]uint64{
	0x22312194fc2bf72c, 0x9f555fa3c84c64c2, 0x2393b86b6f53b151, 0x963877195940eabd,
	0x96283ee2a88effe3, 0xbe5e1e2553863992, 0x2b0199fc2c85b8aa, 0x0eb72ddc81c52ca2,
}

var sha512K = [80]uint64{
	0x428a2f98d728ae22, 0x7137449123ef65cd, 0xb5c0fbcfec4d3b2f, 0xe9b5dba58189dbbc,
	0x3956c25bf348b538, 0x59f111f1b605d019, 0x923f82a4af194f9b, 0xab1c5ed5da6d8118,
	0xd807aa98a3030242, 0x12835b0145706fbe, 0x243185be4ee4b28c, 0x550c7dc3d5ffb4e2,
	0x72be5d74f27b896f, 0x80deb1fe3b1696b1, 0x9bdc06a725c71235, 0xc19bf174cf692694,
	0xe49b69c19ef14ad2, 0xefbe4786384f25e3, 0x0fc19dc68b8cd5b5, 0x240ca1cc77ac9c65,
	0x2de92c6f592b0275, 0x4a7484aa6ea6e483, 0x5cb0a9dcbd41fbd4, 0x76f988da831153b5,
	0x983e5152ee66dfab, 0xa831c66d2db43210, 0xb00327c898fb213f, 0xbf597fc7beef0ee4,
	0xc6e00bf33da88fc2, 0xd5a79147930aa725, 0x06ca6351e003826f, 0x142929670a0e6e70,
	0x27b70a8546d22ffc, 0x2e1b21385c26c926, 0x4d2c6dfc5ac42aed, 0x53380d139d95b3df,
	0x650a73548baf63de, 0x766a0abb3c77b2a8, 0x81c2c92e47edaee6, 0x92722c851482353b,
	0xa2bfe8a14cf10364, 0xa81a664bbc423001, 0xc24b8b70d0f89791, 0xc76c51a30654be30,
	0xd192e819d6ef5218, 0xd69906245565a910, 0xf40e35855771202a, 0x106aa07032bbd1b8,
	0x19a4c116b8d2d0c8, 0x1e376c085141ab53, 0x2748774cdf8eeb99, 0x34b0bcb5e19b48a8,
	0x391c0cb3c5c95a63, 0x4ed8aa4ae3418acb, 0x5b9cca4f7763e373, 0x682e6ff3d6b2b8a3,
	0x748f82ee5defb2fc, 0x78a5636f43172f60, 0x84c87814a1f0ab72, 0x8cc702081a6439ec,
	0x90befffa23631e28, 0xa4506cebde82bde9, 0xbef9a3f7b2c67915, 0xc67178f2e372532b,
	0xca273eceea26619c, 0xd186b8c721c0c207, 0xeada7dd6cde0eb1e, 0xf57d4f7fee6ed178,
	0x06f067aa72176fba, 0x0a637dc5a2c898a6, 0x113f9804bef90dae, 0x1b710b35131c471b,
	0x28db77f523047d84, 0x32caab7b40c72493, 0x3c9ebe0a15c9bebc, 0x431d67c49c100d4c,
	0x4cc5d4becb3e42b6, 0x597f299cfc657e2a, 0x5fcb6fab3ad6faec, 0x6c44198c4a475817,
}

func rotr64(x uint64, n uint) uint64 { return x>>n | x<<(64-n) }

// sha512core is the shared compression engine for SHA-384/512/512-224/512-256.
type sha512core struct {
	h        [8]uint64
	staging  stagingBuffer
	lengthHi uint64
	lengthLo uint64
	outLen   int
}

func (s *sha512core) start(init [8]uint64, outLen int) {
	s.h = init
	s.staging.reset(128)
	s.lengthHi, s.lengthLo = 0, 0
	s.outLen = outLen
}

func (s *sha512core) write(p []byte) {
	n := uint64(len(p))
	oldLo := s.lengthLo
	s.lengthLo += n
	if s.lengthLo < oldLo {
		s.lengthHi++
	}
	s.staging.feed(p, s.block)
}

func (s *sha512core) block(b []byte) {
	var w [80]uint64
	for i := 0; i < 16; i++ {
		w[i] = uint64(b[i*8])<<56 | uint64(b[i*8+1])<<48 | uint64(b[i*8+2])<<40 | uint64(b[i*8+3])<<32 |
			uint64(b[i*8+4])<<24 | uint64(b[i*8+5])<<16 | uint64(b[i*8+6])<<8 | uint64(b[i*8+7])
	}
	for i := 16; i < 80; i++ {
		s0 := rotr64(w[i-15], 1) ^ rotr64(w[i-15], 8) ^ (w[i-15] >> 7)
		s1 := rotr64(w[i-2], 19) ^ rotr64(w[i-2], 61) ^ (w[i-2] >> 6)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, bb, c, d, e, f, g, h := s.h[0], s.h[1], s.h[2], s.h[3], s.h[4], s.h[5], s.h[6], s.h[7]
	for i := 0; i < 80; i++ {
		S1 := rotr64(e, 14) ^ rotr64(e, 18) ^ rotr64(e, 41)
		ch := (e & f) ^ (^e & g)
		t1 := h + S1 + ch + sha512K[i] + w[i]
		S0 := rotr64(a, 28) ^ rotr64(a, 34) ^ rotr64(a, 39)
		maj := (a & bb) ^ (a & c) ^ (bb & c)
		t2 := S0 + maj

		h = g
		g = f
		f = e
		e = d + t1
		d = c
		c = bb
		bb = a
		a = t1 + t2
	}
	s.h[0] += a
	s.h[1] += bb
	s.h[2] += c
	s.h[3] += d
	s.h[4] += e
	s.h[5] += f
	s.h[6] += g
	s.h[7] += h
}

func (s *sha512core) sum() []byte {
	h := s.h
	staging := append([]byte(nil), s.staging.tail()...)

	staging = append(staging, 0x80)
	for len(staging)%128 != 112 {
		staging = append(staging, 0)
	}
	// 128-bit big-endian bit length: (hi*2^64 + lo) bytes, times 8 bits.
	bitsHi := s.lengthHi<<3 | s.lengthLo>>61
	bitsLo := s.lengthLo << 3
	for i := 7; i >= 0; i-- {
		staging = append(staging, byte(bitsHi>>(8*uint(i))))
	}
	for i := 7; i >= 0; i-- {
		staging = append(staging, byte(bitsLo>>(8*uint(i))))
	}

	snap := &sha512core{h: h}
	snap.staging.reset(128)
	for len(staging) > 0 {
		snap.block(staging[:128])
		staging = staging[128:]
	}

	full := make([]byte, 64)
	for i, v := range snap.h {
		full[i*8] = byte(v >> 56)
		full[i*8+1] = byte(v >> 48)
		full[i*8+2] = byte(v >> 40)
		full[i*8+3] = byte(v >> 32)
		full[i*8+4] = byte(v >> 24)
		full[i*8+5] = byte(v >> 16)
		full[i*8+6] = byte(v >> 8)
		full[i*8+7] = byte(v)
	}
	return full[:s.outLen]
}

// SHA512 implements the full 64-byte SHA-512 digest.
type SHA512 struct{ core sha512core }

func NewSHA512() *SHA512 {
	s := &SHA512{}
	s.Start()
	return s
}
func (s *SHA512) Algorithm() string        { return "SHA-512" }
func (s *SHA512) BlockLen() int            { return 128 }
func (s *SHA512) Size() int                { return 64 }
func (s *SHA512) Start()                   { s.core.start(sha512Init, 64) }
func (s *SHA512) Write(p []byte) (int, error) { s.core.write(p); return len(p), nil }
func (s *SHA512) Sum() []byte              { return s.core.sum() }

// SHA384 truncates the SHA-512 compression output to 48 bytes with its own IV.
type SHA384 struct{ core sha512core }

func NewSHA384() *SHA384 {
	s := &SHA384{}
	s.Start()
	return s
}
func (s *SHA384) Algorithm() string        { return "SHA-384" }
func (s *SHA384) BlockLen() int            { return 128 }
func (s *SHA384) Size() int                { return 48 }
func (s *SHA384) Start()                   { s.core.start(sha384Init, 48) }
func (s *SHA384) Write(p []byte) (int, error) { s.core.write(p); return len(p), nil }
func (s *SHA384) Sum() []byte              { return s.core.sum() }

// SHA512_224 truncates to 28 bytes with its own IV.
type SHA512_224 struct{ core sha512core }

func NewSHA512_224() *SHA512_224 {
	s := &SHA512_224{}
	s.Start()
	return s
}
func (s *SHA512_224) Algorithm() string        { return "SHA-512/224" }
func (s *SHA512_224) BlockLen() int            { return 128 }
func (s *SHA512_224) Size() int                { return 28 }
func (s *SHA512_224) Start()                   { s.core.start(sha512_224Init, 28) }
func (s *SHA512_224) Write(p []byte) (int, error) { s.core.write(p); return len(p), nil }
func (s *SHA512_224) Sum() []byte              { return s.core.sum() }

// SHA512_256 truncates to 32 bytes with its own IV.
type SHA512_256 struct{ core sha512core }

func NewSHA512_256() *SHA512_256 {
	s := &SHA512_256{}
	s.Start()
	return s
}
func (s *SHA512_256) Algorithm() string        { return "SHA-512/256" }
func (s *SHA512_256) BlockLen() int            { return 128 }
func (s *SHA512_256) Size() int                { return 32 }
func (s *SHA512_256) Start()                   { s.core.start(sha512_256Init, 32) }
func (s *SHA512_256) Write(p []byte) (int, error) { s.core.write(p); return len(p), nil }
func (s *SHA512_256) Sum() []byte              { return s.core.sum() }
