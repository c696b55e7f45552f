package blockcipher

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestAES128ECBVector(t *testing.T) {
	key := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	pt := mustHex(t, "00112233445566778899aabbccddeeff")
	want := "69c4e0d86a7b0430d8cdb78070b4c55a"

	a, err := NewAES(key)
	if err != nil {
		t.Fatal(err)
	}
	ct := make([]byte, 16)
	a.EncryptBlock(ct, pt)
	if got := hex.EncodeToString(ct); got != want {
		t.Fatalf("AES-128 encrypt = %s, want %s", got, want)
	}
	back := make([]byte, 16)
	a.DecryptBlock(back, ct)
	if !bytes.Equal(back, pt) {
		t.Fatal("AES-128 decrypt did not invert encrypt")
	}
}

func TestAES256GCMEmptyVector(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 12)
	want := "530f8afbc74536b9a963b4f1c4cb738b"

	a, err := NewAES(key)
	if err != nil {
		t.Fatal(err)
	}
	m := &GCMMode{}
	if err := m.Start(a, StartOptions{IV: iv}); err != nil {
		t.Fatal(err)
	}
	out, ok, err := m.Finish()
	if err != nil || !ok {
		t.Fatalf("Finish: ok=%v err=%v", ok, err)
	}
	if got := hex.EncodeToString(out); got != want {
		t.Fatalf("AES-256-GCM tag = %s, want %s", got, want)
	}
}

func TestGCMRoundTripWithAAD(t *testing.T) {
	key := mustHex(t, "feffe9928665731c6d6a8f9467308308feffe9928665731c6d6a8f9467308308")
	iv := mustHex(t, "cafebabefacedbaddecaf888")
	aad := []byte("header")
	pt := []byte("GCM round trip with additional data")

	a, _ := NewAES(key)
	enc := &GCMMode{}
	if err := enc.Start(a, StartOptions{IV: iv, AdditionalData: aad}); err != nil {
		t.Fatal(err)
	}
	enc.Update(pt)
	sealed, ok, err := enc.Finish()
	if err != nil || !ok {
		t.Fatalf("seal: ok=%v err=%v", ok, err)
	}
	ct, tag := sealed[:len(sealed)-16], sealed[len(sealed)-16:]

	dec := &GCMMode{}
	if err := dec.Start(a, StartOptions{IV: iv, AdditionalData: aad, Tag: tag, Decrypt: true}); err != nil {
		t.Fatal(err)
	}
	dec.Update(ct)
	opened, ok, err := dec.Finish()
	if err != nil || !ok {
		t.Fatalf("open: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(opened, pt) {
		t.Fatal("GCM round trip mismatch")
	}

	// Flipping a tag bit must fail verification.
	badTag := append([]byte(nil), tag...)
	badTag[0] ^= 0x80
	dec2 := &GCMMode{}
	_ = dec2.Start(a, StartOptions{IV: iv, AdditionalData: aad, Tag: badTag, Decrypt: true})
	dec2.Update(ct)
	if _, ok, _ := dec2.Finish(); ok {
		t.Fatal("GCM accepted a corrupted tag")
	}
}

func TestRC2Vector(t *testing.T) {
	// RFC 2268 test vector: 64-bit zero key at 63 effective bits.
	key := make([]byte, 8)
	r, err := NewRC2(key, 63)
	if err != nil {
		t.Fatal(err)
	}
	pt := make([]byte, 8)
	ct := make([]byte, 8)
	r.EncryptBlock(ct, pt)
	if got := hex.EncodeToString(ct); got != "ebb773f993278eff" {
		t.Fatalf("RC2 encrypt = %s, want ebb773f993278eff", got)
	}
	back := make([]byte, 8)
	r.DecryptBlock(back, ct)
	if !bytes.Equal(back, pt) {
		t.Fatal("RC2 decrypt did not invert encrypt")
	}
}

func TestTripleDESRoundTrip(t *testing.T) {
	key := mustHex(t, "0123456789abcdef23456789abcdef01456789abcdef0123")
	d, err := NewTripleDES(key)
	if err != nil {
		t.Fatal(err)
	}
	pt := []byte("8bytes!!")
	ct := make([]byte, 8)
	d.EncryptBlock(ct, pt)
	back := make([]byte, 8)
	d.DecryptBlock(back, ct)
	if !bytes.Equal(back, pt) {
		t.Fatal("3DES decrypt did not invert encrypt")
	}
}

func runMode(t *testing.T, mode Mode, alg Algorithm, opts StartOptions, input []byte, chunked bool) []byte {
	t.Helper()
	if err := mode.Start(alg, opts); err != nil {
		t.Fatal(err)
	}
	var out []byte
	if chunked {
		for _, b := range input {
			out = append(out, mode.Update([]byte{b})...)
		}
	} else {
		out = append(out, mode.Update(input)...)
	}
	final, ok, err := mode.Finish()
	if err != nil || !ok {
		t.Fatalf("Finish: ok=%v err=%v", ok, err)
	}
	return append(out, final...)
}

func TestStreamingEquivalence(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	input := []byte("streaming equivalence across every chunking of the input material")

	cases := []struct {
		name string
		mk   func() Mode
		opts StartOptions
	}{
		{"ECB", func() Mode { return &ECBMode{} }, StartOptions{Padding: PadPKCS7}},
		{"CBC", func() Mode { return &CBCMode{} }, StartOptions{IV: iv, Padding: PadPKCS7}},
		{"CFB", func() Mode { return &CFBMode{} }, StartOptions{IV: iv, Padding: PadNone}},
		{"OFB", func() Mode { return &OFBMode{} }, StartOptions{IV: iv, Padding: PadNone}},
		{"CTR", func() Mode { return &CTRMode{} }, StartOptions{IV: iv, Padding: PadNone}},
		{"GCM", func() Mode { return &GCMMode{} }, StartOptions{IV: iv[:12]}},
	}
	alg, _ := NewAES(key)
	for _, c := range cases {
		bulk := runMode(t, c.mk(), alg, c.opts, input, false)
		byteAt := runMode(t, c.mk(), alg, c.opts, input, true)
		if !bytes.Equal(bulk, byteAt) {
			t.Errorf("%s: byte-at-a-time output diverged from bulk", c.name)
		}
	}
}

func TestCBCRoundTripAndPadding(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	alg, _ := NewAES(key)

	for _, n := range []int{0, 1, 15, 16, 17, 33} {
		pt := bytes.Repeat([]byte{0x5a}, n)
		enc := &CBCMode{}
		ct := runMode(t, enc, alg, StartOptions{IV: iv, Padding: PadPKCS7}, pt, false)
		if len(ct)%16 != 0 || len(ct) < n+1 {
			t.Fatalf("n=%d: bad ciphertext length %d", n, len(ct))
		}
		dec := &CBCMode{}
		back := runMode(t, dec, alg, StartOptions{IV: iv, Padding: PadPKCS7, Decrypt: true}, ct, false)
		if !bytes.Equal(back, pt) {
			t.Fatalf("n=%d: CBC round trip mismatch", n)
		}
	}
}

func TestCBCBadPaddingRejected(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := make([]byte, 16)
	alg, _ := NewAES(key)

	enc := &CBCMode{}
	ct := runMode(t, enc, alg, StartOptions{IV: iv, Padding: PadPKCS7}, []byte("some plaintext"), false)
	ct[len(ct)-1] ^= 0xff

	dec := &CBCMode{}
	if err := dec.Start(alg, StartOptions{IV: iv, Padding: PadPKCS7, Decrypt: true}); err != nil {
		t.Fatal(err)
	}
	dec.Update(ct)
	if _, ok, _ := dec.Finish(); ok {
		t.Fatal("corrupted padding accepted")
	}
}

func TestCTRRoundTrip(t *testing.T) {
	key := mustHex(t, "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4")
	iv := mustHex(t, "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")
	alg, _ := NewAES(key)
	pt := []byte("counter mode is its own inverse")

	enc := &CTRMode{}
	ct := runMode(t, enc, alg, StartOptions{IV: iv}, pt, false)
	dec := &CTRMode{}
	back := runMode(t, dec, alg, StartOptions{IV: iv}, ct, false)
	if !bytes.Equal(back, pt) {
		t.Fatal("CTR round trip mismatch")
	}
}

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	nonce := bytes.Repeat([]byte{0x24}, 12)
	aad := []byte("aad")
	pt := []byte("chacha round trip")

	enc, err := NewChaCha20Poly1305(key)
	if err != nil {
		t.Fatal(err)
	}
	sealed := runMode(t, enc, nil, StartOptions{IV: nonce, AdditionalData: aad}, pt, false)
	ct, tag := sealed[:len(sealed)-16], sealed[len(sealed)-16:]

	dec, _ := NewChaCha20Poly1305(key)
	back := runMode(t, dec, nil, StartOptions{IV: nonce, AdditionalData: aad, Tag: tag, Decrypt: true}, ct, false)
	if !bytes.Equal(back, pt) {
		t.Fatal("ChaCha20-Poly1305 round trip mismatch")
	}
}

func TestFactories(t *testing.T) {
	if _, err := NewAlgorithm("AES", make([]byte, 16)); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAlgorithm("nope", nil); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	for _, name := range []string{"ECB", "CBC", "CFB", "OFB", "CTR", "GCM"} {
		if _, err := NewMode(name); err != nil {
			t.Fatalf("NewMode(%s): %v", name, err)
		}
	}
	if _, err := NewMode("XTS"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
