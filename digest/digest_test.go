package digest

import (
	"encoding/hex"
	"strings"
	"testing"
)

func hexSum(h Hash, s string) string {
	h.Start()
	_, _ = h.Write([]byte(s))
	return hex.EncodeToString(h.Sum())
}

func TestSHA256Vectors(t *testing.T) {
	h := NewSHA256()
	cases := map[string]string{
		"":                        "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"abc":                     "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		strings.Repeat("a", 1000): "41edece42d63e8d9bf515a9ba6932e1c20cbc9f5a5d134645adb5db1b9737ea3",
	}
	for in, want := range cases {
		if got := hexSum(h, in); got != want {
			t.Errorf("SHA-256(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSHA1Vector(t *testing.T) {
	h := NewSHA1()
	want := "a9993e364706816aba3e25717850c26c9cd0d89d"
	if got := hexSum(h, "abc"); got != want {
		t.Errorf("SHA-1(abc) = %s, want %s", got, want)
	}
}

func TestMD5Vector(t *testing.T) {
	h := NewMD5()
	want := "900150983cd24fb0d6963f7d28e17f72"
	if got := hexSum(h, "abc"); got != want {
		t.Errorf("MD5(abc) = %s, want %s", got, want)
	}
}

func TestSHA512Family(t *testing.T) {
	cases := []struct {
		h    Hash
		in   string
		want string
	}{
		{NewSHA512(), "abc", "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"},
		{NewSHA384(), "abc", "cb00753f45a35e8bb5a03d699ac65007272c32ab0eded1631a8b605a43ff5bed8086072ba1e7cc2358baeca134c825a7"},
	}
	for _, c := range cases {
		if got := hexSum(c.h, c.in); got != c.want {
			t.Errorf("%s(%q) = %s, want %s", c.h.Algorithm(), c.in, got, c.want)
		}
	}
}

func TestSumIsIdempotentAndResumable(t *testing.T) {
	h := NewSHA256()
	_, _ = h.Write([]byte("abc"))
	first := h.Sum()
	second := h.Sum()
	if string(first) != string(second) {
		t.Fatal("Sum is not idempotent")
	}
	_, _ = h.Write([]byte("def"))
	third := hexSum(NewSHA256(), "abcdef")
	if hex.EncodeToString(h.Sum()) != third {
		t.Fatalf("continued Update after Sum produced wrong digest")
	}
}

func TestByteAtATimeMatchesBulkWrite(t *testing.T) {
	msg := []byte("the quick brown fox jumps over the lazy dog, repeated many times to cross block boundaries 0123456789")
	bulk := NewSHA256()
	_, _ = bulk.Write(msg)
	want := bulk.Sum()

	byAt := NewSHA256()
	for _, b := range msg {
		_, _ = byAt.Write([]byte{b})
	}
	got := byAt.Sum()
	if string(got) != string(want) {
		t.Fatal("byte-at-a-time digest diverged from bulk write")
	}
}

func TestFactory(t *testing.T) {
	h, err := New("SHA-256")
	if err != nil || h.Size() != 32 {
		t.Fatalf("New(SHA-256) failed: %v", err)
	}
	if _, err := New("bogus"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}
