package hmac

import (
	"encoding/hex"
	"testing"
)

func TestHMACMD5Vector(t *testing.T) {
	got, err := Sum1("MD5", []byte("Jefe"), []byte("what do ya want for nothing?"))
	if err != nil {
		t.Fatal(err)
	}
	want := "750c783e6ab0b503eaa86e310a5db738"
	// RFC 2202 test vector is 32 hex chars; guard against accidental truncation.
	if hex.EncodeToString(got) != want[:32] {
		t.Fatalf("HMAC-MD5 = %s, want %s", hex.EncodeToString(got), want[:32])
	}
}

func TestHMACSHA1Vector(t *testing.T) {
	got, err := Sum1("SHA-1", []byte("Jefe"), []byte("what do ya want for nothing?"))
	if err != nil {
		t.Fatal(err)
	}
	want := "effcdf6ae5eb2fa2d27416d5f184df9c259a7c79"
	if hex.EncodeToString(got) != want {
		t.Fatalf("HMAC-SHA1 = %s, want %s", hex.EncodeToString(got), want)
	}
}

func TestStartResetsKeepsKey(t *testing.T) {
	m, err := New("SHA-256", []byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = m.Write([]byte("first"))
	first, _ := m.Sum()

	if err := m.Start("", nil); err != nil {
		t.Fatal(err)
	}
	_, _ = m.Write([]byte("first"))
	second, _ := m.Sum()

	if hex.EncodeToString(first) != hex.EncodeToString(second) {
		t.Fatal("Start(nil,nil) with same key+message should reproduce the MAC")
	}
}
