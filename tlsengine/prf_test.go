package tlsengine

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestPRFTLS1Vector(t *testing.T) {
	secret := bytes.Repeat([]byte{0xAB}, 48)
	seed := bytes.Repeat([]byte{0xCD}, 64)

	out, err := prfTLS1(secret, "PRF Testvector", seed, 104)
	if err != nil {
		t.Fatal(err)
	}
	want := "d3d4d1e349b5d515044666d51de32bab258cb521" +
		"b6b053463e354832fd976754443bcf9a296519bc" +
		"289abcbc1187e4ebd31e602353776c408aafb74c" +
		"bc85eb29c88cc395ed29966bbabcf2f7d85c8415" +
		"01bde969563b9a8be5d687d298076c470c854bcd" +
		"6f856c41"
	if got := hex.EncodeToString(out); got != want {
		t.Fatalf("PRF output mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestPRFOddSecretHalvesOverlap(t *testing.T) {
	// With an odd secret length the halves share a middle byte; both
	// lengths must still produce deterministic output of the exact
	// requested size.
	secret := bytes.Repeat([]byte{0x11}, 7)
	out, err := prfTLS1(secret, "test", []byte{1, 2, 3}, 33)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 33 {
		t.Fatalf("len = %d", len(out))
	}
	again, _ := prfTLS1(secret, "test", []byte{1, 2, 3}, 33)
	if !bytes.Equal(out, again) {
		t.Fatal("PRF not deterministic")
	}
}

func TestPHashFillsExactLength(t *testing.T) {
	for _, n := range []int{1, 16, 20, 21, 100} {
		out, err := pHash("SHA-1", []byte("key"), []byte("seed"), n)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != n {
			t.Fatalf("pHash(%d) returned %d bytes", n, len(out))
		}
	}
}
