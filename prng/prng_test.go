package prng

import (
	"bytes"
	"io"
	"testing"
)

func TestGetBytes(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := p.GetBytes(48)
	if err != nil || len(a) != 48 {
		t.Fatalf("GetBytes: len=%d err=%v", len(a), err)
	}
	b, _ := p.GetBytes(48)
	if bytes.Equal(a, b) {
		t.Fatal("two successive draws were identical")
	}
}

func TestDeterministicSourceStillRekeys(t *testing.T) {
	// A zero entropy source must not produce repeating output, because
	// the generator rekeys after every request.
	p, err := New(zeroReader{})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := p.GetBytes(32)
	b, _ := p.GetBytes(32)
	if bytes.Equal(a, b) {
		t.Fatal("generator failed to rekey between requests")
	}
}

type zeroReader struct{}

func (zeroReader) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = 0
	}
	return len(b), nil
}

func TestReaderAdapter(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	var r io.Reader = Reader{Pool: p}
	buf := make([]byte, 17)
	n, err := r.Read(buf)
	if err != nil || n != 17 {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
}
