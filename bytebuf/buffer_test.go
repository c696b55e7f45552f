package bytebuf

import "testing"

func TestAppendAndReadRoundTrip(t *testing.T) {
	b := New()
	b.PutByte(0xAB)
	b.PutUint16(0x1234)
	b.PutUint24(0x567890)
	b.PutUint32(0xDEADBEEF)

	got, err := b.ReadByte()
	if err != nil || got != 0xAB {
		t.Fatalf("ReadByte = %x, %v", got, err)
	}
	u16, err := b.ReadUint16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadUint16 = %x, %v", u16, err)
	}
	u24, err := b.ReadUint24()
	if err != nil || u24 != 0x567890 {
		t.Fatalf("ReadUint24 = %x, %v", u24, err)
	}
	u32, err := b.ReadUint32()
	if err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("ReadUint32 = %x, %v", u32, err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected fully consumed buffer, Len=%d", b.Len())
	}
}

func TestTooFewBytes(t *testing.T) {
	b := NewFromBytes([]byte{0x01})
	if _, err := b.ReadUint16(); err != ErrTooFewBytes {
		t.Fatalf("expected ErrTooFewBytes, got %v", err)
	}
}

func TestCompact(t *testing.T) {
	b := NewFromBytes([]byte{1, 2, 3, 4})
	_, _ = b.Consume(2)
	b.Compact()
	if b.Len() != 2 || b.read != 0 {
		t.Fatalf("compact failed: len=%d read=%d", b.Len(), b.read)
	}
	if b.Bytes()[0] != 3 {
		t.Fatalf("compact corrupted data: %v", b.Bytes())
	}
}

func TestHexBase64RoundTrip(t *testing.T) {
	b := NewFromBytes([]byte("hello world"))
	hx := b.ToHex()
	b2 := New()
	if err := b2.FromHex(hx); err != nil {
		t.Fatal(err)
	}
	if string(b2.Bytes()) != "hello world" {
		t.Fatalf("hex round-trip failed: %q", b2.Bytes())
	}

	b64 := b.ToBase64()
	b3 := New()
	if err := b3.FromBase64(b64); err != nil {
		t.Fatal(err)
	}
	if string(b3.Bytes()) != "hello world" {
		t.Fatalf("base64 round-trip failed: %q", b3.Bytes())
	}
}

func TestLittleEndian(t *testing.T) {
	b := New()
	b.PutUint16LE(0x1234)
	b.PutUint32LE(0xAABBCCDD)
	want := []byte{0x34, 0x12, 0xDD, 0xCC, 0xBB, 0xAA}
	got := b.Bytes()
	if len(got) != len(want) {
		t.Fatalf("len mismatch: %v vs %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %x want %x", i, got[i], want[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	b := NewFromBytes([]byte{1, 2, 3, 4, 5})
	_, _ = b.Consume(4)
	b.Truncate(2)
	if b.Len() != 0 {
		t.Fatalf("expected 0 unread bytes after truncate below cursor, got %d", b.Len())
	}
}
