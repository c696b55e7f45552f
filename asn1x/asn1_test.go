package asn1x

import (
	"bytes"
	"encoding/hex"
	"testing"
	"time"
)

func fromHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestDERRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want string // re-encoded form; empty means identical to in
	}{
		{"020100", ""},
		{"02020001", "020101"}, // non-minimal INTEGER re-emits minimally
		{"0300", ""},
		{"030100", ""},
		{"0303006e5d", ""},
		{"030400020112", ""}, // BIT STRING wrapping INTEGER 0x12
		{"300f020101020102020103020104020105", ""},
	}
	for _, c := range cases {
		n, err := FromDER(fromHex(t, c.in), DefaultOptions())
		if err != nil {
			t.Errorf("FromDER(%s): %v", c.in, err)
			continue
		}
		want := c.want
		if want == "" {
			want = c.in
		}
		if got := hex.EncodeToString(ToDER(n)); got != want {
			t.Errorf("round trip %s = %s, want %s", c.in, got, want)
		}
	}
}

func TestBitStringDecomposition(t *testing.T) {
	n, err := FromDER(fromHex(t, "030400020112"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !n.Composed || len(n.Children) != 1 {
		t.Fatal("BIT STRING wrapping an INTEGER was not decomposed")
	}
	inner := n.Children[0]
	if inner.Type != TypeInteger || !bytes.Equal(inner.Value, []byte{0x12}) {
		t.Fatalf("inner node = %v %x", inner.Type, inner.Value)
	}

	// Mutating the inner node must force re-synthesis rather than an
	// echo of the preserved bytes.
	inner.Value = []byte{0x13}
	if got := hex.EncodeToString(ToDER(n)); got != "030400020113" {
		t.Fatalf("mutated BIT STRING re-encoded as %s", got)
	}
}

func TestOpaqueBitStringKeepsRawBytes(t *testing.T) {
	// 0x6e5d does not parse as a complete element, so the BIT STRING
	// stays primitive with its contents preserved.
	n, err := FromDER(fromHex(t, "0303006e5d"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if n.Composed {
		t.Fatal("junk payload was decomposed")
	}
	if !bytes.Equal(n.BitStringContents, fromHex(t, "006e5d")) {
		t.Fatalf("BitStringContents = %x", n.BitStringContents)
	}
}

func TestTrailingGarbage(t *testing.T) {
	_, err := FromDER(fromHex(t, "020100ff"), DefaultOptions())
	aerr, ok := err.(*Error)
	if !ok || aerr.Kind != KindTrailingGarbage {
		t.Fatalf("err = %v, want TrailingGarbage", err)
	}
	if aerr.Remaining != 1 {
		t.Fatalf("Remaining = %d, want 1", aerr.Remaining)
	}

	opts := DefaultOptions()
	opts.ParseAllBytes = false
	if _, err := FromDER(fromHex(t, "020100ff"), opts); err != nil {
		t.Fatalf("ParseAllBytes=false still failed: %v", err)
	}
}

func TestTruncatedValue(t *testing.T) {
	in := fromHex(t, "0405746573") // OCTET STRING declares 5, carries 3
	if _, err := FromDER(in, DefaultOptions()); err == nil {
		t.Fatal("strict mode accepted a truncated value")
	}

	opts := Options{Strict: false, ParseAllBytes: true, DecodeBitStrings: true}
	n, err := FromDER(in, opts)
	if err != nil {
		t.Fatalf("lenient mode: %v", err)
	}
	if !bytes.Equal(n.Value, []byte{0x74, 0x65, 0x73}) {
		t.Fatalf("lenient value = %x", n.Value)
	}
}

func TestIndefiniteLength(t *testing.T) {
	// SEQUENCE (indefinite) { INTEGER 1 } EOC
	n, err := FromDER(fromHex(t, "30800201010000"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Children) != 1 || n.Children[0].Type != TypeInteger {
		t.Fatal("indefinite SEQUENCE parsed wrong")
	}
	// Re-encoding uses definite DER length.
	if got := hex.EncodeToString(ToDER(n)); got != "3003020101" {
		t.Fatalf("re-encode = %s", got)
	}

	// Primitive indefinite is fatal in strict mode only.
	if _, err := FromDER(fromHex(t, "0280abcd0000"), DefaultOptions()); err == nil {
		t.Fatal("strict mode accepted primitive indefinite length")
	}
}

func TestIntegerCodec(t *testing.T) {
	cases := []struct {
		x   int32
		hex string
	}{
		{0, "00"},
		{127, "7f"},
		{128, "0080"},
		{-128, "80"},
		{-129, "ff7f"},
		{2147483647, "7fffffff"},
		{-2147483648, "80000000"},
	}
	for _, c := range cases {
		if got := hex.EncodeToString(IntegerToDER(c.x)); got != c.hex {
			t.Errorf("IntegerToDER(%d) = %s, want %s", c.x, got, c.hex)
		}
		back, err := DERToInteger(fromHex(t, c.hex))
		if err != nil || back != c.x {
			t.Errorf("DERToInteger(%s) = %d, %v, want %d", c.hex, back, err, c.x)
		}
	}
	if _, err := DERToInteger(fromHex(t, "0102030405")); err == nil {
		t.Fatal("5-byte integer accepted")
	}
}

func TestOIDCodec(t *testing.T) {
	cases := []struct {
		oid string
		hex string
	}{
		{"1.2.840.113549", "2a864886f70d"},
		{"2.16.840.1.101.3.4.2.1", "608648016503040201"},
	}
	for _, c := range cases {
		der, err := OIDToDER(c.oid)
		if err != nil {
			t.Fatalf("OIDToDER(%s): %v", c.oid, err)
		}
		if got := hex.EncodeToString(der); got != c.hex {
			t.Errorf("OIDToDER(%s) = %s, want %s", c.oid, got, c.hex)
		}
		back, err := DERToOID(fromHex(t, c.hex))
		if err != nil || back != c.oid {
			t.Errorf("DERToOID(%s) = %s, %v, want %s", c.hex, back, err, c.oid)
		}
	}
}

func TestTimeCodecs(t *testing.T) {
	utc, err := UTCTimeToDate("1102231234Z")
	if err != nil {
		t.Fatal(err)
	}
	if got := utc.UnixMilli(); got != 1298464440000 {
		t.Errorf("UTCTime 1102231234Z = %d ms, want 1298464440000", got)
	}

	old, err := UTCTimeToDate("500101000000Z")
	if err != nil {
		t.Fatal(err)
	}
	if got := old.UnixMilli(); got != -631152000000 {
		t.Errorf("UTCTime 500101000000Z = %d ms, want -631152000000", got)
	}

	gen, err := GeneralizedTimeToDate("20110223123400.123Z")
	if err != nil {
		t.Fatal(err)
	}
	if got := gen.UnixMilli(); got != 1298464440123 {
		t.Errorf("GeneralizedTime = %d ms, want 1298464440123", got)
	}

	// Z-normalised inverses.
	ref := time.Date(2011, 2, 23, 12, 34, 0, 0, time.UTC)
	if got := DateToUTCTime(ref); got != "110223123400Z" {
		t.Errorf("DateToUTCTime = %s", got)
	}
	if got := DateToGeneralizedTime(ref.Add(123 * time.Millisecond)); got != "20110223123400.123Z" {
		t.Errorf("DateToGeneralizedTime = %s", got)
	}
}

func TestValidatorCapture(t *testing.T) {
	// SEQUENCE { INTEGER 5, OCTET STRING "hi" }
	root := NewConstructed(ClassUniversal, TypeSequence,
		NewNode(ClassUniversal, TypeInteger, []byte{0x05}),
		NewNode(ClassUniversal, TypeOctetString, []byte("hi")),
	)
	v := &Validator{
		Name:  "root",
		Class: ClassPtr(ClassUniversal),
		Type:  TypePtr(TypeSequence),
		Value: []*Validator{
			{Name: "version", Type: TypePtr(TypeInteger), Capture: "version"},
			{Name: "missing", Type: TypePtr(TypeNull), Optional: true},
			{Name: "payload", Type: TypePtr(TypeOctetString), Capture: "payload", CaptureASN1: "payloadNode"},
		},
	}
	capture := Capture{}
	var errs []string
	if !Validate(root, v, capture, &errs) {
		t.Fatalf("validate failed: %v", errs)
	}
	if !bytes.Equal(capture["version"].([]byte), []byte{0x05}) {
		t.Errorf("version capture = %x", capture["version"])
	}
	if !bytes.Equal(capture["payload"].([]byte), []byte("hi")) {
		t.Errorf("payload capture = %x", capture["payload"])
	}
	if capture["payloadNode"].(*Node).Type != TypeOctetString {
		t.Error("payloadNode capture wrong")
	}
}

func TestValidatorMismatchReportsError(t *testing.T) {
	root := NewNode(ClassUniversal, TypeInteger, []byte{0x01})
	v := &Validator{Name: "want-octets", Type: TypePtr(TypeOctetString)}
	var errs []string
	if Validate(root, v, nil, &errs) {
		t.Fatal("mismatch validated")
	}
	if len(errs) == 0 {
		t.Fatal("no error recorded")
	}
}

func TestValidatorBitStringCaptures(t *testing.T) {
	n, err := FromDER(fromHex(t, "0303006e5d"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	capture := Capture{}
	v := &Validator{
		Name:                     "bits",
		Type:                     TypePtr(TypeBitString),
		CaptureBitStringContents: "raw",
		CaptureBitStringValue:    "payload",
	}
	if !Validate(n, v, capture, nil) {
		t.Fatal("validate failed")
	}
	if !bytes.Equal(capture["raw"].([]byte), fromHex(t, "006e5d")) {
		t.Errorf("raw = %x", capture["raw"])
	}
	if !bytes.Equal(capture["payload"].([]byte), fromHex(t, "6e5d")) {
		t.Errorf("payload = %x", capture["payload"])
	}

	// Non-zero unused-bits byte fails the value capture.
	n2, err := FromDER(fromHex(t, "0303046e50"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if Validate(n2, &Validator{Type: TypePtr(TypeBitString), CaptureBitStringValue: "x"}, Capture{}, nil) {
		t.Fatal("non-zero unused bits accepted by CaptureBitStringValue")
	}
}

func TestHighTagNumberForm(t *testing.T) {
	// Context-specific tag 37, primitive, one content byte.
	in := fromHex(t, "9f2501aa")
	n, err := FromDER(in, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if n.Class != ClassContextSpecific || n.Type != 37 {
		t.Fatalf("tag = %v/%d", n.Class, n.Type)
	}
	if got := hex.EncodeToString(ToDER(n)); got != "9f2501aa" {
		t.Fatalf("re-encode = %s", got)
	}
}

func TestLongFormLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0x61}, 200)
	in := append([]byte{0x04, 0x81, 0xC8}, payload...)
	n, err := FromDER(in, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(n.Value, payload) {
		t.Fatal("long-form value mismatch")
	}
	if !bytes.Equal(ToDER(n), in) {
		t.Fatal("long-form round trip mismatch")
	}
}
