package asn1x

import (
	"strconv"
	"strings"
)

// OIDToDER encodes a dotted OID string into its DER value bytes (the
// content of an OBJECT IDENTIFIER, without tag or length).
func OIDToDER(oid string) ([]byte, error) {
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		return nil, errf(KindInvalidOID, "OID %q needs at least two arcs", oid)
	}
	arcs := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, errf(KindInvalidOID, "bad arc %q in %q", p, oid)
		}
		arcs[i] = v
	}
	if arcs[0] > 2 || (arcs[0] < 2 && arcs[1] > 39) {
		return nil, errf(KindInvalidOID, "first two arcs of %q out of range", oid)
	}
	out := []byte{byte(arcs[0]*40 + arcs[1])}
	for _, arc := range arcs[2:] {
		out = appendBase128(out, arc)
	}
	return out, nil
}

func appendBase128(out []byte, v uint64) []byte {
	var stack [10]byte
	i := len(stack)
	for {
		i--
		stack[i] = byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			break
		}
	}
	for j := i; j < len(stack)-1; j++ {
		out = append(out, stack[j]|0x80)
	}
	return append(out, stack[len(stack)-1])
}

// DERToOID decodes OBJECT IDENTIFIER value bytes into dotted form.
func DERToOID(der []byte) (string, error) {
	if len(der) == 0 {
		return "", errf(KindInvalidOID, "empty OID")
	}
	var sb strings.Builder
	first := der[0]
	sb.WriteString(strconv.Itoa(int(first / 40)))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(int(first % 40)))

	var acc uint64
	inArc := false
	for _, b := range der[1:] {
		if acc > 1<<56 {
			return "", errf(KindInvalidOID, "arc overflows")
		}
		acc = acc<<7 | uint64(b&0x7F)
		inArc = true
		if b&0x80 == 0 {
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(acc, 10))
			acc = 0
			inArc = false
		}
	}
	if inArc {
		return "", errf(KindInvalidOID, "truncated arc")
	}
	return sb.String(), nil
}
