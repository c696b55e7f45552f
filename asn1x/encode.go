package asn1x

// ToDER encodes the tree rooted at n into canonical DER: definite
// lengths in minimal form, INTEGER values stripped of a redundant
// leading octet. A parsed BIT STRING that has not been mutated since
// parsing re-emits its preserved on-wire bytes.
func ToDER(n *Node) []byte {
	return appendNode(nil, n)
}

func appendNode(out []byte, n *Node) []byte {
	content := nodeContent(n)
	out = appendIdentifier(out, n)
	out = appendLength(out, len(content))
	return append(out, content...)
}

func nodeContent(n *Node) []byte {
	if n.Class == ClassUniversal && n.Type == TypeBitString && n.BitStringContents != nil && n.unmodified() {
		return n.BitStringContents
	}
	if n.Constructed {
		var content []byte
		for _, c := range n.Children {
			content = appendNode(content, c)
		}
		return content
	}
	if n.Composed {
		// A composed primitive BIT STRING: one unused-bits byte, then
		// the encapsulated children.
		content := []byte{0x00}
		for _, c := range n.Children {
			content = appendNode(content, c)
		}
		return content
	}
	if n.Class == ClassUniversal && n.Type == TypeInteger {
		return minimalInteger(n.Value)
	}
	return n.Value
}

// minimalInteger strips a single redundant sign octet: a leading 0x00
// followed by a byte with the high bit clear, or a leading 0xFF
// followed by a byte with the high bit set.
func minimalInteger(v []byte) []byte {
	if len(v) >= 2 {
		if v[0] == 0x00 && v[1]&0x80 == 0 {
			return v[1:]
		}
		if v[0] == 0xFF && v[1]&0x80 != 0 {
			return v[1:]
		}
	}
	return v
}

func appendIdentifier(out []byte, n *Node) []byte {
	first := byte(n.Class)
	if n.Constructed {
		first |= 0x20
	}
	if n.Type < 0x1F {
		return append(out, first|byte(n.Type))
	}
	out = append(out, first|0x1F)
	// Base-128, high bit set on all but the last octet.
	var stack [5]byte
	i := len(stack)
	v := uint32(n.Type)
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

func appendLength(out []byte, length int) []byte {
	if length <= 127 {
		return append(out, byte(length))
	}
	var tmp [4]byte
	i := len(tmp)
	for length > 0 {
		i--
		tmp[i] = byte(length)
		length >>= 8
	}
	out = append(out, 0x80|byte(len(tmp)-i))
	return append(out, tmp[i:]...)
}
