package asn1x

// Options controls parser behaviour. The zero value is the most
// lenient configuration (truncation recovery, trailing bytes allowed,
// no BIT STRING decoding); DefaultOptions turns everything on,
// matching what certificate parsing wants.
type Options struct {
	// Strict rejects truncated values and primitive indefinite lengths
	// instead of recovering.
	Strict bool
	// ParseAllBytes fails with TrailingGarbage when input remains after
	// the top-level element.
	ParseAllBytes bool
	// DecodeBitStrings attempts to parse the payload of a primitive
	// BIT STRING as an encapsulated element.
	DecodeBitStrings bool
}

// DefaultOptions is the configuration used when callers have no reason
// to deviate: strict, whole-input, with BIT STRING decoding.
func DefaultOptions() Options {
	return Options{Strict: true, ParseAllBytes: true, DecodeBitStrings: true}
}

// FromDER parses one DER/BER element from data.
func FromDER(data []byte, opts Options) (*Node, error) {
	r := &reader{data: data}
	n, err := parseNode(r, opts)
	if err != nil {
		return nil, err
	}
	if opts.ParseAllBytes && r.remaining() > 0 {
		return nil, &Error{
			Kind:      KindTrailingGarbage,
			Message:   "bytes remain after top-level element",
			ByteCount: len(data),
			Remaining: r.remaining(),
		}
	}
	return n, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, errTooFew(len(r.data), r.remaining(), 1)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, errTooFew(len(r.data), r.remaining(), n)
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// peekEOC reports whether the next two bytes are the end-of-contents
// marker, consuming them if so.
func (r *reader) peekEOC() bool {
	if r.remaining() >= 2 && r.data[r.pos] == 0 && r.data[r.pos+1] == 0 {
		r.pos += 2
		return true
	}
	return false
}

const lengthIndefinite = -1

// parseLength decodes short, long, or indefinite length form,
// returning lengthIndefinite for the latter.
func parseLength(r *reader) (int, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	if b < 0x80 {
		return int(b), nil
	}
	if b == 0x80 {
		return lengthIndefinite, nil
	}
	k := int(b & 0x7F)
	if k > 126 {
		return 0, errf(KindNegativeLength, "reserved length octet 0xFF")
	}
	lb, err := r.take(k)
	if err != nil {
		return 0, err
	}
	var length int64
	for _, v := range lb {
		length = length<<8 | int64(v)
		if length > int64(1)<<31 {
			return 0, errf(KindNegativeLength, "length overflows")
		}
	}
	if length < 0 {
		return 0, errf(KindNegativeLength, "negative computed length")
	}
	return int(length), nil
}

// parseTag decodes the identifier octet(s), including high-tag-number
// form.
func parseTag(r *reader) (Class, Type, bool, error) {
	b, err := r.byte()
	if err != nil {
		return 0, 0, false, err
	}
	class := Class(b & 0xC0)
	constructed := b&0x20 != 0
	num := Type(b & 0x1F)
	if num == 0x1F {
		num = 0
		for i := 0; ; i++ {
			if i >= 4 {
				return 0, 0, false, errf(KindUnsupportedTag, "high-tag-number form exceeds 28 bits")
			}
			nb, err := r.byte()
			if err != nil {
				return 0, 0, false, err
			}
			num = num<<7 | Type(nb&0x7F)
			if nb&0x80 == 0 {
				break
			}
		}
		if num < 0x1F {
			return 0, 0, false, errf(KindUnsupportedTag, "non-minimal high-tag-number form")
		}
	}
	return class, num, constructed, nil
}

func parseNode(r *reader, opts Options) (*Node, error) {
	class, typ, constructed, err := parseTag(r)
	if err != nil {
		return nil, err
	}
	length, err := parseLength(r)
	if err != nil {
		return nil, err
	}

	n := &Node{Class: class, Type: typ, Constructed: constructed}

	if length == lengthIndefinite {
		if !constructed {
			if opts.Strict {
				return nil, errf(KindNegativeLength, "primitive element with indefinite length")
			}
			// Lenient recovery: the remainder of the enclosing span is
			// the value.
			v, _ := r.take(r.remaining())
			n.Value = append([]byte(nil), v...)
			return n, nil
		}
		n.Composed = true
		for {
			if r.peekEOC() {
				break
			}
			if r.remaining() == 0 {
				return nil, errTooFew(len(r.data), 0, 2)
			}
			child, err := parseNode(r, opts)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		return n, nil
	}

	if length > r.remaining() {
		if opts.Strict {
			return nil, errTooFew(len(r.data), r.remaining(), length)
		}
		length = r.remaining()
	}
	content, err := r.take(length)
	if err != nil {
		return nil, err
	}

	if constructed {
		n.Composed = true
		sub := &reader{data: content}
		for sub.remaining() > 0 {
			child, err := parseNode(sub, opts)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		return n, nil
	}

	n.Value = append([]byte(nil), content...)

	if class == ClassUniversal && typ == TypeBitString {
		n.BitStringContents = append([]byte(nil), content...)
		if opts.DecodeBitStrings && len(content) > 1 && content[0] == 0 {
			if inner, ok := tryDecodeBitString(content[1:], opts); ok {
				n.Composed = true
				n.Children = []*Node{inner}
				n.Value = nil
			}
		}
		n.snapshot()
	}
	return n, nil
}

// tryDecodeBitString attempts to parse a BIT STRING payload (after its
// unused-bits byte) as exactly one encapsulated element. Any failure
// leaves the BIT STRING primitive.
func tryDecodeBitString(content []byte, opts Options) (*Node, bool) {
	sub := &reader{data: content}
	inner, err := parseNode(sub, Options{
		Strict:           true,
		DecodeBitStrings: opts.DecodeBitStrings,
	})
	if err != nil || sub.remaining() != 0 {
		return nil, false
	}
	if inner.Class != ClassUniversal && inner.Class != ClassContextSpecific {
		return nil, false
	}
	return inner, true
}
