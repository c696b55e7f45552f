package asn1x

import (
	"bytes"
	"fmt"
)

// Validator is a declarative pattern over an ASN.1 tree. A nil field
// matches anything; a set field must match the corresponding node
// field. Child validators in Value are matched against the node's
// children in order, with Optional validators skipped when they fail.
type Validator struct {
	// Name labels the node in error messages.
	Name string

	Class       *Class
	Type        *Type
	Constructed *bool

	// Primitive, when set, requires an exact match of a primitive
	// node's value bytes.
	Primitive []byte

	// Value holds child validators for constructed/composed nodes.
	Value []*Validator

	// Optional permits this validator to fail without failing its
	// parent; the parent simply does not advance past the child.
	Optional bool

	// Capture slots: the key under which to store the matched node's
	// data in the capture map.
	Capture                  string // raw value (bytes or child slice)
	CaptureASN1              string // the *Node itself
	CaptureBitStringContents string // on-wire bytes incl. unused-bits byte
	CaptureBitStringValue    string // payload without the unused-bits byte
}

// Capture accumulates values stored by capture slots during Validate.
type Capture map[string]interface{}

// ClassPtr, TypePtr, and BoolPtr build the pointer fields of a
// Validator literal.
func ClassPtr(c Class) *Class { return &c }
func TypePtr(t Type) *Type    { return &t }
func BoolPtr(b bool) *bool    { return &b }

// Validate matches node against v. On success every capture slot on a
// matched validator has stored into capture (when non-nil). On failure
// false is returned and, when errs is non-nil, a message per mismatch
// is appended.
func Validate(node *Node, v *Validator, capture Capture, errs *[]string) bool {
	if node == nil {
		fail(errs, v, "a node", "nil")
		return false
	}
	if v.Class != nil && node.Class != *v.Class {
		fail(errs, v, fmt.Sprintf("tag class %s", *v.Class), node.Class.String())
		return false
	}
	if v.Type != nil && node.Type != *v.Type {
		fail(errs, v, fmt.Sprintf("type %d", *v.Type), fmt.Sprintf("type %d", node.Type))
		return false
	}
	if v.Constructed != nil && node.Constructed != *v.Constructed {
		fail(errs, v, fmt.Sprintf("constructed=%v", *v.Constructed), fmt.Sprintf("constructed=%v", node.Constructed))
		return false
	}
	if v.Primitive != nil && !bytes.Equal(node.Value, v.Primitive) {
		fail(errs, v, fmt.Sprintf("value %x", v.Primitive), fmt.Sprintf("value %x", node.Value))
		return false
	}

	if len(v.Value) > 0 {
		i := 0
		for _, cv := range v.Value {
			if i < len(node.Children) && Validate(node.Children[i], cv, capture, nil) {
				i++
				continue
			}
			if cv.Optional {
				continue
			}
			// Re-run against the failing child (or nil) to surface its
			// specific mismatch message.
			if i < len(node.Children) {
				Validate(node.Children[i], cv, nil, errs)
			} else {
				fail(errs, cv, "a child node", "none")
			}
			return false
		}
	}

	if capture != nil {
		if v.Capture != "" {
			if node.Composed {
				capture[v.Capture] = node.Children
			} else {
				capture[v.Capture] = append([]byte(nil), node.Value...)
			}
		}
		if v.CaptureASN1 != "" {
			capture[v.CaptureASN1] = node
		}
		if v.CaptureBitStringContents != "" {
			capture[v.CaptureBitStringContents] = append([]byte(nil), node.BitStringContents...)
		}
		if v.CaptureBitStringValue != "" {
			contents := node.BitStringContents
			if len(contents) == 0 {
				capture[v.CaptureBitStringValue] = []byte{}
			} else {
				if contents[0] != 0 {
					fail(errs, v, "zero unused bits", fmt.Sprintf("%d", contents[0]))
					return false
				}
				capture[v.CaptureBitStringValue] = append([]byte(nil), contents[1:]...)
			}
		}
	}
	return true
}

func fail(errs *[]string, v *Validator, expected, got string) {
	if errs == nil {
		return
	}
	name := v.Name
	if name == "" {
		name = "?"
	}
	*errs = append(*errs, fmt.Sprintf("[%s] Expected %s, got %s", name, expected, got))
}
