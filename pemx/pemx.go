// Package pemx reads and writes PEM messages (RFC 1421 framing):
// dash-delimited type lines, optional encapsulated headers, and a
// base64 body folded at 64 columns. The Proc-Type, Content-Domain,
// and DEK-Info headers are parsed into dedicated fields; all others
// are kept as an ordered list.
package pemx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ProcType is the RFC 1421 Proc-Type header, e.g. "4,ENCRYPTED".
type ProcType struct {
	Version string
	Type    string
}

// DEKInfo names the body cipher and its parameters (typically the IV),
// e.g. "DES-EDE3-CBC,0123456789ABCDEF".
type DEKInfo struct {
	Algorithm  string
	Parameters string
}

// Header is one uninterpreted encapsulated header.
type Header struct {
	Name  string
	Value string
}

// Message is a single decoded PEM message.
type Message struct {
	Type          string
	ProcType      *ProcType
	ContentDomain string
	DEKInfo       *DEKInfo
	Headers       []Header
	Body          []byte
}

// Encrypted reports whether the message declares an encrypted body.
func (m *Message) Encrypted() bool {
	return m.ProcType != nil && m.ProcType.Type == "ENCRYPTED"
}

var errNoMessage = errors.New("pemx: no PEM message found")

// Decode parses every PEM message in data, in order.
func Decode(data []byte) ([]*Message, error) {
	var msgs []*Message
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "-----BEGIN ") || !strings.HasSuffix(line, "-----") {
			i++
			continue
		}
		typ := strings.TrimSuffix(strings.TrimPrefix(line, "-----BEGIN "), "-----")
		msg, next, err := decodeOne(lines, i+1, normalizeType(typ))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		i = next
	}
	if len(msgs) == 0 {
		return nil, errNoMessage
	}
	return msgs, nil
}

// DecodeOne parses exactly one message and fails on zero.
func DecodeOne(data []byte) (*Message, error) {
	msgs, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}

// normalizeType maps the legacy alias onto the canonical type.
func normalizeType(typ string) string {
	if typ == "NEW CERTIFICATE REQUEST" {
		return "CERTIFICATE REQUEST"
	}
	return typ
}

func decodeOne(lines []string, start int, typ string) (*Message, int, error) {
	msg := &Message{Type: typ}
	i := start

	// Headers run until a blank line or the first line without a
	// colon; continuation lines start with whitespace.
	var b64 strings.Builder
	inHeaders := true
	for ; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-----END ") {
			endType := normalizeType(strings.TrimSuffix(strings.TrimPrefix(trimmed, "-----END "), "-----"))
			if endType != typ {
				return nil, 0, fmt.Errorf("pemx: BEGIN %s closed by END %s", typ, endType)
			}
			i++
			body, err := base64.StdEncoding.DecodeString(b64.String())
			if err != nil {
				return nil, 0, fmt.Errorf("pemx: bad base64 body: %w", err)
			}
			msg.Body = body
			if msg.Encrypted() && msg.DEKInfo == nil {
				return nil, 0, fmt.Errorf("pemx: ENCRYPTED message missing DEK-Info header")
			}
			return msg, i, nil
		}
		if inHeaders {
			if trimmed == "" {
				inHeaders = false
				continue
			}
			if idx := strings.Index(line, ":"); idx >= 0 {
				name := strings.TrimSpace(line[:idx])
				value := strings.TrimSpace(line[idx+1:])
				for i+1 < len(lines) && (strings.HasPrefix(lines[i+1], " ") || strings.HasPrefix(lines[i+1], "\t")) {
					i++
					value += strings.TrimSpace(lines[i])
				}
				msg.setHeader(name, value)
				continue
			}
			inHeaders = false
		}
		b64.WriteString(trimmed)
	}
	return nil, 0, fmt.Errorf("pemx: missing END line for %s", typ)
}

func (m *Message) setHeader(name, value string) {
	switch name {
	case "Proc-Type":
		parts := strings.SplitN(value, ",", 2)
		pt := &ProcType{Version: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			pt.Type = strings.TrimSpace(parts[1])
		}
		m.ProcType = pt
	case "Content-Domain":
		m.ContentDomain = value
	case "DEK-Info":
		parts := strings.SplitN(value, ",", 2)
		di := &DEKInfo{Algorithm: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			di.Parameters = strings.TrimSpace(parts[1])
		}
		m.DEKInfo = di
	default:
		m.Headers = append(m.Headers, Header{Name: name, Value: value})
	}
}

// Encode renders the message with CRLF line endings and a base64 body
// folded at 64 columns.
func Encode(m *Message) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-----BEGIN %s-----\r\n", m.Type)

	hasHeaders := false
	writeHeader := func(name, value string) {
		fmt.Fprintf(&sb, "%s: %s\r\n", name, value)
		hasHeaders = true
	}
	if m.ProcType != nil {
		writeHeader("Proc-Type", m.ProcType.Version+","+m.ProcType.Type)
	}
	if m.ContentDomain != "" {
		writeHeader("Content-Domain", m.ContentDomain)
	}
	if m.DEKInfo != nil {
		v := m.DEKInfo.Algorithm
		if m.DEKInfo.Parameters != "" {
			v += "," + m.DEKInfo.Parameters
		}
		writeHeader("DEK-Info", v)
	}
	for _, h := range m.Headers {
		writeHeader(h.Name, h.Value)
	}
	if hasHeaders {
		sb.WriteString("\r\n")
	}

	b64 := base64.StdEncoding.EncodeToString(m.Body)
	for len(b64) > 64 {
		sb.WriteString(b64[:64])
		sb.WriteString("\r\n")
		b64 = b64[64:]
	}
	if len(b64) > 0 {
		sb.WriteString(b64)
		sb.WriteString("\r\n")
	}
	fmt.Fprintf(&sb, "-----END %s-----\r\n", m.Type)
	return []byte(sb.String())
}
