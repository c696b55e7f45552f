package pemx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	msg := &Message{
		Type:          "PRIVACY-ENHANCED MESSAGE",
		ProcType:      &ProcType{Version: "4", Type: "ENCRYPTED"},
		ContentDomain: "RFC822",
		DEKInfo:       &DEKInfo{Algorithm: "DES-EDE3-CBC", Parameters: "0123456789ABCDEF"},
		Headers:       []Header{{Name: "Originator-ID-Symmetric", Value: "alice@example.org,,"}},
		Body:          bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 40),
	}
	encoded := Encode(msg)

	// Body folded at 64 columns.
	for _, line := range strings.Split(string(encoded), "\r\n") {
		if !strings.HasPrefix(line, "-----") {
			assert.LessOrEqual(t, len(line), 64)
		}
	}

	back, err := DecodeOne(encoded)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, back.Type)
	assert.Equal(t, msg.Body, back.Body)
	require.NotNil(t, back.ProcType)
	assert.Equal(t, "ENCRYPTED", back.ProcType.Type)
	require.NotNil(t, back.DEKInfo)
	assert.Equal(t, "DES-EDE3-CBC", back.DEKInfo.Algorithm)
	assert.Equal(t, "0123456789ABCDEF", back.DEKInfo.Parameters)
	require.Len(t, back.Headers, 1)
	assert.Equal(t, "Originator-ID-Symmetric", back.Headers[0].Name)
}

func TestHeaderlessMessage(t *testing.T) {
	in := "-----BEGIN CERTIFICATE-----\r\nAAEC\r\n-----END CERTIFICATE-----\r\n"
	msg, err := DecodeOne([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, msg.Body)
	assert.Nil(t, msg.ProcType)
	assert.Empty(t, msg.Headers)
}

func TestNewCertificateRequestAlias(t *testing.T) {
	in := "-----BEGIN NEW CERTIFICATE REQUEST-----\nAAEC\n-----END NEW CERTIFICATE REQUEST-----\n"
	msg, err := DecodeOne([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, "CERTIFICATE REQUEST", msg.Type)
}

func TestEncryptedRequiresDEKInfo(t *testing.T) {
	in := "-----BEGIN X-----\nProc-Type: 4,ENCRYPTED\n\nAAEC\n-----END X-----\n"
	_, err := Decode([]byte(in))
	assert.Error(t, err)
}

func TestMultipleMessages(t *testing.T) {
	in := "-----BEGIN A-----\nAA==\n-----END A-----\n-----BEGIN B-----\nAQ==\n-----END B-----\n"
	msgs, err := Decode([]byte(in))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "A", msgs[0].Type)
	assert.Equal(t, "B", msgs[1].Type)
}

func TestLeadingWhitespaceBeforeBegin(t *testing.T) {
	in := "   \n\t-----BEGIN A-----\nAA==\n-----END A-----\n"
	_, err := DecodeOne([]byte(in))
	assert.NoError(t, err)
}

func TestMismatchedEndFails(t *testing.T) {
	in := "-----BEGIN A-----\nAA==\n-----END B-----\n"
	_, err := Decode([]byte(in))
	assert.Error(t, err)
}
