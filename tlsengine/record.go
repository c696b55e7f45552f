package tlsengine

import (
	"errors"
	"io"

	"github.com/paymentlogs/cryptosuite/blockcipher"
)

// Record content types.
const (
	recordTypeChangeCipherSpec uint8 = 20
	recordTypeAlert            uint8 = 21
	recordTypeHandshake        uint8 = 22
	recordTypeApplicationData  uint8 = 23
)

// Protocol versions. The engine advertises the highest supported and
// downgrades to the peer's minor version when lower.
const (
	VersionTLS10 uint16 = 0x0301
	VersionTLS11 uint16 = 0x0302
)

const (
	recordHeaderLen = 5
	maxPlaintext    = 1 << 14
	// maxFragment leaves headroom for compression and cipher expansion
	// so a protected record never exceeds the receive limit.
	maxFragment      = 1<<14 - 1024
	maxCompressed    = 1<<14 + 1024
	maxCiphertext    = 1<<14 + 2048
	finishedVerifyLen = 12
)

var errSequenceOverflow = errors.New("tlsengine: record sequence number would wrap")

// halfConn is one direction's record protection state.
type halfConn struct {
	seq         [8]byte
	cipher      blockcipher.Algorithm
	mac         macFunction
	iv          []byte // TLS 1.0 CBC residue chaining
	version     uint16
	compression uint8
}

// incSeq advances the 64-bit sequence number, failing instead of
// wrapping to zero.
func (hc *halfConn) incSeq() error {
	for i := 7; i >= 0; i-- {
		hc.seq[i]++
		if hc.seq[i] != 0 {
			return nil
		}
	}
	for i := range hc.seq {
		hc.seq[i] = 0xFF
	}
	return errSequenceOverflow
}

func macHeader(typ uint8, version uint16, length int) []byte {
	return []byte{typ, byte(version >> 8), byte(version), byte(length >> 8), byte(length)}
}

// protect applies compress-then-MAC-then-encrypt to one outbound
// fragment and returns the record payload.
func (c *Conn) protect(hc *halfConn, typ uint8, fragment []byte) ([]byte, error) {
	data := fragment
	if hc.compression == compressionDeflate && c.config.Deflate != nil {
		var err error
		if data, err = c.config.Deflate(fragment); err != nil {
			return nil, err
		}
		if len(data) > maxCompressed {
			return nil, errors.New("tlsengine: compression expanded past limit")
		}
	}

	var mac []byte
	if hc.mac != nil {
		var err error
		mac, err = hc.mac.MAC(hc.seq[:], macHeader(typ, hc.version, len(data)), data, nil)
		if err != nil {
			return nil, err
		}
	}

	var payload []byte
	if hc.cipher == nil {
		payload = append(append([]byte(nil), data...), mac...)
	} else {
		bs := hc.cipher.BlockSize()
		content := append(append([]byte(nil), data...), mac...)
		padLen := bs - (len(content)+1)%bs
		if padLen == bs {
			padLen = 0
		}
		for i := 0; i <= padLen; i++ {
			content = append(content, byte(padLen))
		}

		var iv []byte
		if hc.version >= VersionTLS11 {
			iv = make([]byte, bs)
			if _, err := io.ReadFull(c.rand(), iv); err != nil {
				return nil, err
			}
		} else {
			iv = hc.iv
		}
		mode := &blockcipher.CBCMode{}
		if err := mode.Start(hc.cipher, blockcipher.StartOptions{IV: iv, Padding: blockcipher.PadNone}); err != nil {
			return nil, err
		}
		mode.Update(content)
		ct, _, err := mode.Finish()
		if err != nil {
			return nil, err
		}
		if hc.version >= VersionTLS11 {
			payload = append(iv, ct...)
		} else {
			payload = ct
			hc.iv = append(hc.iv[:0], ct[len(ct)-bs:]...)
		}
	}

	if err := hc.incSeq(); err != nil {
		return nil, err
	}
	return payload, nil
}

// unprotect reverses protect for one inbound record payload. A nil
// alert means success. The MAC is verified in constant time and is
// computed whether or not the padding was valid.
func (c *Conn) unprotect(hc *halfConn, typ uint8, payload []byte) ([]byte, *Alert) {
	data := payload
	if hc.cipher != nil {
		bs := hc.cipher.BlockSize()
		macLen := hc.mac.Size()

		var iv, ct []byte
		if hc.version >= VersionTLS11 {
			if len(payload) < bs {
				return nil, &Alert{AlertLevelFatal, AlertDecryptionFailed}
			}
			iv, ct = payload[:bs], payload[bs:]
		} else {
			iv, ct = hc.iv, payload
		}
		if len(ct) == 0 || len(ct)%bs != 0 || len(ct) < bs {
			return nil, &Alert{AlertLevelFatal, AlertDecryptionFailed}
		}

		mode := &blockcipher.CBCMode{}
		if err := mode.Start(hc.cipher, blockcipher.StartOptions{IV: iv, Padding: blockcipher.PadNone, Decrypt: true}); err != nil {
			return nil, &Alert{AlertLevelFatal, AlertInternalError}
		}
		mode.Update(ct)
		pt, _, err := mode.Finish()
		if err != nil {
			return nil, &Alert{AlertLevelFatal, AlertDecryptionFailed}
		}
		if hc.version < VersionTLS11 {
			hc.iv = append(hc.iv[:0], ct[len(ct)-bs:]...)
		}

		// Validate padding without early exit, then always run the MAC.
		good := 1
		padLen := int(pt[len(pt)-1]) + 1
		if padLen+macLen > len(pt) {
			good = 0
			padLen = 1
		}
		for i := len(pt) - padLen; i < len(pt); i++ {
			if pt[i] != byte(padLen-1) {
				good = 0
			}
		}
		content := pt[:len(pt)-padLen-macLen]
		gotMAC := pt[len(pt)-padLen-macLen : len(pt)-padLen]

		wantMAC, err := hc.mac.MAC(hc.seq[:], macHeader(typ, hc.version, len(content)), content, pt[len(pt)-padLen:])
		if err != nil {
			return nil, &Alert{AlertLevelFatal, AlertInternalError}
		}
		if good != 1 || !macEqual(gotMAC, wantMAC) {
			return nil, &Alert{AlertLevelFatal, AlertBadRecordMAC}
		}
		data = content
	} else if hc.mac != nil {
		macLen := hc.mac.Size()
		if len(payload) < macLen {
			return nil, &Alert{AlertLevelFatal, AlertBadRecordMAC}
		}
		content := payload[:len(payload)-macLen]
		wantMAC, err := hc.mac.MAC(hc.seq[:], macHeader(typ, hc.version, len(content)), content, nil)
		if err != nil {
			return nil, &Alert{AlertLevelFatal, AlertInternalError}
		}
		if !macEqual(payload[len(payload)-macLen:], wantMAC) {
			return nil, &Alert{AlertLevelFatal, AlertBadRecordMAC}
		}
		data = content
	}

	if hc.compression == compressionDeflate && c.config.Inflate != nil {
		out, err := c.config.Inflate(data)
		if err != nil || len(out) > maxPlaintext+1024 {
			return nil, &Alert{AlertLevelFatal, AlertDecompressionFailure}
		}
		data = out
	}

	if err := hc.incSeq(); err != nil {
		return nil, &Alert{AlertLevelFatal, AlertInternalError}
	}
	return data, nil
}

// writeRecord fragments data and appends protected records to the
// outbound buffer.
func (c *Conn) writeRecord(typ uint8, data []byte) error {
	for first := true; first || len(data) > 0; first = false {
		n := len(data)
		if n > maxFragment {
			n = maxFragment
		}
		fragment := data[:n]
		data = data[n:]
		if !first && len(fragment) == 0 {
			break
		}

		payload, err := c.protect(&c.out, typ, fragment)
		if err != nil {
			return err
		}
		c.tlsOut.PutByte(typ)
		c.tlsOut.PutUint16(c.out.version)
		c.tlsOut.PutUint16(uint16(len(payload)))
		c.tlsOut.PutBytes(payload)
	}
	if c.config.TLSDataReady != nil {
		c.config.TLSDataReady(c)
	}
	return nil
}
