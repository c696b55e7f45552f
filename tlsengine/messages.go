package tlsengine

import "github.com/paymentlogs/cryptosuite/bytebuf"

// Handshake message types.
const (
	typeHelloRequest       uint8 = 0
	typeClientHello        uint8 = 1
	typeServerHello        uint8 = 2
	typeCertificate        uint8 = 11
	typeServerKeyExchange  uint8 = 12
	typeCertificateRequest uint8 = 13
	typeServerHelloDone    uint8 = 14
	typeCertificateVerify  uint8 = 15
	typeClientKeyExchange  uint8 = 16
	typeFinished           uint8 = 20
)

const extensionServerName uint16 = 0

type clientHelloMsg struct {
	version            uint16
	random             [32]byte
	sessionID          []byte
	cipherSuites       []uint16
	compressionMethods []uint8
	serverName         string
}

func (m *clientHelloMsg) marshal() []byte {
	b := bytebuf.New()
	b.PutUint16(m.version)
	b.PutBytes(m.random[:])
	b.PutByte(byte(len(m.sessionID)))
	b.PutBytes(m.sessionID)
	b.PutUint16(uint16(2 * len(m.cipherSuites)))
	for _, s := range m.cipherSuites {
		b.PutUint16(s)
	}
	b.PutByte(byte(len(m.compressionMethods)))
	b.PutBytes(m.compressionMethods)

	if m.serverName != "" {
		ext := bytebuf.New()
		// server_name extension: one host_name entry.
		ext.PutUint16(extensionServerName)
		ext.PutUint16(uint16(len(m.serverName) + 5))
		ext.PutUint16(uint16(len(m.serverName) + 3))
		ext.PutByte(0) // name_type host_name
		ext.PutUint16(uint16(len(m.serverName)))
		ext.PutBytes([]byte(m.serverName))
		b.PutUint16(uint16(ext.Len()))
		b.PutBytes(ext.Bytes())
	}
	return b.Bytes()
}

func (m *clientHelloMsg) unmarshal(data []byte) bool {
	b := bytebuf.NewFromBytes(data)
	var err error
	if m.version, err = b.ReadUint16(); err != nil {
		return false
	}
	random, err := b.Consume(32)
	if err != nil {
		return false
	}
	copy(m.random[:], random)
	sidLen, err := b.ReadByte()
	if err != nil || sidLen > 32 {
		return false
	}
	sid, err := b.Consume(int(sidLen))
	if err != nil {
		return false
	}
	m.sessionID = append([]byte(nil), sid...)
	suitesLen, err := b.ReadUint16()
	if err != nil || suitesLen%2 != 0 {
		return false
	}
	m.cipherSuites = nil
	for i := 0; i < int(suitesLen)/2; i++ {
		s, err := b.ReadUint16()
		if err != nil {
			return false
		}
		m.cipherSuites = append(m.cipherSuites, s)
	}
	compLen, err := b.ReadByte()
	if err != nil {
		return false
	}
	comps, err := b.Consume(int(compLen))
	if err != nil {
		return false
	}
	m.compressionMethods = append([]uint8(nil), comps...)

	m.serverName = ""
	if b.Len() == 0 {
		return true
	}
	extsLen, err := b.ReadUint16()
	if err != nil || int(extsLen) != b.Len() {
		return false
	}
	for b.Len() > 0 {
		extType, err := b.ReadUint16()
		if err != nil {
			return false
		}
		extLen, err := b.ReadUint16()
		if err != nil {
			return false
		}
		body, err := b.Consume(int(extLen))
		if err != nil {
			return false
		}
		if extType == extensionServerName {
			if !m.parseServerName(body) {
				return false
			}
		}
	}
	return true
}

func (m *clientHelloMsg) parseServerName(body []byte) bool {
	b := bytebuf.NewFromBytes(body)
	listLen, err := b.ReadUint16()
	if err != nil || int(listLen) != b.Len() {
		return false
	}
	for b.Len() > 0 {
		nameType, err := b.ReadByte()
		if err != nil {
			return false
		}
		nameLen, err := b.ReadUint16()
		if err != nil {
			return false
		}
		name, err := b.Consume(int(nameLen))
		if err != nil {
			return false
		}
		if nameType == 0 {
			m.serverName = string(name)
		}
	}
	return true
}

type serverHelloMsg struct {
	version     uint16
	random      [32]byte
	sessionID   []byte
	cipherSuite uint16
	compression uint8
}

func (m *serverHelloMsg) marshal() []byte {
	b := bytebuf.New()
	b.PutUint16(m.version)
	b.PutBytes(m.random[:])
	b.PutByte(byte(len(m.sessionID)))
	b.PutBytes(m.sessionID)
	b.PutUint16(m.cipherSuite)
	b.PutByte(m.compression)
	return b.Bytes()
}

func (m *serverHelloMsg) unmarshal(data []byte) bool {
	b := bytebuf.NewFromBytes(data)
	var err error
	if m.version, err = b.ReadUint16(); err != nil {
		return false
	}
	random, err := b.Consume(32)
	if err != nil {
		return false
	}
	copy(m.random[:], random)
	sidLen, err := b.ReadByte()
	if err != nil || sidLen > 32 {
		return false
	}
	sid, err := b.Consume(int(sidLen))
	if err != nil {
		return false
	}
	m.sessionID = append([]byte(nil), sid...)
	if m.cipherSuite, err = b.ReadUint16(); err != nil {
		return false
	}
	if m.compression, err = b.ReadByte(); err != nil {
		return false
	}
	return true
}

type certificateMsg struct {
	certificates [][]byte
}

func (m *certificateMsg) marshal() []byte {
	inner := bytebuf.New()
	for _, der := range m.certificates {
		inner.PutUint24(uint32(len(der)))
		inner.PutBytes(der)
	}
	b := bytebuf.New()
	b.PutUint24(uint32(inner.Len()))
	b.PutBytes(inner.Bytes())
	return b.Bytes()
}

func (m *certificateMsg) unmarshal(data []byte) bool {
	b := bytebuf.NewFromBytes(data)
	total, err := b.ReadUint24()
	if err != nil || int(total) != b.Len() {
		return false
	}
	m.certificates = nil
	for b.Len() > 0 {
		certLen, err := b.ReadUint24()
		if err != nil {
			return false
		}
		der, err := b.Consume(int(certLen))
		if err != nil {
			return false
		}
		m.certificates = append(m.certificates, append([]byte(nil), der...))
	}
	return true
}

type certificateRequestMsg struct {
	certificateTypes []uint8
}

func (m *certificateRequestMsg) marshal() []byte {
	b := bytebuf.New()
	b.PutByte(byte(len(m.certificateTypes)))
	b.PutBytes(m.certificateTypes)
	b.PutUint16(0) // no distinguished names
	return b.Bytes()
}

func (m *certificateRequestMsg) unmarshal(data []byte) bool {
	b := bytebuf.NewFromBytes(data)
	typesLen, err := b.ReadByte()
	if err != nil {
		return false
	}
	types, err := b.Consume(int(typesLen))
	if err != nil {
		return false
	}
	m.certificateTypes = append([]uint8(nil), types...)
	casLen, err := b.ReadUint16()
	if err != nil {
		return false
	}
	return b.Skip(int(casLen)) == nil
}

type clientKeyExchangeMsg struct {
	encryptedPreMasterSecret []byte
}

func (m *clientKeyExchangeMsg) marshal() []byte {
	b := bytebuf.New()
	b.PutUint16(uint16(len(m.encryptedPreMasterSecret)))
	b.PutBytes(m.encryptedPreMasterSecret)
	return b.Bytes()
}

func (m *clientKeyExchangeMsg) unmarshal(data []byte) bool {
	b := bytebuf.NewFromBytes(data)
	n, err := b.ReadUint16()
	if err != nil || int(n) != b.Len() {
		return false
	}
	v, err := b.Consume(int(n))
	if err != nil {
		return false
	}
	m.encryptedPreMasterSecret = append([]byte(nil), v...)
	return true
}

type certificateVerifyMsg struct {
	signature []byte
}

func (m *certificateVerifyMsg) marshal() []byte {
	b := bytebuf.New()
	b.PutUint16(uint16(len(m.signature)))
	b.PutBytes(m.signature)
	return b.Bytes()
}

func (m *certificateVerifyMsg) unmarshal(data []byte) bool {
	b := bytebuf.NewFromBytes(data)
	n, err := b.ReadUint16()
	if err != nil || int(n) != b.Len() {
		return false
	}
	v, err := b.Consume(int(n))
	if err != nil {
		return false
	}
	m.signature = append([]byte(nil), v...)
	return true
}

type finishedMsg struct {
	verifyData []byte
}

func (m *finishedMsg) marshal() []byte {
	return append([]byte(nil), m.verifyData...)
}

func (m *finishedMsg) unmarshal(data []byte) bool {
	if len(data) != 12 {
		return false
	}
	m.verifyData = append([]byte(nil), data...)
	return true
}

// handshakeHeader prepends the 1-byte type and 3-byte length.
func handshakeHeader(msgType uint8, body []byte) []byte {
	b := bytebuf.New()
	b.PutByte(msgType)
	b.PutUint24(uint32(len(body)))
	b.PutBytes(body)
	return b.Bytes()
}
