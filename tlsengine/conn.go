// Package tlsengine implements a TLS 1.0/1.1 record layer and
// handshake state machine with RSA key exchange. The engine performs
// no transport I/O: inbound bytes are pushed through Process and
// outbound bytes accumulate until drained via TakeTLSData (the
// TLSDataReady callback signals availability).
package tlsengine

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/paymentlogs/cryptosuite/bytebuf"
	"github.com/paymentlogs/cryptosuite/certs"
	"github.com/paymentlogs/cryptosuite/digest"
	"github.com/paymentlogs/cryptosuite/pki"
)

type role int

const (
	roleClient role = iota
	roleServer
)

func (r role) String() string {
	if r == roleClient {
		return "client"
	}
	return "server"
}

// expectState is the handshake message the state machine will accept
// next, one table per role.
type expectState int

const (
	// Client expect-states.
	stateSHE expectState = iota // ServerHello
	stateSCE                    // server Certificate
	stateSKE                    // ServerKeyExchange
	stateSCR                    // CertificateRequest
	stateSHD                    // ServerHelloDone
	stateSCC                    // server ChangeCipherSpec
	stateSFI                    // server Finished
	stateSAD                    // application data
	stateSER                    // error

	// Server expect-states.
	stateCHE // ClientHello
	stateCCE // client Certificate
	stateCKE // ClientKeyExchange
	stateCCV // CertificateVerify
	stateCCC // client ChangeCipherSpec
	stateCFI // client Finished
	stateCAD // application data
	stateCER // error
)

// Config carries per-connection options and embedder callbacks,
// following the familiar TLS config-struct shape. All callbacks are
// optional.
type Config struct {
	// ServerName is the SNI hint a client sends in its ClientHello.
	ServerName string

	// CipherSuites restricts the offered/accepted suites; nil means
	// every implemented suite in preference order.
	CipherSuites []uint16

	// MaxVersion caps the negotiated protocol version; zero means
	// TLS 1.1, the highest this engine implements.
	MaxVersion uint16

	// SessionID, on a client, requests resumption of a session
	// previously cached under that id.
	SessionID []byte

	// SessionCache shares resumable sessions across connections.
	SessionCache *SessionCache

	// CAStore holds the trust anchors for peer chain validation.
	CAStore *certs.Store

	// Certificate and PrivateKey identify this peer. A server must set
	// both; a client needs them only when the server requests a
	// certificate.
	Certificate *certs.Certificate
	PrivateKey  *pki.PrivateKey

	// VerifyClient makes a server request and require a client
	// certificate.
	VerifyClient bool

	// Rand supplies random bytes; crypto/rand when nil.
	Rand io.Reader

	// Time supplies the clock for certificate validation and the hello
	// random timestamp; time.Now when nil.
	Time func() time.Time

	// Deflate/Inflate enable the DEFLATE record compression method.
	// Both must be set for a connection to negotiate it.
	Deflate func([]byte) ([]byte, error)
	Inflate func([]byte) ([]byte, error)

	// VerifyPeer, when set, runs after the built-in chain validation
	// (or instead of it when no CAStore is configured) and may reject
	// the peer by returning an error.
	VerifyPeer func(c *Conn, chain []*certs.Certificate) error

	// GetSignature, when set, performs the CertificateVerify signing
	// externally. The callback receives the 36-byte MD5||SHA-1
	// transcript digest and a completion function that may be invoked
	// immediately or later; the handshake flight is held until then.
	GetSignature func(c *Conn, digest []byte, done func(signature []byte, err error))

	TLSDataReady func(*Conn) // outbound wire bytes are available
	DataReady    func(*Conn) // plaintext application data is available
	Connected    func(*Conn) // handshake completed
	Closed       func(*Conn) // connection closed
	OnError      func(*Conn, *ConnError)
}

// Conn is one endpoint of a TLS connection.
type Conn struct {
	role   role
	config *Config

	version            uint16
	clientHelloVersion uint16
	suite              *cipherSuite
	compression        uint8

	clientRandom [32]byte
	serverRandom [32]byte
	sessionID    []byte
	masterSecret []byte
	resuming     bool
	resumed      *Session

	in         halfConn
	out        halfConn
	pendingIn  *halfConn
	pendingOut *halfConn

	hsMD5  digest.Hash
	hsSHA1 digest.Hash
	hsBuf  []byte
	// preMsgDigest snapshots the transcript before the current inbound
	// message is hashed; CertificateVerify signs this snapshot.
	preMsgDigest []byte

	inBuf  *bytebuf.Buffer
	tlsOut *bytebuf.Buffer
	appIn  *bytebuf.Buffer

	state     expectState
	open      bool
	connected bool
	closed    bool
	fail      bool
	lastError *ConnError

	peerChain           []*certs.Certificate
	certVerified        bool
	sni                 string
	clientCertRequested bool
	sentClientCert      bool
}

func newConn(r role, cfg *Config) *Conn {
	if cfg == nil {
		cfg = &Config{}
	}
	c := &Conn{
		role:    r,
		config:  cfg,
		version: VersionTLS11,
		inBuf:   bytebuf.New(),
		tlsOut:  bytebuf.New(),
		appIn:   bytebuf.New(),
		hsMD5:   digest.NewMD5(),
		hsSHA1:  digest.NewSHA1(),
		open:    true,
	}
	c.hsMD5.Start()
	c.hsSHA1.Start()
	c.in.version = c.version
	c.out.version = c.version
	if r == roleClient {
		c.state = stateSHE
	} else {
		c.state = stateCHE
	}
	return c
}

// Client builds the client endpoint. Call Handshake to start.
func Client(cfg *Config) *Conn { return newConn(roleClient, cfg) }

// Server builds the server endpoint; it waits for a ClientHello.
func Server(cfg *Config) *Conn { return newConn(roleServer, cfg) }

func (c *Conn) rand() io.Reader {
	if c.config.Rand != nil {
		return c.config.Rand
	}
	return rand.Reader
}

func (c *Conn) now() time.Time {
	if c.config.Time != nil {
		return c.config.Time()
	}
	return time.Now()
}

// IsConnected reports whether the handshake has completed.
func (c *Conn) IsConnected() bool { return c.connected }

// IsClosed reports whether the connection has shut down.
func (c *Conn) IsClosed() bool { return c.closed }

// Err returns the terminal error, if any.
func (c *Conn) Err() *ConnError { return c.lastError }

// PeerCertificate returns the peer's leaf certificate, or nil.
func (c *Conn) PeerCertificate() *certs.Certificate {
	if len(c.peerChain) == 0 {
		return nil
	}
	return c.peerChain[0]
}

// CertVerified reports whether the peer chain passed validation.
func (c *Conn) CertVerified() bool { return c.certVerified }

// SNI returns the server name indication a server received, or the
// one a client sent.
func (c *Conn) SNI() string {
	if c.role == roleServer {
		return c.sni
	}
	return c.config.ServerName
}

// SessionID returns the negotiated session id.
func (c *Conn) SessionID() []byte { return append([]byte(nil), c.sessionID...) }

// TakeTLSData drains and returns the buffered outbound wire bytes.
func (c *Conn) TakeTLSData() []byte {
	out := append([]byte(nil), c.tlsOut.Bytes()...)
	c.tlsOut.Clear()
	return out
}

// --- outbound plumbing ---

func (c *Conn) queueHandshake(msgType uint8, body []byte) error {
	msg := handshakeHeader(msgType, body)
	_, _ = c.hsMD5.Write(msg)
	_, _ = c.hsSHA1.Write(msg)
	return c.writeRecord(recordTypeHandshake, msg)
}

func (c *Conn) sendAlert(a Alert) error {
	return c.writeRecord(recordTypeAlert, []byte{byte(a.Level), byte(a.Description)})
}

func (c *Conn) sendChangeCipherSpec() error {
	if err := c.writeRecord(recordTypeChangeCipherSpec, []byte{1}); err != nil {
		return err
	}
	c.out = *c.pendingOut
	c.pendingOut = nil
	return nil
}

// fatal queues a fatal alert, reports through OnError, and poisons the
// connection.
func (c *Conn) fatal(desc AlertDescription, err error) error {
	if c.fail {
		return c.lastError
	}
	c.fail = true
	c.open = false
	a := Alert{AlertLevelFatal, desc}
	sendErr := c.sendAlert(a)
	ce := &ConnError{
		Alert:  a,
		Send:   sendErr == nil,
		Fatal:  true,
		Origin: c.role.String(),
		Err:    err,
	}
	c.lastError = ce
	c.state = errorState(c.role)
	if c.config.OnError != nil {
		c.config.OnError(c, ce)
	}
	return ce
}

func errorState(r role) expectState {
	if r == roleClient {
		return stateSER
	}
	return stateCER
}

// Prepare queues application data for the peer.
func (c *Conn) Prepare(data []byte) error {
	if !c.connected || c.fail || c.closed {
		return errors.New("tlsengine: connection not ready for application data")
	}
	if err := c.writeRecord(recordTypeApplicationData, data); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	return nil
}

// TakeData drains and returns buffered plaintext from the peer.
func (c *Conn) TakeData() []byte {
	out := append([]byte(nil), c.appIn.Bytes()...)
	c.appIn.Clear()
	return out
}

// Close performs the graceful shutdown: queue a close_notify warning
// if the connection is open and has not failed, then mark it closed
// and not connected. Passing clearFail also clears a prior failure and
// the recorded error. Close does not reset the handshake state, and
// Handshake refuses a closed Conn, so a closed Conn cannot be reused.
func (c *Conn) Close(clearFail bool) {
	if c.open && !c.fail {
		_ = c.sendAlert(Alert{AlertLevelWarning, AlertCloseNotify})
	}
	wasOpen := c.open
	c.open = false
	c.connected = false
	c.closed = true
	if clearFail {
		c.fail = false
		c.lastError = nil
	}
	if wasOpen && c.config.Closed != nil {
		c.config.Closed(c)
	}
}

// --- key derivation ---

const preMasterSecretLen = 48

func (c *Conn) computeMasterSecret(preMaster []byte) error {
	seed := append(append([]byte(nil), c.clientRandom[:]...), c.serverRandom[:]...)
	ms, err := prfTLS1(preMaster, "master secret", seed, 48)
	if err != nil {
		return err
	}
	c.masterSecret = ms
	return nil
}

// makePendingStates derives the key block and builds both directions'
// pending cipher states. The block is split client MAC, server MAC,
// client key, server key, then (TLS 1.0 only) client IV, server IV.
func (c *Conn) makePendingStates() error {
	suite := c.suite
	ivLen := 0
	if c.version == VersionTLS10 {
		ivLen = suite.ivLen
	}
	total := 2*suite.macLen + 2*suite.keyLen + 2*ivLen
	seed := append(append([]byte(nil), c.serverRandom[:]...), c.clientRandom[:]...)
	kb, err := prfTLS1(c.masterSecret, "key expansion", seed, total)
	if err != nil {
		return err
	}
	next := func(n int) []byte {
		out := kb[:n]
		kb = kb[n:]
		return out
	}
	clientMAC := next(suite.macLen)
	serverMAC := next(suite.macLen)
	clientKey := next(suite.keyLen)
	serverKey := next(suite.keyLen)
	clientIV := next(ivLen)
	serverIV := next(ivLen)

	build := func(macKey, key, iv []byte) (*halfConn, error) {
		mac, err := suite.mac(macKey)
		if err != nil {
			return nil, err
		}
		alg, err := suite.cipher(key)
		if err != nil {
			return nil, err
		}
		return &halfConn{
			cipher:      alg,
			mac:         mac,
			iv:          append([]byte(nil), iv...),
			version:     c.version,
			compression: c.compression,
		}, nil
	}
	clientWrite, err := build(clientMAC, clientKey, clientIV)
	if err != nil {
		return err
	}
	serverWrite, err := build(serverMAC, serverKey, serverIV)
	if err != nil {
		return err
	}
	if c.role == roleClient {
		c.pendingOut = clientWrite
		c.pendingIn = serverWrite
	} else {
		c.pendingOut = serverWrite
		c.pendingIn = clientWrite
	}
	return nil
}

// finishedVerifyData computes PRF(master, label, MD5 || SHA-1 of the
// handshake transcript so far, 12).
func (c *Conn) finishedVerifyData(label string) ([]byte, error) {
	transcript := append(c.hsMD5.Sum(), c.hsSHA1.Sum()...)
	return prfTLS1(c.masterSecret, label, transcript, finishedVerifyLen)
}

// transcriptDigest is the MD5 || SHA-1 snapshot CertificateVerify
// signs.
func (c *Conn) transcriptDigest() []byte {
	return append(c.hsMD5.Sum(), c.hsSHA1.Sum()...)
}

// --- inbound plumbing ---

// Process pushes inbound transport bytes through the state machine.
// It returns the number of additional bytes needed before the next
// record can be processed (a full record header's worth when the input
// ends on a record boundary) and the terminal error, if the connection
// has failed. Once the connection has failed or closed it returns zero.
func (c *Conn) Process(data []byte) (int, error) {
	c.inBuf.PutBytes(data)
	for !c.fail && !c.closed {
		if c.inBuf.Len() < recordHeaderLen {
			c.inBuf.Compact()
			return recordHeaderLen - c.inBuf.Len(), nil
		}
		hdr, _ := c.inBuf.Peek(recordHeaderLen)
		typ := hdr[0]
		if hdr[1] != 3 {
			return 0, c.fatal(AlertProtocolVersion, fmt.Errorf("record version %d.%d", hdr[1], hdr[2]))
		}
		length := int(hdr[3])<<8 | int(hdr[4])
		if length > maxCiphertext {
			return 0, c.fatal(AlertRecordOverflow, fmt.Errorf("record of %d bytes", length))
		}
		if c.inBuf.Len() < recordHeaderLen+length {
			c.inBuf.Compact()
			return recordHeaderLen + length - c.inBuf.Len(), nil
		}
		_ = c.inBuf.Skip(recordHeaderLen)
		payload, _ := c.inBuf.Consume(length)

		plaintext, alert := c.unprotect(&c.in, typ, payload)
		if alert != nil {
			return 0, c.fatal(alert.Description, nil)
		}
		if err := c.handleRecord(typ, plaintext); err != nil {
			return 0, err
		}
		c.inBuf.Compact()
	}
	if c.fail {
		return 0, c.lastError
	}
	return 0, nil
}

func (c *Conn) handleRecord(typ uint8, plaintext []byte) error {
	switch typ {
	case recordTypeHandshake:
		if len(plaintext) == 0 {
			return c.fatal(AlertUnexpectedMessage, errors.New("zero-length handshake fragment"))
		}
		c.hsBuf = append(c.hsBuf, plaintext...)
		for len(c.hsBuf) >= 4 {
			msgLen := int(c.hsBuf[1])<<16 | int(c.hsBuf[2])<<8 | int(c.hsBuf[3])
			if len(c.hsBuf) < 4+msgLen {
				break
			}
			raw := append([]byte(nil), c.hsBuf[:4+msgLen]...)
			c.hsBuf = c.hsBuf[4+msgLen:]
			if err := c.handleHandshake(raw[0], raw[4:], raw); err != nil {
				return err
			}
		}
		return nil
	case recordTypeChangeCipherSpec:
		if len(plaintext) != 1 || plaintext[0] != 1 {
			return c.fatal(AlertDecodeError, errors.New("malformed ChangeCipherSpec"))
		}
		return c.handleChangeCipherSpec()
	case recordTypeAlert:
		if len(plaintext) != 2 {
			return c.fatal(AlertDecodeError, errors.New("malformed alert"))
		}
		return c.handleAlert(Alert{AlertLevel(plaintext[0]), AlertDescription(plaintext[1])})
	case recordTypeApplicationData:
		if !c.connected {
			return c.fatal(AlertUnexpectedMessage, errors.New("application data before handshake completion"))
		}
		c.appIn.PutBytes(plaintext)
		if c.config.DataReady != nil {
			c.config.DataReady(c)
		}
		return nil
	}
	return c.fatal(AlertUnexpectedMessage, fmt.Errorf("record type %d", typ))
}

func (c *Conn) handleAlert(a Alert) error {
	if a.Level == AlertLevelWarning && a.Description == AlertCloseNotify {
		c.open = false
		c.closed = true
		c.connected = false
		if c.config.Closed != nil {
			c.config.Closed(c)
		}
		return nil
	}
	if a.Level == AlertLevelFatal {
		c.fail = true
		c.open = false
		c.state = errorState(c.role)
		ce := &ConnError{Alert: a, Send: false, Fatal: true, Origin: peerRole(c.role).String()}
		c.lastError = ce
		if c.config.OnError != nil {
			c.config.OnError(c, ce)
		}
		return ce
	}
	// Non-fatal warnings are reported and otherwise ignored.
	if c.config.OnError != nil {
		c.config.OnError(c, &ConnError{Alert: a, Origin: peerRole(c.role).String()})
	}
	return nil
}

func peerRole(r role) role {
	if r == roleClient {
		return roleServer
	}
	return roleClient
}

func (c *Conn) handleChangeCipherSpec() error {
	expect := stateSCC
	if c.role == roleServer {
		expect = stateCCC
	}
	if c.state != expect {
		return c.fatal(AlertUnexpectedMessage, errors.New("ChangeCipherSpec out of order"))
	}
	if c.pendingIn == nil {
		return c.fatal(AlertUnexpectedMessage, errors.New("ChangeCipherSpec before key derivation"))
	}
	c.in = *c.pendingIn
	c.pendingIn = nil
	if c.role == roleClient {
		c.state = stateSFI
	} else {
		c.state = stateCFI
	}
	return nil
}

func (c *Conn) handleHandshake(msgType uint8, body, raw []byte) error {
	// A HelloRequest on an established connection asks for
	// renegotiation, which this engine declines with a warning; it is
	// excluded from the transcript.
	if msgType == typeHelloRequest {
		if c.connected {
			return c.sendAlert(Alert{AlertLevelWarning, AlertNoRenegotiation})
		}
		return nil
	}

	// Finished verification needs the transcript without the incoming
	// message; every handler below that checks verify data runs before
	// this update by snapshotting first.
	if msgType == typeFinished {
		if err := c.checkFinished(body); err != nil {
			return err
		}
	}
	c.preMsgDigest = c.transcriptDigest()
	_, _ = c.hsMD5.Write(raw)
	_, _ = c.hsSHA1.Write(raw)
	if msgType == typeFinished {
		return c.afterFinished()
	}

	if c.role == roleClient {
		return c.clientHandshake(msgType, body)
	}
	return c.serverHandshake(msgType, body)
}
