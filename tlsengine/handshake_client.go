package tlsengine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/paymentlogs/cryptosuite/certs"
	"github.com/paymentlogs/cryptosuite/pki"
)

// Handshake starts the client side: build and queue the ClientHello.
func (c *Conn) Handshake() error {
	if c.role != roleClient {
		return errors.New("tlsengine: Handshake is client-initiated; servers respond to ClientHello")
	}
	if c.fail || c.closed {
		return errors.New("tlsengine: connection is not open")
	}

	c.clientHelloVersion = c.maxVersion()
	c.setVersion(c.clientHelloVersion)
	if err := c.fillRandom(&c.clientRandom); err != nil {
		return c.fatal(AlertInternalError, err)
	}

	hello := &clientHelloMsg{
		version:            c.clientHelloVersion,
		random:             c.clientRandom,
		cipherSuites:       c.offeredSuites(),
		compressionMethods: c.offeredCompression(),
		serverName:         c.config.ServerName,
	}
	if len(c.config.SessionID) > 0 && c.config.SessionCache != nil {
		if s := c.config.SessionCache.Get(c.config.SessionID); s != nil {
			c.resumed = s
			hello.sessionID = c.config.SessionID
		}
	}
	c.state = stateSHE
	if err := c.queueHandshake(typeClientHello, hello.marshal()); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	return nil
}

// fillRandom builds a hello random: 4-byte unix time then 28 random
// bytes.
func (c *Conn) fillRandom(out *[32]byte) error {
	t := uint32(c.now().Unix())
	out[0], out[1], out[2], out[3] = byte(t>>24), byte(t>>16), byte(t>>8), byte(t)
	_, err := io.ReadFull(c.rand(), out[4:])
	return err
}

func (c *Conn) maxVersion() uint16 {
	if c.config.MaxVersion >= VersionTLS10 && c.config.MaxVersion <= VersionTLS11 {
		return c.config.MaxVersion
	}
	return VersionTLS11
}

func (c *Conn) offeredSuites() []uint16 {
	if len(c.config.CipherSuites) > 0 {
		return c.config.CipherSuites
	}
	return defaultCipherSuiteIDs()
}

func (c *Conn) offeredCompression() []uint8 {
	if c.config.Deflate != nil && c.config.Inflate != nil {
		return []uint8{compressionDeflate, compressionNull}
	}
	return []uint8{compressionNull}
}

func (c *Conn) clientHandshake(msgType uint8, body []byte) error {
	switch c.state {
	case stateSHE:
		if msgType != typeServerHello {
			return c.unexpected(msgType, typeServerHello)
		}
		return c.handleServerHello(body)

	case stateSCE:
		if msgType == typeCertificate {
			var msg certificateMsg
			if !msg.unmarshal(body) {
				return c.fatal(AlertDecodeError, errors.New("malformed Certificate"))
			}
			if err := c.processPeerCertificates(&msg, true); err != nil {
				return err
			}
			c.state = stateSKE
			return nil
		}
		c.state = stateSKE
		return c.clientHandshake(msgType, body)

	case stateSKE:
		if msgType == typeServerKeyExchange {
			// RSA key exchange carries no server parameters.
			if len(body) != 0 {
				return c.fatal(AlertUnsupportedCertificate, errors.New("unexpected ServerKeyExchange parameters"))
			}
			c.state = stateSCR
			return nil
		}
		c.state = stateSCR
		return c.clientHandshake(msgType, body)

	case stateSCR:
		if msgType == typeCertificateRequest {
			var msg certificateRequestMsg
			if !msg.unmarshal(body) {
				return c.fatal(AlertDecodeError, errors.New("malformed CertificateRequest"))
			}
			c.clientCertRequested = true
			c.state = stateSHD
			return nil
		}
		c.state = stateSHD
		return c.clientHandshake(msgType, body)

	case stateSHD:
		if msgType != typeServerHelloDone {
			return c.unexpected(msgType, typeServerHelloDone)
		}
		if len(body) != 0 {
			return c.fatal(AlertDecodeError, errors.New("ServerHelloDone with a body"))
		}
		return c.sendClientFlight()
	}
	return c.unexpected(msgType, 0)
}

func (c *Conn) handleServerHello(body []byte) error {
	var msg serverHelloMsg
	if !msg.unmarshal(body) {
		return c.fatal(AlertDecodeError, errors.New("malformed ServerHello"))
	}
	if msg.version < VersionTLS10 || msg.version > c.clientHelloVersion {
		return c.fatal(AlertProtocolVersion, fmt.Errorf("server version %04x", msg.version))
	}
	c.setVersion(msg.version)

	suite := selectedCipherSuite(msg.cipherSuite)
	if suite == nil || !containsUint16(c.offeredSuites(), msg.cipherSuite) {
		return c.fatal(AlertIllegalParameter, fmt.Errorf("server chose suite %04x", msg.cipherSuite))
	}
	c.suite = suite
	if !bytes.Contains(c.offeredCompression(), []byte{msg.compression}) {
		return c.fatal(AlertIllegalParameter, fmt.Errorf("server chose compression %d", msg.compression))
	}
	c.compression = msg.compression
	c.serverRandom = msg.random

	if c.resumed != nil && len(msg.sessionID) > 0 && bytes.Equal(msg.sessionID, c.config.SessionID) {
		// Session resumption: the server jumps straight to
		// ChangeCipherSpec/Finished.
		if c.resumed.CipherSuite != msg.cipherSuite {
			return c.fatal(AlertIllegalParameter, errors.New("resumed session with a different suite"))
		}
		c.resuming = true
		c.sessionID = append([]byte(nil), msg.sessionID...)
		c.masterSecret = append([]byte(nil), c.resumed.MasterSecret...)
		if err := c.makePendingStates(); err != nil {
			return c.fatal(AlertInternalError, err)
		}
		c.state = stateSCC
		return nil
	}
	c.resumed = nil
	c.sessionID = append([]byte(nil), msg.sessionID...)
	c.state = stateSCE
	return nil
}

func (c *Conn) setVersion(v uint16) {
	c.version = v
	c.in.version = v
	c.out.version = v
}

func containsUint16(haystack []uint16, needle uint16) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// sendClientFlight responds to ServerHelloDone: optional Certificate,
// ClientKeyExchange, optional CertificateVerify, ChangeCipherSpec,
// Finished. When GetSignature is configured the flight pauses for the
// external signer and resumes from its completion callback.
func (c *Conn) sendClientFlight() error {
	if c.clientCertRequested {
		var msg certificateMsg
		if c.config.Certificate != nil {
			msg.certificates = [][]byte{c.config.Certificate.Raw}
			c.sentClientCert = true
		}
		if err := c.queueHandshake(typeCertificate, msg.marshal()); err != nil {
			return c.fatal(AlertInternalError, err)
		}
	}

	serverCert := c.PeerCertificate()
	if serverCert == nil || serverCert.PublicKey == nil {
		return c.fatal(AlertHandshakeFailure, errors.New("no server certificate to encrypt to"))
	}
	preMaster := make([]byte, preMasterSecretLen)
	preMaster[0] = byte(c.clientHelloVersion >> 8)
	preMaster[1] = byte(c.clientHelloVersion)
	if _, err := io.ReadFull(c.rand(), preMaster[2:]); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	encrypted, err := pki.EncryptPKCS1v15(c.rand(), serverCert.PublicKey, preMaster)
	if err != nil {
		return c.fatal(AlertInternalError, err)
	}
	cke := &clientKeyExchangeMsg{encryptedPreMasterSecret: encrypted}
	if err := c.queueHandshake(typeClientKeyExchange, cke.marshal()); err != nil {
		return c.fatal(AlertInternalError, err)
	}

	if err := c.computeMasterSecret(preMaster); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if err := c.makePendingStates(); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	c.state = stateSCC

	if !c.sentClientCert {
		return c.finishClientFlight(nil)
	}

	transcript := c.transcriptDigest()
	if c.config.GetSignature != nil {
		c.config.GetSignature(c, transcript, func(signature []byte, err error) {
			if err != nil {
				_ = c.fatal(AlertInternalError, err)
				return
			}
			_ = c.finishClientFlight(signature)
		})
		return nil
	}
	if c.config.PrivateKey == nil {
		return c.fatal(AlertHandshakeFailure, errors.New("client certificate sent without a signing key"))
	}
	signature, err := pki.SignPKCS1v15(c.config.PrivateKey, "", transcript)
	if err != nil {
		return c.fatal(AlertInternalError, err)
	}
	return c.finishClientFlight(signature)
}

func (c *Conn) finishClientFlight(certVerifySig []byte) error {
	if certVerifySig != nil {
		msg := &certificateVerifyMsg{signature: certVerifySig}
		if err := c.queueHandshake(typeCertificateVerify, msg.marshal()); err != nil {
			return c.fatal(AlertInternalError, err)
		}
	}
	if err := c.sendChangeCipherSpec(); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	verify, err := c.finishedVerifyData("client finished")
	if err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if err := c.queueHandshake(typeFinished, (&finishedMsg{verifyData: verify}).marshal()); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	return nil
}

func (c *Conn) unexpected(got, want uint8) error {
	return c.fatal(AlertUnexpectedMessage, fmt.Errorf("handshake message %d, expected %d", got, want))
}

// processPeerCertificates parses, records, and validates the peer's
// chain. required rejects an empty chain.
func (c *Conn) processPeerCertificates(msg *certificateMsg, required bool) error {
	if len(msg.certificates) == 0 {
		if required {
			return c.fatal(AlertBadCertificate, errors.New("peer sent no certificate"))
		}
		c.peerChain = nil
		return nil
	}
	var chain []*certs.Certificate
	for _, der := range msg.certificates {
		cert, err := certs.Parse(der)
		if err != nil {
			return c.fatal(AlertBadCertificate, err)
		}
		chain = append(chain, cert)
	}
	c.peerChain = chain

	validated := false
	if c.config.CAStore != nil {
		if err := certs.Verify(chain, c.config.CAStore, c.now()); err != nil {
			return c.fatal(AlertUnknownCA, err)
		}
		validated = true
	}
	if c.config.VerifyPeer != nil {
		if err := c.config.VerifyPeer(c, chain); err != nil {
			return c.fatal(AlertBadCertificate, err)
		}
		validated = true
	}
	if !validated {
		return c.fatal(AlertUnknownCA, errors.New("no trust store or verify callback configured"))
	}
	c.certVerified = true
	return nil
}
