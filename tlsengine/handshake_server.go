package tlsengine

import (
	"errors"
	"fmt"
	"io"

	"github.com/paymentlogs/cryptosuite/pki"
)

func (c *Conn) serverHandshake(msgType uint8, body []byte) error {
	switch c.state {
	case stateCHE:
		if msgType != typeClientHello {
			return c.unexpected(msgType, typeClientHello)
		}
		return c.handleClientHello(body)

	case stateCCE:
		if msgType != typeCertificate {
			return c.unexpected(msgType, typeCertificate)
		}
		var msg certificateMsg
		if !msg.unmarshal(body) {
			return c.fatal(AlertDecodeError, errors.New("malformed Certificate"))
		}
		if err := c.processPeerCertificates(&msg, c.config.VerifyClient); err != nil {
			return err
		}
		c.state = stateCKE
		return nil

	case stateCKE:
		if msgType != typeClientKeyExchange {
			return c.unexpected(msgType, typeClientKeyExchange)
		}
		return c.handleClientKeyExchange(body)

	case stateCCV:
		if msgType != typeCertificateVerify {
			return c.unexpected(msgType, typeCertificateVerify)
		}
		var msg certificateVerifyMsg
		if !msg.unmarshal(body) {
			return c.fatal(AlertDecodeError, errors.New("malformed CertificateVerify"))
		}
		peer := c.PeerCertificate()
		if peer == nil {
			return c.fatal(AlertUnexpectedMessage, errors.New("CertificateVerify without a client certificate"))
		}
		if err := pki.VerifyPKCS1v15(peer.PublicKey, "", c.preMsgDigest, msg.signature); err != nil {
			return c.fatal(AlertDecryptError, err)
		}
		c.state = stateCCC
		return nil
	}
	return c.unexpected(msgType, 0)
}

func (c *Conn) handleClientHello(body []byte) error {
	var msg clientHelloMsg
	if !msg.unmarshal(body) {
		return c.fatal(AlertDecodeError, errors.New("malformed ClientHello"))
	}
	if msg.version < VersionTLS10 {
		return c.fatal(AlertProtocolVersion, fmt.Errorf("client version %04x", msg.version))
	}
	c.clientHelloVersion = msg.version
	negotiated := c.maxVersion()
	if msg.version < negotiated {
		negotiated = msg.version
	}
	c.setVersion(negotiated)
	c.clientRandom = msg.random
	c.sni = msg.serverName

	suite := c.selectServerSuite(msg.cipherSuites)
	if suite == nil {
		return c.fatal(AlertHandshakeFailure, errors.New("no mutual cipher suite"))
	}
	c.suite = suite
	c.compression = c.selectCompression(msg.compressionMethods)

	if err := c.fillRandom(&c.serverRandom); err != nil {
		return c.fatal(AlertInternalError, err)
	}

	// Resumption: an echoed cached session id short-circuits to
	// ChangeCipherSpec/Finished.
	if c.config.SessionCache != nil && len(msg.sessionID) > 0 {
		if s := c.config.SessionCache.Get(msg.sessionID); s != nil && s.Version == c.version {
			if resumedSuite := selectedCipherSuite(s.CipherSuite); resumedSuite != nil {
				c.suite = resumedSuite
				c.compression = s.Compression
				c.resuming = true
				c.sessionID = append([]byte(nil), msg.sessionID...)
				c.masterSecret = append([]byte(nil), s.MasterSecret...)
				return c.sendResumptionFlight()
			}
		}
	}

	c.sessionID = make([]byte, 32)
	if _, err := io.ReadFull(c.rand(), c.sessionID); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	return c.sendServerFlight()
}

// selectServerSuite intersects the configured suites with the
// client's offer, in this engine's preference order.
func (c *Conn) selectServerSuite(offered []uint16) *cipherSuite {
	allowed := c.config.CipherSuites
	if len(allowed) == 0 {
		return mutualCipherSuite(offered)
	}
	var filtered []uint16
	for _, id := range offered {
		if containsUint16(allowed, id) {
			filtered = append(filtered, id)
		}
	}
	return mutualCipherSuite(filtered)
}

func (c *Conn) selectCompression(offered []uint8) uint8 {
	if c.config.Deflate != nil && c.config.Inflate != nil {
		for _, m := range offered {
			if m == compressionDeflate {
				return compressionDeflate
			}
		}
	}
	return compressionNull
}

func (c *Conn) serverHelloMsg() *serverHelloMsg {
	return &serverHelloMsg{
		version:     c.version,
		random:      c.serverRandom,
		sessionID:   c.sessionID,
		cipherSuite: c.suite.id,
		compression: c.compression,
	}
}

// sendServerFlight is the full-handshake server response: ServerHello,
// Certificate, optional CertificateRequest, ServerHelloDone.
func (c *Conn) sendServerFlight() error {
	if c.config.Certificate == nil || c.config.PrivateKey == nil {
		return c.fatal(AlertHandshakeFailure, errors.New("server has no certificate/key configured"))
	}
	if err := c.queueHandshake(typeServerHello, c.serverHelloMsg().marshal()); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	certMsg := &certificateMsg{certificates: [][]byte{c.config.Certificate.Raw}}
	if err := c.queueHandshake(typeCertificate, certMsg.marshal()); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if c.config.VerifyClient {
		req := &certificateRequestMsg{certificateTypes: []uint8{1}} // rsa_sign
		if err := c.queueHandshake(typeCertificateRequest, req.marshal()); err != nil {
			return c.fatal(AlertInternalError, err)
		}
		c.state = stateCCE
	} else {
		c.state = stateCKE
	}
	return c.queueHandshake(typeServerHelloDone, nil)
}

// sendResumptionFlight answers a resumed ClientHello with ServerHello,
// ChangeCipherSpec, Finished.
func (c *Conn) sendResumptionFlight() error {
	if err := c.queueHandshake(typeServerHello, c.serverHelloMsg().marshal()); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if err := c.makePendingStates(); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if err := c.sendChangeCipherSpec(); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	verify, err := c.finishedVerifyData("server finished")
	if err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if err := c.queueHandshake(typeFinished, (&finishedMsg{verifyData: verify}).marshal()); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	c.state = stateCCC
	return nil
}

func (c *Conn) handleClientKeyExchange(body []byte) error {
	var msg clientKeyExchangeMsg
	if !msg.unmarshal(body) {
		return c.fatal(AlertDecodeError, errors.New("malformed ClientKeyExchange"))
	}
	if c.config.PrivateKey == nil {
		return c.fatal(AlertInternalError, errors.New("no private key to decrypt the pre-master secret"))
	}

	// On any padding or version failure, substitute a random
	// pre-master secret and let the Finished exchange fail, so a
	// padding oracle learns nothing from timing or alerts.
	preMaster, err := pki.DecryptPKCS1v15(c.config.PrivateKey, msg.encryptedPreMasterSecret)
	bad := err != nil || len(preMaster) != preMasterSecretLen ||
		uint16(preMaster[0])<<8|uint16(preMaster[1]) != c.clientHelloVersion
	if bad {
		preMaster = make([]byte, preMasterSecretLen)
		if _, err := io.ReadFull(c.rand(), preMaster); err != nil {
			return c.fatal(AlertInternalError, err)
		}
	}

	if err := c.computeMasterSecret(preMaster); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if err := c.makePendingStates(); err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if c.sentByPeer() {
		c.state = stateCCV
	} else {
		c.state = stateCCC
	}
	return nil
}

// sentByPeer reports whether the client presented a certificate that
// obligates a CertificateVerify.
func (c *Conn) sentByPeer() bool {
	return c.role == roleServer && len(c.peerChain) > 0
}

// --- Finished handling, shared between roles ---

// checkFinished validates the peer's verify data against the
// transcript that excludes the incoming Finished message.
func (c *Conn) checkFinished(body []byte) error {
	var label string
	if c.role == roleClient {
		if c.state != stateSFI {
			return c.fatal(AlertUnexpectedMessage, errors.New("Finished out of order"))
		}
		label = "server finished"
	} else {
		if c.state != stateCFI {
			return c.fatal(AlertUnexpectedMessage, errors.New("Finished out of order"))
		}
		label = "client finished"
	}
	var msg finishedMsg
	if !msg.unmarshal(body) {
		return c.fatal(AlertDecodeError, errors.New("malformed Finished"))
	}
	expected, err := c.finishedVerifyData(label)
	if err != nil {
		return c.fatal(AlertInternalError, err)
	}
	if !macEqual(expected, msg.verifyData) {
		return c.fatal(AlertDecryptError, errors.New("Finished verify data mismatch"))
	}
	return nil
}

// afterFinished runs once the peer's Finished has been verified and
// hashed into the transcript.
func (c *Conn) afterFinished() error {
	if c.role == roleClient {
		if c.resuming {
			// Resumption: the client answers with its own
			// ChangeCipherSpec/Finished.
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
		}
		return c.markConnected(stateSAD)
	}

	if !c.resuming {
		if err := c.sendChangeCipherSpec(); err != nil {
			return c.fatal(AlertInternalError, err)
		}
		verify, err := c.finishedVerifyData("server finished")
		if err != nil {
			return c.fatal(AlertInternalError, err)
		}
		if err := c.queueHandshake(typeFinished, (&finishedMsg{verifyData: verify}).marshal()); err != nil {
			return c.fatal(AlertInternalError, err)
		}
	}
	return c.markConnected(stateCAD)
}

func (c *Conn) markConnected(next expectState) error {
	c.connected = true
	c.state = next
	if c.config.SessionCache != nil && len(c.sessionID) > 0 {
		c.config.SessionCache.Put(c.sessionID, &Session{
			Version:      c.version,
			CipherSuite:  c.suite.id,
			Compression:  c.compression,
			MasterSecret: append([]byte(nil), c.masterSecret...),
			ServerName:   c.SNI(),
		})
	}
	if c.config.Connected != nil {
		c.config.Connected(c)
	}
	return nil
}
