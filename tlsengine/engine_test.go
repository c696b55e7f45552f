package tlsengine

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/paymentlogs/cryptosuite/certs"
	"github.com/paymentlogs/cryptosuite/pki"
)

type identity struct {
	key  *pki.PrivateKey
	cert *certs.Certificate
}

var (
	identitiesOnce sync.Once
	serverIdentity identity
	clientIdentity identity
)

func makeIdentity(t *testing.T, cn string) identity {
	t.Helper()
	key, err := pki.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().Add(-time.Hour)
	cert, err := certs.CreateSelfSigned(certs.Template{
		SerialNumber: 1,
		Subject:      certs.Name{CommonName: cn, Organization: "Loopback"},
		NotBefore:    now,
		NotAfter:     now.Add(24 * time.Hour),
	}, key)
	if err != nil {
		t.Fatal(err)
	}
	return identity{key: key, cert: cert}
}

func identities(t *testing.T) (identity, identity) {
	identitiesOnce.Do(func() {
		serverIdentity = makeIdentity(t, "server")
		clientIdentity = makeIdentity(t, "client")
	})
	return serverIdentity, clientIdentity
}

// pump shuttles wire bytes between the peers until both go quiet.
func pump(t *testing.T, client, server *Conn) {
	t.Helper()
	for i := 0; i < 64; i++ {
		cd := client.TakeTLSData()
		sd := server.TakeTLSData()
		if len(cd) == 0 && len(sd) == 0 {
			return
		}
		if len(cd) > 0 {
			if _, err := server.Process(cd); err != nil {
				t.Fatalf("server Process: %v", err)
			}
		}
		if len(sd) > 0 {
			if _, err := client.Process(sd); err != nil {
				t.Fatalf("client Process: %v", err)
			}
		}
	}
	t.Fatal("pump did not converge")
}

func loopbackConfigs(t *testing.T) (*Config, *Config) {
	srv, cli := identities(t)

	clientStore := &certs.Store{}
	clientStore.Add(srv.cert)
	serverStore := &certs.Store{}
	serverStore.Add(cli.cert)

	clientCfg := &Config{
		ServerName:  "server",
		CAStore:     clientStore,
		Certificate: cli.cert,
		PrivateKey:  cli.key,
	}
	serverCfg := &Config{
		CAStore:      serverStore,
		Certificate:  srv.cert,
		PrivateKey:   srv.key,
		VerifyClient: true,
	}
	return clientCfg, serverCfg
}

func TestLoopbackHandshake(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	client := Client(clientCfg)
	server := Server(serverCfg)

	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)

	if !client.IsConnected() || !server.IsConnected() {
		t.Fatalf("connected: client=%v server=%v", client.IsConnected(), server.IsConnected())
	}
	if cn := client.PeerCertificate().Subject.CommonName; cn != "server" {
		t.Fatalf("client saw peer CN %q", cn)
	}
	if cn := server.PeerCertificate().Subject.CommonName; cn != "client" {
		t.Fatalf("server saw peer CN %q", cn)
	}
	if !client.CertVerified() || !server.CertVerified() {
		t.Fatal("certificate verification flags not set")
	}
	if server.SNI() != "server" {
		t.Fatalf("server SNI = %q", server.SNI())
	}

	// Application data both ways.
	if err := client.Prepare([]byte("Hello Server")); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if got := string(server.TakeData()); got != "Hello Server" {
		t.Fatalf("server received %q", got)
	}
	if err := server.Prepare([]byte("Hello Client")); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if got := string(client.TakeData()); got != "Hello Client" {
		t.Fatalf("client received %q", got)
	}

	// Clean shutdown.
	client.Close(false)
	pump(t, client, server)
	if !server.IsClosed() {
		t.Fatal("server did not observe close_notify")
	}
}

func TestLoopbackWithoutClientAuth(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	clientCfg.Certificate = nil
	clientCfg.PrivateKey = nil
	serverCfg.VerifyClient = false

	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !client.IsConnected() || !server.IsConnected() {
		t.Fatal("handshake did not complete")
	}
	if server.PeerCertificate() != nil {
		t.Fatal("server has a client certificate without requesting one")
	}
}

func TestSessionResumption(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	clientCache := NewSessionCache(8)
	serverCache := NewSessionCache(8)
	clientCfg.SessionCache = clientCache
	serverCfg.SessionCache = serverCache

	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !client.IsConnected() {
		t.Fatal("initial handshake failed")
	}
	sid := client.SessionID()
	if len(sid) == 0 {
		t.Fatal("no session id negotiated")
	}

	resumedCfg := *clientCfg
	resumedCfg.SessionID = sid
	client2 := Client(&resumedCfg)
	server2 := Server(serverCfg)
	if err := client2.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client2, server2)
	if !client2.IsConnected() || !server2.IsConnected() {
		t.Fatal("resumed handshake failed")
	}
	// The abbreviated handshake skips the certificate exchange.
	if client2.PeerCertificate() != nil {
		t.Fatal("resumption ran a full certificate exchange")
	}
	if !bytes.Equal(client2.SessionID(), sid) {
		t.Fatal("server issued a fresh session instead of resuming")
	}
}

func TestDeferredGetSignature(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)

	var deferred func()
	key := clientCfg.PrivateKey
	clientCfg.GetSignature = func(c *Conn, digest []byte, done func([]byte, error)) {
		// Hold the continuation: the flight must resume only when the
		// embedder supplies the signature.
		d := append([]byte(nil), digest...)
		deferred = func() {
			sig, err := pki.SignPKCS1v15(key, "", d)
			done(sig, err)
		}
	}

	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}

	// Drive until the client parks waiting for the signature.
	for i := 0; i < 16 && deferred == nil; i++ {
		if d := client.TakeTLSData(); len(d) > 0 {
			if _, err := server.Process(d); err != nil {
				t.Fatal(err)
			}
		}
		if d := server.TakeTLSData(); len(d) > 0 {
			if _, err := client.Process(d); err != nil {
				t.Fatal(err)
			}
		}
	}
	if deferred == nil {
		t.Fatal("GetSignature was never invoked")
	}
	if client.IsConnected() {
		t.Fatal("client connected before the deferred signature")
	}

	deferred()
	pump(t, client, server)
	if !client.IsConnected() || !server.IsConnected() {
		t.Fatal("handshake did not complete after deferred signing")
	}
}

func TestDeflateCompression(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	for _, cfg := range []*Config{clientCfg, serverCfg} {
		cfg.Deflate = DeflateCompressor()
		cfg.Inflate = InflateDecompressor()
	}

	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !client.IsConnected() || !server.IsConnected() {
		t.Fatal("handshake failed with compression")
	}
	if client.compression != compressionDeflate {
		t.Fatal("deflate was not negotiated")
	}

	msg := bytes.Repeat([]byte("compressible payload "), 100)
	if err := client.Prepare(msg); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !bytes.Equal(server.TakeData(), msg) {
		t.Fatal("compressed round trip mismatch")
	}
}

func TestSequenceNumberNonWrap(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	var reported *ConnError
	clientCfg.OnError = func(_ *Conn, e *ConnError) { reported = e }

	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !client.IsConnected() {
		t.Fatal("handshake failed")
	}

	for i := range client.out.seq {
		client.out.seq[i] = 0xFF
	}
	if err := client.Prepare([]byte("one more")); err == nil {
		t.Fatal("record after sequence exhaustion accepted")
	}
	if reported == nil || reported.Alert.Description != AlertInternalError || !reported.Fatal {
		t.Fatalf("reported = %+v, want fatal internal_error", reported)
	}
}

func TestFragmentation(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)

	big := bytes.Repeat([]byte{0x42}, maxFragment*2+17)
	if err := client.Prepare(big); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if got := server.TakeData(); !bytes.Equal(got, big) {
		t.Fatalf("fragmented payload mismatch: %d bytes", len(got))
	}
}

func TestProcessReportsBytesNeeded(t *testing.T) {
	_, serverCfg := loopbackConfigs(t)
	server := Server(serverCfg)

	// Two bytes of a five-byte header.
	need, err := server.Process([]byte{recordTypeHandshake, 3})
	if err != nil {
		t.Fatal(err)
	}
	if need != 3 {
		t.Fatalf("need = %d, want 3", need)
	}
}

func TestTLS10Loopback(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	clientCfg.MaxVersion = VersionTLS10

	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !client.IsConnected() || !server.IsConnected() {
		t.Fatal("TLS 1.0 handshake failed")
	}
	if client.version != VersionTLS10 || server.version != VersionTLS10 {
		t.Fatalf("negotiated %04x/%04x", client.version, server.version)
	}

	// Implicit-IV CBC chaining across multiple records.
	for _, msg := range []string{"first", "second", "third"} {
		if err := client.Prepare([]byte(msg)); err != nil {
			t.Fatal(err)
		}
		pump(t, client, server)
		if got := string(server.TakeData()); got != msg {
			t.Fatalf("got %q, want %q", got, msg)
		}
	}
}

func TestHelloRequestTriggersNoRenegotiation(t *testing.T) {
	clientCfg, serverCfg := loopbackConfigs(t)
	var warnings []AlertDescription
	serverCfg.OnError = func(_ *Conn, e *ConnError) {
		if !e.Fatal {
			warnings = append(warnings, e.Alert.Description)
		}
	}

	client := Client(clientCfg)
	server := Server(serverCfg)
	if err := client.Handshake(); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !client.IsConnected() {
		t.Fatal("handshake failed")
	}

	// Inject a HelloRequest from the server side.
	if err := server.queueHandshake(typeHelloRequest, nil); err != nil {
		t.Fatal(err)
	}
	pump(t, client, server)
	if !client.IsConnected() {
		t.Fatal("client dropped the connection on HelloRequest")
	}
	found := false
	for _, w := range warnings {
		if w == AlertNoRenegotiation {
			found = true
		}
	}
	if !found {
		t.Fatal("client did not answer HelloRequest with no_renegotiation")
	}
}
