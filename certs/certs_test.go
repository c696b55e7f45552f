package certs

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/paymentlogs/cryptosuite/pki"
)

func testTemplate(cn string) Template {
	now := time.Now().Add(-time.Hour)
	return Template{
		SerialNumber: 1,
		Subject:      Name{CommonName: cn, Organization: "Test Org", Country: "US"},
		NotBefore:    now,
		NotAfter:     now.Add(24 * time.Hour),
	}
}

func TestSelfSignedRoundTrip(t *testing.T) {
	key, err := pki.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := CreateSelfSigned(testTemplate("server"), key)
	if err != nil {
		t.Fatal(err)
	}
	if cert.Subject.CommonName != "server" || cert.Issuer.CommonName != "server" {
		t.Fatalf("names = %q / %q", cert.Subject.CommonName, cert.Issuer.CommonName)
	}
	if cert.Subject.Organization != "Test Org" {
		t.Fatalf("organization = %q", cert.Subject.Organization)
	}
	if err := cert.CheckSignatureFrom(cert); err != nil {
		t.Fatalf("self signature: %v", err)
	}

	reparsed, err := ParsePEM(cert.ToPEM())
	if err != nil {
		t.Fatal(err)
	}
	if reparsed.Subject.CommonName != "server" {
		t.Fatal("PEM round trip lost the subject")
	}
	if reparsed.PublicKey.N.Cmp(key.N) != 0 {
		t.Fatal("PEM round trip lost the public key")
	}
}

func TestChainVerify(t *testing.T) {
	caKey, err := pki.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	ca, err := CreateSelfSigned(testTemplate("Test CA"), caKey)
	if err != nil {
		t.Fatal(err)
	}

	leafKey, err := pki.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	tpl := testTemplate("leaf")
	tpl.Issuer = ca.Subject
	leafDER, err := Create(tpl, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := Parse(leafDER)
	if err != nil {
		t.Fatal(err)
	}

	store := &Store{}
	store.Add(ca)
	if err := Verify([]*Certificate{leaf, ca}, store, time.Now()); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}

	// A chain ending at an untrusted root fails.
	if err := Verify([]*Certificate{leaf, ca}, &Store{}, time.Now()); err == nil {
		t.Fatal("untrusted chain accepted")
	}

	// An expired leaf fails.
	if err := Verify([]*Certificate{leaf, ca}, store, time.Now().Add(48*time.Hour)); err == nil {
		t.Fatal("expired certificate accepted")
	}

	// A leaf whose signature does not match fails.
	otherKey, _ := pki.GenerateKey(rand.Reader, 1024)
	forged, _ := CreateSelfSigned(testTemplate("leaf"), otherKey)
	forged.Issuer = ca.Subject
	if err := forged.CheckSignatureFrom(ca); err == nil {
		t.Fatal("forged signature verified")
	}
}
