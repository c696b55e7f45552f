// Package certs provides a minimal X.509 certificate object model
// built on this module's own ASN.1 codec, with creation, parsing, and
// chain validation via the pki package's RSA signatures.
package certs

import (
	"bytes"
	"fmt"
	"time"

	"github.com/paymentlogs/cryptosuite/asn1x"
	"github.com/paymentlogs/cryptosuite/bignum"
	"github.com/paymentlogs/cryptosuite/digest"
	"github.com/paymentlogs/cryptosuite/pemx"
	"github.com/paymentlogs/cryptosuite/pki"
)

// Signature algorithm identifiers the chain validator accepts.
const (
	OIDSHA256WithRSA = "1.2.840.113549.1.1.11"
	OIDSHA1WithRSA   = "1.2.840.113549.1.1.5"
)

const (
	oidCommonName   = "2.5.4.3"
	oidOrganization = "2.5.4.10"
	oidCountry      = "2.5.4.6"
)

// Attribute is one name component.
type Attribute struct {
	OID   string
	Value string
}

// Name is a distinguished name reduced to the attributes the TLS
// engine reads, with the rest preserved in order.
type Name struct {
	CommonName   string
	Organization string
	Country      string
	Extra        []Attribute
}

// Certificate is a parsed (or freshly created) X.509 certificate.
type Certificate struct {
	Raw    []byte
	TBSRaw []byte

	SerialNumber *bignum.Int
	Issuer       Name
	Subject      Name
	NotBefore    time.Time
	NotAfter     time.Time
	PublicKey    *pki.PublicKey

	SignatureOID string
	Signature    []byte
}

// Template describes a certificate to create.
type Template struct {
	SerialNumber int64
	Subject      Name
	Issuer       Name
	NotBefore    time.Time
	NotAfter     time.Time
}

func nameToNode(n Name) *asn1x.Node {
	var rdns []*asn1x.Node
	addAttr := func(oid, value string) {
		if value == "" {
			return
		}
		oidDER, _ := asn1x.OIDToDER(oid)
		rdns = append(rdns, asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSet,
			asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
				asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeOID, oidDER),
				asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeUTF8, []byte(value)),
			),
		))
	}
	addAttr(oidCountry, n.Country)
	addAttr(oidOrganization, n.Organization)
	addAttr(oidCommonName, n.CommonName)
	for _, a := range n.Extra {
		addAttr(a.OID, a.Value)
	}
	return asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence, rdns...)
}

func nameFromNode(node *asn1x.Node) Name {
	var n Name
	for _, rdn := range node.Children {
		for _, atv := range rdn.Children {
			if len(atv.Children) != 2 {
				continue
			}
			oid, err := asn1x.DERToOID(atv.Children[0].Value)
			if err != nil {
				continue
			}
			value := string(atv.Children[1].Value)
			switch oid {
			case oidCommonName:
				n.CommonName = value
			case oidOrganization:
				n.Organization = value
			case oidCountry:
				n.Country = value
			default:
				n.Extra = append(n.Extra, Attribute{OID: oid, Value: value})
			}
		}
	}
	return n
}

// Create signs a certificate for pub under issuerKey and returns its
// DER encoding.
func Create(tpl Template, pub *pki.PublicKey, issuerKey *pki.PrivateKey) ([]byte, error) {
	sigAlgOID, _ := asn1x.OIDToDER(OIDSHA256WithRSA)
	sigAlg := asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
		asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeOID, sigAlgOID),
		asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeNull, nil),
	)

	spki, err := asn1x.FromDER(pki.MarshalPKIXPublicKey(pub), asn1x.DefaultOptions())
	if err != nil {
		return nil, err
	}

	serialBytes := asn1x.IntegerToDER(int32(tpl.SerialNumber))

	tbs := asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
		// [0] EXPLICIT version v3
		asn1x.NewConstructed(asn1x.ClassContextSpecific, 0,
			asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeInteger, []byte{2}),
		),
		asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeInteger, serialBytes),
		sigAlg,
		nameToNode(tpl.Issuer),
		asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
			asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeUTCTime, []byte(asn1x.DateToUTCTime(tpl.NotBefore))),
			asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeUTCTime, []byte(asn1x.DateToUTCTime(tpl.NotAfter))),
		),
		nameToNode(tpl.Subject),
		spki,
	)
	tbsDER := asn1x.ToDER(tbs)

	hashed, err := hashSHA256(tbsDER)
	if err != nil {
		return nil, err
	}
	sig, err := pki.SignPKCS1v15(issuerKey, "SHA-256", hashed)
	if err != nil {
		return nil, err
	}

	cert := asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
		tbs,
		sigAlg,
		asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeBitString, append([]byte{0}, sig...)),
	)
	return asn1x.ToDER(cert), nil
}

// CreateSelfSigned issues tpl.Subject's certificate signed by its own
// key, forcing Issuer = Subject.
func CreateSelfSigned(tpl Template, key *pki.PrivateKey) (*Certificate, error) {
	tpl.Issuer = tpl.Subject
	der, err := Create(tpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return Parse(der)
}

// Parse decodes a DER certificate.
func Parse(der []byte) (*Certificate, error) {
	root, err := asn1x.FromDER(der, asn1x.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if len(root.Children) != 3 {
		return nil, fmt.Errorf("certs: certificate needs 3 elements, has %d", len(root.Children))
	}
	tbs, sigAlgNode, sigNode := root.Children[0], root.Children[1], root.Children[2]

	c := &Certificate{
		Raw:    append([]byte(nil), der...),
		TBSRaw: asn1x.ToDER(tbs),
	}

	if len(sigAlgNode.Children) < 1 {
		return nil, fmt.Errorf("certs: missing signature algorithm")
	}
	c.SignatureOID, err = asn1x.DERToOID(sigAlgNode.Children[0].Value)
	if err != nil {
		return nil, err
	}
	sigBits := sigNode.BitStringContents
	if len(sigBits) < 1 || sigBits[0] != 0 {
		return nil, fmt.Errorf("certs: malformed signature BIT STRING")
	}
	c.Signature = append([]byte(nil), sigBits[1:]...)

	fields := tbs.Children
	// Skip the optional [0] EXPLICIT version.
	if len(fields) > 0 && fields[0].Class == asn1x.ClassContextSpecific {
		fields = fields[1:]
	}
	if len(fields) < 6 {
		return nil, fmt.Errorf("certs: truncated TBSCertificate")
	}
	serialBytes := fields[0].Value
	if len(serialBytes) > 1 && serialBytes[0] == 0 {
		serialBytes = serialBytes[1:]
	}
	c.SerialNumber = bignum.FromBytes(serialBytes)
	c.Issuer = nameFromNode(fields[2])

	validity := fields[3]
	if len(validity.Children) != 2 {
		return nil, fmt.Errorf("certs: malformed validity")
	}
	c.NotBefore, err = parseTimeNode(validity.Children[0])
	if err != nil {
		return nil, err
	}
	c.NotAfter, err = parseTimeNode(validity.Children[1])
	if err != nil {
		return nil, err
	}
	c.Subject = nameFromNode(fields[4])

	c.PublicKey, err = pki.ParsePKIXPublicKey(asn1x.ToDER(fields[5]))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func parseTimeNode(n *asn1x.Node) (time.Time, error) {
	switch n.Type {
	case asn1x.TypeUTCTime:
		return asn1x.UTCTimeToDate(string(n.Value))
	case asn1x.TypeGeneralizedTime:
		return asn1x.GeneralizedTimeToDate(string(n.Value))
	}
	return time.Time{}, fmt.Errorf("certs: unexpected time type %d", n.Type)
}

// ParsePEM decodes the first CERTIFICATE message in data.
func ParsePEM(data []byte) (*Certificate, error) {
	msgs, err := pemx.Decode(data)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Type == "CERTIFICATE" {
			return Parse(m.Body)
		}
	}
	return nil, fmt.Errorf("certs: no CERTIFICATE message found")
}

// ToPEM frames the certificate's DER bytes.
func (c *Certificate) ToPEM() []byte {
	return pemx.Encode(&pemx.Message{Type: "CERTIFICATE", Body: c.Raw})
}

// CheckSignatureFrom verifies that parent's key signed c.
func (c *Certificate) CheckSignatureFrom(parent *Certificate) error {
	var algo string
	switch c.SignatureOID {
	case OIDSHA256WithRSA:
		algo = "SHA-256"
	case OIDSHA1WithRSA:
		algo = "SHA-1"
	default:
		return fmt.Errorf("certs: unsupported signature algorithm %s", c.SignatureOID)
	}
	hashed, err := hashAlgo(algo, c.TBSRaw)
	if err != nil {
		return err
	}
	return pki.VerifyPKCS1v15(parent.PublicKey, algo, hashed, c.Signature)
}

// Store is a set of trusted certificates.
type Store struct {
	certs []*Certificate
}

// Add inserts a trusted certificate.
func (s *Store) Add(c *Certificate) { s.certs = append(s.certs, c) }

// Len reports the number of trusted certificates.
func (s *Store) Len() int { return len(s.certs) }

// findIssuer returns a trusted certificate whose subject matches c's
// issuer.
func (s *Store) findIssuer(c *Certificate) *Certificate {
	for _, t := range s.certs {
		if t.Subject.CommonName == c.Issuer.CommonName {
			return t
		}
	}
	return nil
}

// contains reports whether the exact certificate is trusted.
func (s *Store) contains(c *Certificate) bool {
	for _, t := range s.certs {
		if bytes.Equal(t.Raw, c.Raw) {
			return true
		}
	}
	return false
}

// Verify walks the chain leaf-first: every link must be inside its
// validity window and signed by the next, and the chain must end at a
// certificate trusted by (or issued by a member of) the store.
func Verify(chain []*Certificate, store *Store, now time.Time) error {
	if len(chain) == 0 {
		return fmt.Errorf("certs: empty chain")
	}
	for i, c := range chain {
		if now.Before(c.NotBefore) || now.After(c.NotAfter) {
			return fmt.Errorf("certs: certificate %q outside validity window", c.Subject.CommonName)
		}
		if i+1 < len(chain) {
			if err := c.CheckSignatureFrom(chain[i+1]); err != nil {
				return fmt.Errorf("certs: link %d: %w", i, err)
			}
		}
	}
	last := chain[len(chain)-1]
	if store == nil {
		return fmt.Errorf("certs: no trust store")
	}
	if store.contains(last) {
		return nil
	}
	if anchor := store.findIssuer(last); anchor != nil {
		if err := last.CheckSignatureFrom(anchor); err != nil {
			return fmt.Errorf("certs: anchor signature: %w", err)
		}
		return nil
	}
	return fmt.Errorf("certs: chain does not terminate at a trusted certificate")
}

func hashSHA256(data []byte) ([]byte, error) { return hashAlgo("SHA-256", data) }

func hashAlgo(algorithm string, data []byte) ([]byte, error) {
	h, err := digest.New(algorithm)
	if err != nil {
		return nil, err
	}
	h.Start()
	_, _ = h.Write(data)
	return h.Sum(), nil
}
