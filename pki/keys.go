package pki

import (
	"fmt"

	"github.com/paymentlogs/cryptosuite/asn1x"
	"github.com/paymentlogs/cryptosuite/bignum"
	"github.com/paymentlogs/cryptosuite/pemx"
)

// OIDRSAEncryption is the rsaEncryption algorithm identifier.
const OIDRSAEncryption = "1.2.840.113549.1.1.1"

var digestOIDs = map[string]string{
	"MD5":         "1.2.840.113549.2.5",
	"SHA-1":       "1.3.14.3.2.26",
	"SHA-256":     "2.16.840.1.101.3.4.2.1",
	"SHA-384":     "2.16.840.1.101.3.4.2.2",
	"SHA-512":     "2.16.840.1.101.3.4.2.3",
	"SHA-512/224": "2.16.840.1.101.3.4.2.5",
	"SHA-512/256": "2.16.840.1.101.3.4.2.6",
}

// digestInfo wraps a digest in the DER DigestInfo structure.
func digestInfo(algorithm string, hashed []byte) ([]byte, error) {
	oid, ok := digestOIDs[algorithm]
	if !ok {
		return nil, fmt.Errorf("pki: no DigestInfo OID for %q", algorithm)
	}
	oidDER, err := asn1x.OIDToDER(oid)
	if err != nil {
		return nil, err
	}
	info := asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
		asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
			asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeOID, oidDER),
			asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeNull, nil),
		),
		asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeOctetString, hashed),
	)
	return asn1x.ToDER(info), nil
}

// intNode renders a non-negative bignum as a DER INTEGER node,
// prefixing a zero byte when the high bit would read as a sign.
func intNode(x *bignum.Int) *asn1x.Node {
	b := bignum.ToBytes(x)
	if len(b) == 0 {
		b = []byte{0}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeInteger, b)
}

func nodeInt(v interface{}) *bignum.Int {
	b, _ := v.([]byte)
	if len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	return bignum.FromBytes(b)
}

// MarshalPKCS1PrivateKey encodes priv as a DER RSAPrivateKey.
func MarshalPKCS1PrivateKey(priv *PrivateKey) []byte {
	seq := asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
		asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeInteger, []byte{0}),
		intNode(priv.N),
		intNode(priv.E),
		intNode(priv.D),
		intNode(priv.P),
		intNode(priv.Q),
		intNode(priv.DP),
		intNode(priv.DQ),
		intNode(priv.QInv),
	)
	return asn1x.ToDER(seq)
}

func integerField(name, capture string) *asn1x.Validator {
	return &asn1x.Validator{
		Name:    name,
		Class:   asn1x.ClassPtr(asn1x.ClassUniversal),
		Type:    asn1x.TypePtr(asn1x.TypeInteger),
		Capture: capture,
	}
}

var rsaPrivateKeyValidator = &asn1x.Validator{
	Name:  "RSAPrivateKey",
	Class: asn1x.ClassPtr(asn1x.ClassUniversal),
	Type:  asn1x.TypePtr(asn1x.TypeSequence),
	Value: []*asn1x.Validator{
		integerField("version", "version"),
		integerField("modulus", "n"),
		integerField("publicExponent", "e"),
		integerField("privateExponent", "d"),
		integerField("prime1", "p"),
		integerField("prime2", "q"),
		integerField("exponent1", "dp"),
		integerField("exponent2", "dq"),
		integerField("coefficient", "qinv"),
	},
}

// ParsePKCS1PrivateKey decodes a DER RSAPrivateKey.
func ParsePKCS1PrivateKey(der []byte) (*PrivateKey, error) {
	root, err := asn1x.FromDER(der, asn1x.DefaultOptions())
	if err != nil {
		return nil, err
	}
	capture := asn1x.Capture{}
	var errs []string
	if !asn1x.Validate(root, rsaPrivateKeyValidator, capture, &errs) {
		return nil, fmt.Errorf("pki: not an RSAPrivateKey: %v", errs)
	}
	return &PrivateKey{
		PublicKey: PublicKey{N: nodeInt(capture["n"]), E: nodeInt(capture["e"])},
		D:         nodeInt(capture["d"]),
		P:         nodeInt(capture["p"]),
		Q:         nodeInt(capture["q"]),
		DP:        nodeInt(capture["dp"]),
		DQ:        nodeInt(capture["dq"]),
		QInv:      nodeInt(capture["qinv"]),
	}, nil
}

// MarshalPKIXPublicKey encodes pub as a DER SubjectPublicKeyInfo.
func MarshalPKIXPublicKey(pub *PublicKey) []byte {
	oidDER, _ := asn1x.OIDToDER(OIDRSAEncryption)
	rsaKey := asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
		intNode(pub.N),
		intNode(pub.E),
	)
	bitString := &asn1x.Node{
		Class:    asn1x.ClassUniversal,
		Type:     asn1x.TypeBitString,
		Composed: true,
		Children: []*asn1x.Node{rsaKey},
	}
	spki := asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
		asn1x.NewConstructed(asn1x.ClassUniversal, asn1x.TypeSequence,
			asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeOID, oidDER),
			asn1x.NewNode(asn1x.ClassUniversal, asn1x.TypeNull, nil),
		),
		bitString,
	)
	return asn1x.ToDER(spki)
}

var rsaPublicKeyValidator = &asn1x.Validator{
	Name:  "SubjectPublicKeyInfo",
	Class: asn1x.ClassPtr(asn1x.ClassUniversal),
	Type:  asn1x.TypePtr(asn1x.TypeSequence),
	Value: []*asn1x.Validator{
		{
			Name:  "algorithm",
			Class: asn1x.ClassPtr(asn1x.ClassUniversal),
			Type:  asn1x.TypePtr(asn1x.TypeSequence),
			Value: []*asn1x.Validator{
				{Name: "algorithmOID", Type: asn1x.TypePtr(asn1x.TypeOID), Capture: "oid"},
				{Name: "parameters", Type: asn1x.TypePtr(asn1x.TypeNull), Optional: true},
			},
		},
		{
			Name: "subjectPublicKey",
			Type: asn1x.TypePtr(asn1x.TypeBitString),
			Value: []*asn1x.Validator{
				{
					Name: "rsaPublicKey",
					Type: asn1x.TypePtr(asn1x.TypeSequence),
					Value: []*asn1x.Validator{
						integerField("modulus", "n"),
						integerField("publicExponent", "e"),
					},
				},
			},
		},
	},
}

// ParsePKIXPublicKey decodes a DER SubjectPublicKeyInfo carrying an
// RSA key.
func ParsePKIXPublicKey(der []byte) (*PublicKey, error) {
	root, err := asn1x.FromDER(der, asn1x.DefaultOptions())
	if err != nil {
		return nil, err
	}
	capture := asn1x.Capture{}
	var errs []string
	if !asn1x.Validate(root, rsaPublicKeyValidator, capture, &errs) {
		return nil, fmt.Errorf("pki: not a SubjectPublicKeyInfo: %v", errs)
	}
	oid, err := asn1x.DERToOID(capture["oid"].([]byte))
	if err != nil {
		return nil, err
	}
	if oid != OIDRSAEncryption {
		return nil, fmt.Errorf("pki: unsupported key algorithm %s", oid)
	}
	return &PublicKey{N: nodeInt(capture["n"]), E: nodeInt(capture["e"])}, nil
}

// PrivateKeyToPEM frames the PKCS#1 encoding as a PEM message.
func PrivateKeyToPEM(priv *PrivateKey) []byte {
	return pemx.Encode(&pemx.Message{Type: "RSA PRIVATE KEY", Body: MarshalPKCS1PrivateKey(priv)})
}

// PrivateKeyFromPEM parses the first RSA PRIVATE KEY message in data.
func PrivateKeyFromPEM(data []byte) (*PrivateKey, error) {
	msgs, err := pemx.Decode(data)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Type == "RSA PRIVATE KEY" {
			if m.Encrypted() {
				return nil, fmt.Errorf("pki: encrypted private key requires a passphrase")
			}
			return ParsePKCS1PrivateKey(m.Body)
		}
	}
	return nil, fmt.Errorf("pki: no RSA PRIVATE KEY message found")
}

// PublicKeyToPEM frames the SubjectPublicKeyInfo encoding as PEM.
func PublicKeyToPEM(pub *PublicKey) []byte {
	return pemx.Encode(&pemx.Message{Type: "PUBLIC KEY", Body: MarshalPKIXPublicKey(pub)})
}

// PublicKeyFromPEM parses the first PUBLIC KEY message in data.
func PublicKeyFromPEM(data []byte) (*PublicKey, error) {
	msgs, err := pemx.Decode(data)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Type == "PUBLIC KEY" {
			return ParsePKIXPublicKey(m.Body)
		}
	}
	return nil, fmt.Errorf("pki: no PUBLIC KEY message found")
}
