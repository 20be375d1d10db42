// Package testpki fabricates throwaway certificate material and synthetic
// signed documents for tests: an in-memory authority styled after the
// Brazilian national hierarchy, leaf certificates carrying its subject
// data extensions, and minimal single-signature PDFs.
package testpki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/digitorus/timestamp"
	"golang.org/x/crypto/ocsp"
)

// KeyProfile defines the cryptographic settings for the PKI.
type KeyProfile string

const (
	RSA_2048   KeyProfile = "RSA_2048"
	RSA_3072   KeyProfile = "RSA_3072"
	ECDSA_P256 KeyProfile = "ECDSA_P256"
	ECDSA_P384 KeyProfile = "ECDSA_P384"
)

// Signature policy arcs of the hierarchy, usable as leaf policies.
var (
	PolicyA1PF = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 1, 1}
	PolicyA1PJ = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 1, 2}
	PolicyA3PF = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 3, 1}
	PolicyA4PJ = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 4, 2}
)

var (
	oidPersonData     = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}
	oidCompanyData    = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 3}
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
)

// Authority is a self-signed issuing authority. Its name places every
// certificate it issues inside the national hierarchy by the issuer
// name rule.
type Authority struct {
	T       *testing.T
	Key     crypto.Signer
	Cert    *x509.Certificate
	Profile KeyProfile

	// Server serves CRL and OCSP lookups once StartRevocationServer ran.
	Server       *httptest.Server
	CRLRequests  int
	OCSPRequests int
	FailOCSP     bool

	serial  int64
	revoked map[string]time.Time
}

// NewAuthority creates a fresh authority with RSA 2048 keys.
func NewAuthority(t *testing.T) *Authority {
	return NewAuthorityWithProfile(t, RSA_2048)
}

// authoritySeq distinguishes the subjects of authorities created in the
// same process, so anchor matching by subject name can tell two fresh
// authorities apart.
var authoritySeq atomic.Int64

// NewAuthorityWithProfile allows choosing the key profile.
func NewAuthorityWithProfile(t *testing.T, profile KeyProfile) *Authority {
	key := GenerateKey(t, profile)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   fmt.Sprintf("AC Teste ICP-Brasil %d", authoritySeq.Add(1)),
			Organization: []string{"ICP-Brasil"},
			Country:      []string{"BR"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          []byte{1, 2, 3, 4},
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		Fail(t, "failed to create authority cert: %v", err)
	}
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		Fail(t, "failed to parse authority cert: %v", err)
	}

	return &Authority{
		T:       t,
		Key:     key,
		Cert:    cert,
		Profile: profile,
		serial:  1,
		revoked: make(map[string]time.Time),
	}
}

// LeafOptions configure one issued certificate.
type LeafOptions struct {
	CommonName string

	// CPF digits land in the natural person subject data extension.
	CPF string
	// CNPJ digits land in the legal entity subject data extension.
	CNPJ string
	// TaxIDInSAN moves the identifiers into subject alternative name
	// otherName entries instead of standalone extensions.
	TaxIDInSAN bool

	// Policies become certificate policy identifiers.
	Policies []asn1.ObjectIdentifier

	// Expired backdates the validity window so the certificate is
	// already past its notAfter.
	Expired bool

	// KeyUsage overrides the default digital signature + content
	// commitment bits. OmitKeyUsage drops the extension entirely.
	KeyUsage     x509.KeyUsage
	OmitKeyUsage bool
	EKUs         []x509.ExtKeyUsage
}

// Issue generates a leaf certificate signed by the authority. When the
// revocation server is running the leaf carries its CRL and OCSP URLs.
func (a *Authority) Issue(opts LeafOptions) (crypto.Signer, *x509.Certificate) {
	priv := GenerateKey(a.T, a.Profile)
	a.serial++

	notBefore := time.Now().Add(-1 * time.Hour)
	notAfter := time.Now().Add(1 * time.Hour)
	if opts.Expired {
		notBefore = time.Now().Add(-48 * time.Hour)
		notAfter = time.Now().Add(-24 * time.Hour)
	}

	keyUsage := opts.KeyUsage
	if keyUsage == 0 && !opts.OmitKeyUsage {
		keyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(a.serial),
		Subject: pkix.Name{
			CommonName:   opts.CommonName,
			Organization: []string{"ICP-Brasil Teste"},
			Country:      []string{"BR"},
		},
		NotBefore:      notBefore,
		NotAfter:       notAfter,
		KeyUsage:       keyUsage,
		ExtKeyUsage:    opts.EKUs,
		SubjectKeyId:   []byte{5, 6, 7, 8, byte(a.serial)},
		AuthorityKeyId: a.Cert.SubjectKeyId,
	}
	setPolicies(a.T, template, opts.Policies)

	if a.Server != nil {
		template.CRLDistributionPoints = []string{a.Server.URL + "/crl"}
		template.OCSPServer = []string{a.Server.URL + "/ocsp"}
	}

	if opts.TaxIDInSAN {
		if opts.CPF != "" || opts.CNPJ != "" {
			ext, err := sanExtension(opts.CPF, opts.CNPJ)
			if err != nil {
				Fail(a.T, "failed to build subject alternative name: %v", err)
			}
			template.ExtraExtensions = append(template.ExtraExtensions, ext)
		}
	} else {
		if opts.CPF != "" {
			template.ExtraExtensions = append(template.ExtraExtensions,
				pkix.Extension{Id: oidPersonData, Value: []byte(opts.CPF)})
		}
		if opts.CNPJ != "" {
			template.ExtraExtensions = append(template.ExtraExtensions,
				pkix.Extension{Id: oidCompanyData, Value: []byte(opts.CNPJ)})
		}
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, a.Cert, priv.Public(), a.Key)
	if err != nil {
		Fail(a.T, "failed to issue leaf cert: %v", err)
	}
	leaf, err := x509.ParseCertificate(certBytes)
	if err != nil {
		Fail(a.T, "failed to parse leaf cert: %v", err)
	}
	return priv, leaf
}

// IssuePerson issues an A1 natural person certificate carrying a CPF.
func (a *Authority) IssuePerson(name, cpf string) (crypto.Signer, *x509.Certificate) {
	return a.Issue(LeafOptions{
		CommonName: name,
		CPF:        cpf,
		Policies:   []asn1.ObjectIdentifier{PolicyA1PF},
	})
}

// IssueCompany issues an A1 legal entity certificate carrying a CNPJ.
func (a *Authority) IssueCompany(name, cnpj string) (crypto.Signer, *x509.Certificate) {
	return a.Issue(LeafOptions{
		CommonName: name,
		CNPJ:       cnpj,
		Policies:   []asn1.ObjectIdentifier{PolicyA1PJ},
	})
}

// IssueExpired issues a certificate whose validity window already closed.
func (a *Authority) IssueExpired(name string) (crypto.Signer, *x509.Certificate) {
	return a.Issue(LeafOptions{CommonName: name, Expired: true})
}

// TSA is a local time stamping authority. It mints RFC 3161 tokens
// directly, skipping the protocol round trip a real responder needs.
type TSA struct {
	T    *testing.T
	Key  crypto.Signer
	Cert *x509.Certificate

	// Time is the token genTime, default now.
	Time time.Time

	serial int64
}

// NewTSA issues a timestamping leaf and wraps it as a token source for
// the document builders.
func (a *Authority) NewTSA() *TSA {
	key, cert := a.Issue(LeafOptions{
		CommonName: "AC Carimbo do Tempo Teste",
		KeyUsage:   x509.KeyUsageDigitalSignature,
		EKUs:       []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	})
	return &TSA{T: a.T, Key: key, Cert: cert}
}

// Token stamps the message with a token over its SHA-256 imprint.
func (ts *TSA) Token(message []byte) []byte {
	when := ts.Time
	if when.IsZero() {
		when = time.Now()
	}
	ts.serial++

	imprint := sha256.Sum256(message)
	tt := timestamp.Timestamp{
		HashAlgorithm:     crypto.SHA256,
		HashedMessage:     imprint[:],
		Time:              when,
		Accuracy:          time.Second,
		SerialNumber:      big.NewInt(ts.serial),
		Policy:            asn1.ObjectIdentifier{2, 16, 76, 1, 6, 1},
		AddTSACertificate: true,
	}
	resp, err := tt.CreateResponse(ts.Cert, ts.Key)
	if err != nil {
		Fail(ts.T, "failed to create timestamp response: %v", err)
	}
	parsed, err := timestamp.ParseResponse(resp)
	if err != nil {
		Fail(ts.T, "failed to parse timestamp response: %v", err)
	}
	return parsed.RawToken
}

// CertPEM returns the authority certificate PEM-encoded, for anchor
// loading tests.
func (a *Authority) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: a.Cert.Raw})
}

// Revoke marks a serial as revoked for the CRL and OCSP builders and
// the revocation server.
func (a *Authority) Revoke(serial *big.Int) {
	a.revoked[serial.String()] = time.Now()
}

// CRL builds a DER CRL listing every serial revoked so far.
func (a *Authority) CRL() []byte {
	var entries []x509.RevocationListEntry
	for s, at := range a.revoked {
		serial, ok := new(big.Int).SetString(s, 10)
		if !ok {
			Fail(a.T, "bad revoked serial %q", s)
		}
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   serial,
			RevocationTime: at,
		})
	}

	template := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                time.Now(),
		NextUpdate:                time.Now().Add(24 * time.Hour),
		RevokedCertificateEntries: entries,
	}
	crlBytes, err := x509.CreateRevocationList(rand.Reader, template, a.Cert, a.Key)
	if err != nil {
		Fail(a.T, "failed to create CRL: %v", err)
	}
	return crlBytes
}

// OCSPResponse builds a DER OCSP response for the certificate, revoked
// or good depending on what Revoke was told.
func (a *Authority) OCSPResponse(cert *x509.Certificate) []byte {
	now := time.Now()
	template := ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: cert.SerialNumber,
		ThisUpdate:   now.Add(-1 * time.Hour),
		NextUpdate:   now.Add(24 * time.Hour),
	}
	if at, ok := a.revoked[cert.SerialNumber.String()]; ok {
		template.Status = ocsp.Revoked
		template.RevokedAt = at
		template.RevocationReason = ocsp.KeyCompromise
	}

	respBytes, err := ocsp.CreateResponse(a.Cert, a.Cert, template, a.Key)
	if err != nil {
		Fail(a.T, "failed to create OCSP response: %v", err)
	}
	return respBytes
}

// StartRevocationServer starts an HTTP server answering CRL downloads
// and OCSP POST requests with the authority's current revocation state.
func (a *Authority) StartRevocationServer() {
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crl":
			a.CRLRequests++
			w.Header().Set("Content-Type", "application/pkix-crl")
			_, _ = w.Write(a.CRL())

		case "/ocsp":
			a.OCSPRequests++
			if a.FailOCSP {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			req, err := ocsp.ParseRequest(body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			now := time.Now()
			template := ocsp.Response{
				Status:       ocsp.Good,
				SerialNumber: req.SerialNumber,
				ThisUpdate:   now.Add(-1 * time.Hour),
				NextUpdate:   now.Add(24 * time.Hour),
			}
			if at, ok := a.revoked[req.SerialNumber.String()]; ok {
				template.Status = ocsp.Revoked
				template.RevokedAt = at
				template.RevocationReason = ocsp.KeyCompromise
			}
			respBytes, err := ocsp.CreateResponse(a.Cert, a.Cert, template, a.Key)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/ocsp-response")
			_, _ = w.Write(respBytes)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// Close stops the revocation server.
func (a *Authority) Close() {
	if a.Server != nil {
		a.Server.Close()
	}
}

// setPolicies writes the certificate policies on both template fields,
// so marshaling picks them up regardless of the x509usepolicies default.
func setPolicies(t *testing.T, template *x509.Certificate, policies []asn1.ObjectIdentifier) {
	if len(policies) == 0 {
		return
	}
	template.PolicyIdentifiers = policies
	for _, p := range policies {
		ints := make([]uint64, len(p))
		for i, v := range p {
			ints[i] = uint64(v)
		}
		oid, err := x509.OIDFromInts(ints)
		if err != nil {
			Fail(t, "bad policy oid %v: %v", p, err)
		}
		template.Policies = append(template.Policies, oid)
	}
}

// sanOtherName is the GeneralName alternative carrying a typed value.
type sanOtherName struct {
	TypeID asn1.ObjectIdentifier
	Value  asn1.RawValue `asn1:"tag:0,explicit"`
}

// sanExtension builds a subject alternative name extension holding the
// tax identifiers as otherName entries, formatted the way issued
// certificates carry them.
func sanExtension(cpf, cnpj string) (pkix.Extension, error) {
	var entries []byte
	add := func(id asn1.ObjectIdentifier, text string) error {
		der, err := asn1.MarshalWithParams(sanOtherName{
			TypeID: id,
			Value: asn1.RawValue{
				Class: asn1.ClassUniversal,
				Tag:   asn1.TagPrintableString,
				Bytes: []byte(text),
			},
		}, "tag:0")
		if err != nil {
			return err
		}
		entries = append(entries, der...)
		return nil
	}

	if cpf != "" {
		if err := add(oidPersonData, formatCPF(cpf)); err != nil {
			return pkix.Extension{}, err
		}
	}
	if cnpj != "" {
		if err := add(oidCompanyData, formatCNPJ(cnpj)); err != nil {
			return pkix.Extension{}, err
		}
	}

	seq, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSequence,
		IsCompound: true,
		Bytes:      entries,
	})
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidSubjectAltName, Value: seq}, nil
}

func formatCPF(s string) string {
	if len(s) != 11 {
		return s
	}
	return s[:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:]
}

func formatCNPJ(s string) string {
	if len(s) != 14 {
		return s
	}
	return s[:2] + "." + s[2:5] + "." + s[5:8] + "/" + s[8:12] + "-" + s[12:]
}

func Fail(t *testing.T, format string, args ...interface{}) {
	if t != nil {
		t.Fatalf(format, args...)
	} else {
		log.Fatalf(format, args...)
	}
}

func GenerateKey(t *testing.T, profile KeyProfile) crypto.Signer {
	switch profile {
	case RSA_2048:
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			Fail(t, "failed to generate RSA 2048 key: %v", err)
		}
		return k
	case RSA_3072:
		k, err := rsa.GenerateKey(rand.Reader, 3072)
		if err != nil {
			Fail(t, "failed to generate RSA 3072 key: %v", err)
		}
		return k
	case ECDSA_P256:
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			Fail(t, "failed to generate P-256 key: %v", err)
		}
		return k
	case ECDSA_P384:
		k, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		if err != nil {
			Fail(t, "failed to generate P-384 key: %v", err)
		}
		return k
	default:
		Fail(t, "unknown key profile: %s", profile)
		return nil
	}
}
