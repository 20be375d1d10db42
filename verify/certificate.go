package verify

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/digitorus/pkcs7"
)

// DecodeMethod records which strategy located the signing certificate.
type DecodeMethod string

const (
	// DecodeStructured means the certificate came out of a well-formed CMS
	// SignedData structure.
	DecodeStructured DecodeMethod = "structured"

	// DecodePatternMatch means the certificate was located by scanning the
	// raw container for DER markers. Malformed or partially supported
	// container encodings are common in the wild; the scan trades
	// precision for robustness, so callers must be able to tell these
	// results apart from structured decodes.
	DecodePatternMatch DecodeMethod = "pattern_matching"
)

// Pattern scan bounds. Containers are attacker-controlled input; the scan
// must not do unbounded work.
const (
	maxScanBytes  = 1 << 20
	maxCandidates = 256
	minWindow     = 16
)

var oidKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 15}

// SubjectInfo carries the subject attributes reports care about.
type SubjectInfo struct {
	CommonName   string `json:"common_name,omitempty"`
	Organization string `json:"organization,omitempty"`
	Country      string `json:"country,omitempty"`
	Locality     string `json:"locality,omitempty"`
	Email        string `json:"email,omitempty"`
}

// CertificateInfo is the decoded signing certificate. It is derived once
// from a signature container and immutable afterwards. The complete raw
// extension table is kept because hierarchy classification depends on
// extension OIDs the standard library does not interpret.
type CertificateInfo struct {
	Certificate *x509.Certificate `json:"-"`

	Subject      SubjectInfo `json:"subject"`
	SubjectDN    string      `json:"subject_dn"`
	Issuer       string      `json:"issuer"`
	SerialNumber string      `json:"serial_number"`
	NotBefore    time.Time   `json:"not_before"`
	NotAfter     time.Time   `json:"not_after"`

	KeyUsage           x509.KeyUsage           `json:"-"`
	HasKeyUsage        bool                    `json:"has_key_usage"`
	ExtKeyUsage        []x509.ExtKeyUsage      `json:"-"`
	UnknownExtKeyUsage []asn1.ObjectIdentifier `json:"-"`

	// Extensions maps every extension OID to its raw DER value.
	Extensions map[string][]byte `json:"-"`

	// DecodeMethod is "structured" or "pattern_matching".
	DecodeMethod DecodeMethod `json:"decode_method"`
}

// DecodeCertificate extracts the signing certificate from a raw signature
// container. Structured CMS decoding is tried first; on failure the
// container is scanned for DER certificate markers. Pattern-matched
// results are flagged through DecodeMethod. CertificateNotFound is
// returned only when both strategies exhaust their candidates.
func DecodeCertificate(raw []byte) (*CertificateInfo, error) {
	if cert, err := decodeStructured(raw); err == nil {
		return newCertificateInfo(cert, DecodeStructured), nil
	}

	cert, attempts := scanForCertificate(raw)
	if cert != nil {
		return newCertificateInfo(cert, DecodePatternMatch), nil
	}
	return nil, &CertificateNotFound{Attempts: attempts}
}

// NewCertificateInfo builds the info view over an already decoded
// certificate, for callers that hold one outside a signature container.
func NewCertificateInfo(cert *x509.Certificate) *CertificateInfo {
	return newCertificateInfo(cert, DecodeStructured)
}

func decodeStructured(raw []byte) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CMS container: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("CMS container carries no certificates")
	}
	return signerCertificate(p7), nil
}

// signerCertificate returns the embedded certificate matching the first
// signer info's issuer and serial, or the first certificate when no
// signer matches.
func signerCertificate(p7 *pkcs7.PKCS7) *x509.Certificate {
	if len(p7.Signers) > 0 {
		si := p7.Signers[0]
		for _, cert := range p7.Certificates {
			if cert.SerialNumber.Cmp(si.IssuerAndSerialNumber.SerialNumber) == 0 &&
				bytes.Equal(cert.RawIssuer, si.IssuerAndSerialNumber.IssuerName.FullBytes) {
				return cert
			}
		}
	}
	return p7.Certificates[0]
}

// scanForCertificate walks the raw container looking for DER SEQUENCE
// markers (long-form lengths first, as certificates always use them) and
// attempts a certificate parse at each candidate offset. The window is
// the element length the header declares, shrunk to the bytes available
// when the declaration overruns the buffer. Both the scan region and the
// number of parse attempts are capped.
func scanForCertificate(raw []byte) (*x509.Certificate, int) {
	data := bytes.TrimRight(raw, "\x00")
	if len(data) > maxScanBytes {
		data = data[:maxScanBytes]
	}

	attempts := 0
	for i := 0; i+4 <= len(data) && attempts < maxCandidates; i++ {
		if data[i] != 0x30 {
			continue
		}

		var total int
		switch data[i+1] {
		case 0x82:
			total = (int(data[i+2])<<8 | int(data[i+3])) + 4
		case 0x81:
			total = int(data[i+2]) + 3
		default:
			continue
		}

		end := i + total
		if end > len(data) {
			end = len(data)
		}
		if end-i < minWindow {
			continue
		}

		attempts++
		if cert, err := x509.ParseCertificate(data[i:end]); err == nil {
			return cert, attempts
		}
	}
	return nil, attempts
}

func newCertificateInfo(cert *x509.Certificate, method DecodeMethod) *CertificateInfo {
	info := &CertificateInfo{
		Certificate:        cert,
		SubjectDN:          cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		SerialNumber:       cert.SerialNumber.String(),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		KeyUsage:           cert.KeyUsage,
		ExtKeyUsage:        cert.ExtKeyUsage,
		UnknownExtKeyUsage: cert.UnknownExtKeyUsage,
		Extensions:         make(map[string][]byte, len(cert.Extensions)),
		DecodeMethod:       method,
	}

	for _, ext := range cert.Extensions {
		info.Extensions[ext.Id.String()] = ext.Value
		if ext.Id.Equal(oidKeyUsage) {
			info.HasKeyUsage = true
		}
	}

	info.Subject = SubjectInfo{
		CommonName:   cert.Subject.CommonName,
		Organization: firstOf(cert.Subject.Organization),
		Country:      firstOf(cert.Subject.Country),
		Locality:     firstOf(cert.Subject.Locality),
		Email:        subjectEmail(cert),
	}
	return info
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

var oidEmailAddress = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}

func subjectEmail(cert *x509.Certificate) string {
	if len(cert.EmailAddresses) > 0 {
		return cert.EmailAddresses[0]
	}
	for _, attr := range cert.Subject.Names {
		if attr.Type.Equal(oidEmailAddress) {
			if s, ok := attr.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
