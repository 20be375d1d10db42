// Package revocation carries the revocation material embedded in
// signature containers and the pluggable status checkers the validator
// consults. A checker never decides signature validity on its own; it
// reports a Status and the validator folds that into the verdict.
package revocation

import (
	"crypto/x509"
	"encoding/asn1"
)

// Status source labels.
const (
	SourceCRL  = "crl"
	SourceOCSP = "ocsp"
)

// Status is the outcome of a revocation lookup. Checked is false when no
// authoritative source covered the certificate, in which case Revoked is
// meaningless and must be ignored.
type Status struct {
	Checked bool   `json:"checked"`
	Revoked bool   `json:"revoked"`
	Source  string `json:"source,omitempty"`
	Detail  string `json:"detail"`
}

// Unchecked returns the status reported when no revocation source was
// consulted for a certificate.
func Unchecked(detail string) Status {
	if detail == "" {
		detail = "not verified"
	}
	return Status{Detail: detail}
}

// Checker decides the revocation status of a signing certificate. The
// issuer may be nil when the issuing certificate could not be located;
// checkers that need it report an unchecked status in that case.
type Checker interface {
	Check(cert, issuer *x509.Certificate) (Status, error)
}

// InfoArchival is the Adobe revocation information archival attribute
// (OID 1.2.840.113583.1.1.8) signers embed so signatures stay verifiable
// after the sources go offline.
type InfoArchival struct {
	CRL   CRL   `asn1:"tag:0,optional,explicit"`
	OCSP  OCSP  `asn1:"tag:1,optional,explicit"`
	Other Other `asn1:"tag:2,optional,explicit"`
}

// AddCRL embeds the raw bytes of a downloaded CRL.
func (r *InfoArchival) AddCRL(b []byte) error {
	r.CRL = append(r.CRL, asn1.RawValue{FullBytes: b})
	return nil
}

// AddOCSP embeds the raw bytes of an OCSP response.
func (r *InfoArchival) AddOCSP(b []byte) error {
	r.OCSP = append(r.OCSP, asn1.RawValue{FullBytes: b})
	return nil
}

// Empty reports whether the attribute carries no revocation material.
func (r *InfoArchival) Empty() bool {
	return len(r.CRL) == 0 && len(r.OCSP) == 0
}

// Checker builds a StaticChecker over the archived material. Entries
// that fail to parse are skipped; archival attributes in the wild often
// carry responses for only part of the chain.
func (r *InfoArchival) Checker() *StaticChecker {
	c := NewStaticChecker()
	for _, raw := range r.CRL {
		_ = c.AddCRL(raw.FullBytes)
	}
	for _, raw := range r.OCSP {
		_ = c.AddOCSP(raw.FullBytes)
	}
	return c
}

// CRL holds raw pkix certificate lists, parseable with
// x509.ParseRevocationList.
type CRL []asn1.RawValue

// OCSP holds raw OCSP responses, parseable with ocsp.ParseResponse.
type OCSP []asn1.RawValue

// Other is the OtherRevInfo ASN.1 object.
type Other struct {
	Type  asn1.ObjectIdentifier
	Value []byte
}
