package revocation

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"

	"golang.org/x/crypto/ocsp"
)

// StaticChecker answers from revocation material loaded ahead of time:
// CRLs and OCSP responses the caller downloaded, or material archived
// inside the signature itself. It never touches the network.
type StaticChecker struct {
	crls  []*x509.RevocationList
	ocsps []*ocsp.Response
}

func NewStaticChecker() *StaticChecker {
	return &StaticChecker{}
}

// AddCRL parses and stores a DER encoded certificate list.
func (s *StaticChecker) AddCRL(der []byte) error {
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		return fmt.Errorf("malformed CRL: %w", err)
	}
	s.crls = append(s.crls, crl)
	return nil
}

// AddOCSP parses and stores a DER encoded OCSP response. The response
// signature is not verified here; callers holding the responder
// certificate can verify before adding.
func (s *StaticChecker) AddOCSP(der []byte) error {
	resp, err := ocsp.ParseResponse(der, nil)
	if err != nil {
		return fmt.Errorf("malformed OCSP response: %w", err)
	}
	s.ocsps = append(s.ocsps, resp)
	return nil
}

// Check looks the certificate up in the stored material. A CRL counts as
// authoritative only when its issuer matches the certificate's issuer;
// an OCSP response only when it names the certificate's serial.
func (s *StaticChecker) Check(cert, issuer *x509.Certificate) (Status, error) {
	for _, resp := range s.ocsps {
		if resp.SerialNumber == nil || resp.SerialNumber.Cmp(cert.SerialNumber) != 0 {
			continue
		}
		switch resp.Status {
		case ocsp.Revoked:
			return Status{
				Checked: true,
				Revoked: true,
				Source:  SourceOCSP,
				Detail:  revokedDetail(resp.RevokedAt),
			}, nil
		case ocsp.Good:
			return Status{Checked: true, Source: SourceOCSP, Detail: "good"}, nil
		default:
			return Unchecked("OCSP responder does not know the certificate"), nil
		}
	}

	for _, crl := range s.crls {
		if !bytes.Equal(crl.RawIssuer, cert.RawIssuer) {
			continue
		}
		for _, entry := range crl.RevokedCertificateEntries {
			if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return Status{
					Checked: true,
					Revoked: true,
					Source:  SourceCRL,
					Detail:  revokedDetail(entry.RevocationTime),
				}, nil
			}
		}
		return Status{Checked: true, Source: SourceCRL, Detail: "good"}, nil
	}

	return Unchecked("no revocation source covers this certificate"), nil
}

func revokedDetail(at time.Time) string {
	if at.IsZero() {
		return "revoked"
	}
	return fmt.Sprintf("revoked at %s", at.Format(time.RFC3339))
}
