// Package icpbrasil classifies signing certificates against the
// Brazilian national PKI hierarchy (ICP-Brasil) and extracts the tax
// identifiers its certificate profiles embed. Classification is a
// best-effort read of the certificate: it never fails, it only reports
// less.
package icpbrasil

import (
	"strings"

	"github.com/validbr/pdfval/verify"
)

// TypeUnknown is the certificate type label for certificates outside
// the hierarchy.
const TypeUnknown = "Desconhecido"

// Info describes what the hierarchy says about a signing certificate.
type Info struct {
	Member          bool   `json:"member"`
	CertificateType string `json:"certificate_type"`
	PolicyLevel     string `json:"policy_level,omitempty"`
	CPF             string `json:"cpf,omitempty"`
	CNPJ            string `json:"cnpj,omitempty"`
	HolderName      string `json:"holder_name,omitempty"`
	Organization    string `json:"organization,omitempty"`
}

// Classify inspects a decoded signing certificate and reports its
// position in the hierarchy. It is pure: the same certificate always
// yields the same Info, and extraction failures degrade to empty fields
// instead of errors. Certificates outside the hierarchy come back with
// Member false and the unknown type label.
func Classify(cert *verify.CertificateInfo) Info {
	info := Info{CertificateType: TypeUnknown}
	if cert == nil || cert.Certificate == nil {
		return info
	}
	if !Member(cert) {
		return info
	}
	info.Member = true

	info.CPF = ExtractCPF(cert)
	info.CNPJ = ExtractCNPJ(cert)
	info.CertificateType = certificateType(cert, info.CPF, info.CNPJ)
	info.PolicyLevel = policyLevel(cert)
	info.HolderName = cert.Subject.CommonName
	info.Organization = cert.Subject.Organization
	return info
}

// Member reports whether the certificate belongs to the hierarchy. Four
// signals are accepted: an extension under the policy, person data or
// root arcs; an issuer naming a known authority; a subject naming one,
// which covers the authority certificates themselves; and a certificate
// policy under the national arc.
func Member(cert *verify.CertificateInfo) bool {
	for oid := range cert.Extensions {
		if underArc(oid, OIDPolicyBase) || underArc(oid, OIDPersonData) || oid == OIDRootCA {
			return true
		}
	}
	if namesAuthority(cert.Issuer) || namesAuthority(cert.SubjectDN) {
		return true
	}
	for _, p := range cert.Certificate.PolicyIdentifiers {
		if underArc(p.String(), OIDPolicyBase) {
			return true
		}
	}
	return false
}

func namesAuthority(dn string) bool {
	upper := strings.ToUpper(dn)
	if strings.Contains(upper, "ICP-BRASIL") {
		return true
	}
	for _, ac := range knownAuthorities {
		if strings.Contains(upper, ac) {
			return true
		}
	}
	return false
}

// certificateType labels the certificate by its signature policy. When
// no known policy is present the label falls back to which tax
// identifiers the certificate embeds.
func certificateType(cert *verify.CertificateInfo, cpf, cnpj string) string {
	for _, p := range cert.Certificate.PolicyIdentifiers {
		if label, ok := certificateTypes[p.String()]; ok {
			return label
		}
	}
	switch {
	case cpf != "" && cnpj != "":
		return "Certificado ICP-Brasil (PF e PJ)"
	case cpf != "":
		return "Certificado ICP-Brasil (PF)"
	case cnpj != "":
		return "Certificado ICP-Brasil (PJ)"
	}
	return "Certificado ICP-Brasil"
}

func policyLevel(cert *verify.CertificateInfo) string {
	for _, p := range cert.Certificate.PolicyIdentifiers {
		oid := p.String()
		for _, pl := range policyLevels {
			if underArc(oid, pl.arc) {
				return pl.level
			}
		}
	}
	return ""
}
