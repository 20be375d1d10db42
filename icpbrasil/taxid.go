package icpbrasil

import (
	"encoding/asn1"
	"regexp"

	"github.com/validbr/pdfval/verify"
)

var (
	cpfSubjectPattern  = regexp.MustCompile(`CPF[:=\s]+(\d{3}\.\d{3}\.\d{3}-\d{2}|\d{11})`)
	cnpjSubjectPattern = regexp.MustCompile(`CNPJ[:=\s]+(\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}|\d{14})`)

	cpfFormatted  = regexp.MustCompile(`\d{3}\.\d{3}\.\d{3}-\d{2}`)
	cnpjFormatted = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)
)

// ExtractCPF pulls the holder's CPF from a certificate. The subject data
// extension is authoritative; the subject alternative name and the
// subject DN are fallbacks for certificates that encode it elsewhere.
// Empty means not present.
func ExtractCPF(cert *verify.CertificateInfo) string {
	if raw := cert.Extensions[OIDPersonData]; len(raw) >= 11 {
		return FormatCPF(string(raw[:11]))
	}

	for _, v := range sanOtherNames(cert, OIDPersonData) {
		if m := cpfFormatted.FindString(v); m != "" {
			return m
		}
	}

	if m := cpfSubjectPattern.FindStringSubmatch(cert.SubjectDN); m != nil {
		return FormatCPF(m[1])
	}
	return ""
}

// ExtractCNPJ pulls the organization's CNPJ from a certificate, with the
// same precedence as ExtractCPF. Empty means not present.
func ExtractCNPJ(cert *verify.CertificateInfo) string {
	if raw := cert.Extensions[OIDCompanyData]; len(raw) >= 14 {
		return FormatCNPJ(string(raw[:14]))
	}

	for _, v := range sanOtherNames(cert, OIDCompanyData) {
		if m := cnpjFormatted.FindString(v); m != "" {
			return m
		}
	}

	if m := cnpjSubjectPattern.FindStringSubmatch(cert.SubjectDN); m != nil {
		return FormatCNPJ(m[1])
	}
	return ""
}

// FormatCPF renders eleven digits as NNN.NNN.NNN-NN. Anything else,
// including already formatted input, comes back unchanged.
func FormatCPF(s string) string {
	if len(s) != 11 {
		return s
	}
	return s[:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:]
}

// FormatCNPJ renders fourteen digits as NN.NNN.NNN/NNNN-NN. Anything
// else comes back unchanged.
func FormatCNPJ(s string) string {
	if len(s) != 14 {
		return s
	}
	return s[:2] + "." + s[2:5] + "." + s[5:8] + "/" + s[8:12] + "-" + s[12:]
}

const oidSubjectAltName = "2.5.29.17"

// otherName is the GeneralName alternative carrying a typed value,
// RFC 5280 section 4.2.1.6.
type otherName struct {
	TypeID asn1.ObjectIdentifier
	Value  asn1.RawValue `asn1:"tag:0,explicit"`
}

// sanOtherNames walks the subject alternative name extension and returns
// the value text of every otherName entry typed with the given OID. The
// walk tolerates malformed entries; they are skipped.
func sanOtherNames(cert *verify.CertificateInfo, typeOID string) []string {
	raw := cert.Extensions[oidSubjectAltName]
	if len(raw) == 0 {
		return nil
	}

	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(raw, &seq); err != nil ||
		seq.Class != asn1.ClassUniversal || seq.Tag != asn1.TagSequence || !seq.IsCompound {
		return nil
	}

	var values []string
	rest := seq.Bytes
	for len(rest) > 0 {
		var gn asn1.RawValue
		var err error
		rest, err = asn1.Unmarshal(rest, &gn)
		if err != nil {
			break
		}
		if gn.Class != asn1.ClassContextSpecific || gn.Tag != 0 {
			continue
		}

		var on otherName
		if _, err := asn1.UnmarshalWithParams(gn.FullBytes, &on, "tag:0"); err != nil {
			continue
		}
		if on.TypeID.String() != typeOID {
			continue
		}
		values = append(values, string(on.Value.Bytes))
	}
	return values
}
