package icpbrasil

import "strings"

// Arcs assigned to the hierarchy under the 2.16.76.1 root.
const (
	// OIDPolicyBase is the arc all signature policy OIDs hang from.
	OIDPolicyBase = "2.16.76.1.2"

	// OIDPersonData marks the subject data extension carrying the
	// holder's CPF on natural person certificates.
	OIDPersonData = "2.16.76.1.3.1"

	// OIDCompanyData marks the subject data extension carrying the CNPJ
	// on legal entity certificates.
	OIDCompanyData = "2.16.76.1.3.3"

	// OIDRootCA identifies the root authority's own arc.
	OIDRootCA = "2.16.76.1.1"
)

// knownAuthorities anchors the name based membership signal. The list
// covers the operational certificate authorities of the hierarchy;
// matching is case insensitive substring search over the DN.
var knownAuthorities = []string{
	"AC RAIZ",
	"AC SERPRO",
	"AC CAIXA",
	"AC SERASA",
	"AC CERTISIGN",
	"AC SOLUTI",
	"AC VALID",
	"AC DOCCLOUD",
	"AC DIGITALSIGN",
	"AC PRODEMGE",
}

// certificateTypes maps signature policy OIDs to their type labels. The
// A series differs by key custody: A1 keys live in software, A3 and A4
// on hardware devices.
var certificateTypes = map[string]string{
	"2.16.76.1.2.1.1": "A1 - Pessoa Física",
	"2.16.76.1.2.1.2": "A1 - Pessoa Jurídica",
	"2.16.76.1.2.3.1": "A3 - Pessoa Física",
	"2.16.76.1.2.3.2": "A3 - Pessoa Jurídica",
	"2.16.76.1.2.4.1": "A4 - Pessoa Física",
	"2.16.76.1.2.4.2": "A4 - Pessoa Jurídica",
}

// policyLevels maps signature policy arcs to assurance levels, checked
// in order.
var policyLevels = []struct {
	arc   string
	level string
}{
	{"2.16.76.1.2.1", "A1"},
	{"2.16.76.1.2.3", "A3"},
	{"2.16.76.1.2.4", "A4"},
}

// underArc reports whether a dotted OID equals the arc or falls below
// it. Plain prefix comparison would make 2.16.76.1.20 look like a child
// of 2.16.76.1.2, so the boundary must be a dot.
func underArc(oid, arc string) bool {
	return oid == arc || strings.HasPrefix(oid, arc+".")
}
