package pdfval

import (
	"time"

	"github.com/validbr/pdfval/icpbrasil"
	"github.com/validbr/pdfval/scanner"
	"github.com/validbr/pdfval/verify"
)

// Policy decides how per-signature outcomes aggregate into the document
// verdict.
type Policy string

const (
	// AnySignature accepts the document when at least one signature is
	// valid. This mirrors the acceptance rule of the national validator.
	AnySignature Policy = "any"

	// AllSignatures accepts the document only when every signature is
	// valid.
	AllSignatures Policy = "all"
)

// Verdict is the document-level outcome. TotalSignatures counts the
// signatures that produced a result; signature fields that were never
// signed are not counted.
type Verdict struct {
	Valid             bool               `json:"valid"`
	TotalSignatures   int                `json:"total_signatures"`
	ValidSignatures   []*SignatureResult `json:"valid_signatures"`
	InvalidSignatures []*SignatureResult `json:"invalid_signatures"`
	Filename          string             `json:"filename,omitempty"`
	Error             string             `json:"error,omitempty"`

	Policy       Policy          `json:"policy"`
	DocumentInfo *DocumentInfo   `json:"document_info,omitempty"`
	Scan         *scanner.Report `json:"scan,omitempty"`
}

// SignatureResult is the outcome for one signature. Reasons always
// explains an invalid result, whether validation ran or the signature
// never got that far.
type SignatureResult struct {
	Field  string `json:"field,omitempty"`
	Source string `json:"source,omitempty"`

	Signer       string `json:"signer,omitempty"`
	SigningTime  string `json:"signing_time,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Location     string `json:"location,omitempty"`
	ContactInfo  string `json:"contact_info,omitempty"`
	DocTimeStamp bool   `json:"doc_time_stamp,omitempty"`

	Valid   bool     `json:"is_valid"`
	Reasons []string `json:"reasons,omitempty"`

	Certificate *verify.CertificateInfo `json:"certificate,omitempty"`
	ICPBrasil   *icpbrasil.Info         `json:"icp_brasil,omitempty"`
	Validation  *verify.Result          `json:"validation,omitempty"`
}

// DocumentInfo is the document information dictionary plus page count.
type DocumentInfo struct {
	Author   string `json:"author,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Producer string `json:"producer,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Title    string `json:"title,omitempty"`

	Pages        int       `json:"pages"`
	Keywords     []string  `json:"keywords,omitempty"`
	ModDate      time.Time `json:"mod_date"`
	CreationDate time.Time `json:"creation_date"`
}
