package verify

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"

	"github.com/validbr/pdfval/extract"
	"github.com/validbr/pdfval/revocation"
)

// Time source labels for Result.TimeSource.
const (
	TimeSourceTimestamp  = "timestamp"
	TimeSourceDictionary = "dictionary"
	TimeSourceCurrent    = "current"
	TimeSourceCaller     = "caller"
)

// Adobe revocation information archival attribute.
var oidRevocationInfoArchival = asn1.ObjectIdentifier{1, 2, 840, 113583, 1, 1, 8}

// Options control how a signature container is validated.
type Options struct {
	// Anchors are the trusted issuing certificates. When empty the chain
	// check is skipped and reported as not verified.
	Anchors []*x509.Certificate

	// At fixes the reference time for certificate validity checks. Zero
	// means the signature's own time is used: the timestamp when present,
	// the dictionary time otherwise, the current time as a last resort.
	At time.Time

	// RequiredEKUs lists extended key usages at least one of which must be
	// present when the certificate carries the extension. Empty disables
	// the check.
	RequiredEKUs []x509.ExtKeyUsage

	// Revocation is consulted for the signing certificate's status when
	// the signature archives no usable revocation material of its own.
	// Nil means the status stays unchecked.
	Revocation revocation.Checker
}

// Result is the validation outcome for a single signature container.
// Valid is the conjunction of the individual checks; Reasons explains
// every failed one.
type Result struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`

	Integrity bool `json:"integrity"`
	Temporal  bool `json:"temporal"`
	KeyUsage  bool `json:"key_usage"`
	Chain     bool `json:"chain"`

	// ChainVerified distinguishes a chain that was checked and held from
	// one that was never checked for lack of anchors.
	ChainVerified bool `json:"chain_verified"`

	Revocation revocation.Status `json:"revocation"`

	// SigningTime is the best available claim about when the signature
	// was made. TimeSource names the time the validity checks ran
	// against, which is not always the same claim.
	SigningTime *time.Time           `json:"signing_time,omitempty"`
	TimeSource  string               `json:"time_source,omitempty"`
	Timestamp   *timestamp.Timestamp `json:"time_stamp,omitempty"`
}

func (r *Result) fail(check *bool, reason string) {
	*check = false
	r.Reasons = append(r.Reasons, reason)
}

// Validate runs every check on a signature container and its decoded
// certificate. The checks are independent: a failure in one never
// short-circuits the others, so Reasons collects everything wrong with
// the signature at once. cert must come from DecodeCertificate on the
// same container.
func Validate(c *extract.Container, cert *CertificateInfo, opts *Options) *Result {
	if opts == nil {
		opts = &Options{}
	}
	r := &Result{Integrity: true, Temporal: true, KeyUsage: true, Chain: true}

	p7 := checkIntegrity(c, cert, r)
	resolveSigningTime(c, r)

	at := opts.At
	switch {
	case !at.IsZero():
		r.TimeSource = TimeSourceCaller
	case r.SigningTime != nil:
		at = *r.SigningTime
	default:
		at = time.Now()
		r.TimeSource = TimeSourceCurrent
	}
	checkTemporal(cert, at, r)

	if ok, reason := checkKeyUsage(cert); !ok {
		r.fail(&r.KeyUsage, reason)
	}
	if ok, reason := checkExtKeyUsage(cert, opts.RequiredEKUs); !ok {
		r.fail(&r.KeyUsage, reason)
	}

	issuer := checkChain(cert, opts.Anchors, r)
	checkRevocation(p7, cert, issuer, opts.Revocation, r)

	r.Valid = r.Integrity && r.Temporal && r.KeyUsage && r.Chain && !r.Revocation.Revoked
	return r
}

// checkIntegrity verifies the cryptographic binding between the container
// and the document bytes. Containers whose certificate was located by
// pattern matching cannot be verified as CMS structures; their integrity
// stands and the decode method flags the degradation. The parsed CMS
// structure is returned for the later revocation attribute lookup.
func checkIntegrity(c *extract.Container, cert *CertificateInfo, r *Result) *pkcs7.PKCS7 {
	if cert.DecodeMethod == DecodePatternMatch {
		return nil
	}

	p7, err := pkcs7.Parse(c.Raw)
	if err != nil {
		r.fail(&r.Integrity, fmt.Sprintf("malformed signature container: %v", err))
		return nil
	}

	if c.DocTimeStamp {
		ts, err := docTimeStamp(c)
		if ts != nil {
			r.Timestamp = ts
		}
		if err != nil {
			r.fail(&r.Integrity, err.Error())
			return p7
		}
		if err := p7.Verify(); err != nil {
			r.fail(&r.Integrity, fmt.Sprintf("timestamp signature verification failed: %v", err))
		}
		return p7
	}

	content, err := c.SignedBytes()
	if err != nil {
		r.fail(&r.Integrity, fmt.Sprintf("failed to read signed byte ranges: %v", err))
		return p7
	}
	p7.Content = content

	ts, err := attributeTimestamp(p7)
	if ts != nil {
		r.Timestamp = ts
	}
	if err != nil {
		r.fail(&r.Integrity, err.Error())
	}

	if err := p7.Verify(); err != nil {
		r.fail(&r.Integrity, fmt.Sprintf("signature verification failed: %v", err))
	}
	return p7
}

// resolveSigningTime picks the best available signing time claim: the
// RFC 3161 timestamp when one verified, the signature dictionary's
// claimed time otherwise. The dictionary time is asserted by the signer
// and carries no proof.
func resolveSigningTime(c *extract.Container, r *Result) {
	if r.Timestamp != nil {
		t := r.Timestamp.Time
		r.SigningTime = &t
		r.TimeSource = TimeSourceTimestamp
		return
	}
	if t, err := extract.ParsePDFDate(c.RawSigningTime); err == nil {
		r.SigningTime = &t
		r.TimeSource = TimeSourceDictionary
	}
}

func checkTemporal(cert *CertificateInfo, at time.Time, r *Result) {
	if at.Before(cert.NotBefore) {
		r.fail(&r.Temporal, fmt.Sprintf("certificate not valid before %s", cert.NotBefore.UTC().Format(time.RFC3339)))
	}
	if at.After(cert.NotAfter) {
		r.fail(&r.Temporal, fmt.Sprintf("certificate expired on %s", cert.NotAfter.UTC().Format(time.RFC3339)))
	}
}

// checkChain matches the certificate's issuer against the trusted
// anchors and verifies the issuing signature on a match. The matched
// anchor is returned so the revocation check can use it. No anchors
// means the check is skipped and ChainVerified stays false.
func checkChain(cert *CertificateInfo, anchors []*x509.Certificate, r *Result) *x509.Certificate {
	if len(anchors) == 0 {
		return nil
	}
	r.ChainVerified = true

	var sigErr error
	var matched *x509.Certificate
	for _, anchor := range anchors {
		if !bytes.Equal(cert.Certificate.RawIssuer, anchor.RawSubject) {
			continue
		}
		matched = anchor
		if err := cert.Certificate.CheckSignatureFrom(anchor); err != nil {
			sigErr = err
			continue
		}
		return anchor
	}

	if matched != nil {
		r.fail(&r.Chain, fmt.Sprintf("issuer signature check failed: %v", sigErr))
		return matched
	}
	r.fail(&r.Chain, "issuer not among trusted anchors")
	return nil
}

// checkRevocation resolves the certificate's revocation status. Material
// archived inside the signature takes precedence over the configured
// checker: it is what keeps old signatures verifiable after the live
// sources go offline.
func checkRevocation(p7 *pkcs7.PKCS7, cert *CertificateInfo, issuer *x509.Certificate, checker revocation.Checker, r *Result) {
	r.Revocation = revocation.Unchecked("")

	if p7 != nil {
		var archival revocation.InfoArchival
		if err := p7.UnmarshalSignedAttribute(oidRevocationInfoArchival, &archival); err == nil && !archival.Empty() {
			status, err := archival.Checker().Check(cert.Certificate, issuer)
			if err == nil && status.Checked {
				r.Revocation = status
				if status.Revoked {
					r.Reasons = append(r.Reasons, "certificate revoked")
				}
				return
			}
		}
	}

	if checker == nil {
		return
	}
	status, err := checker.Check(cert.Certificate, issuer)
	if err != nil {
		r.Revocation = revocation.Unchecked(fmt.Sprintf("revocation check failed: %v", err))
		return
	}
	r.Revocation = status
	if status.Revoked {
		r.Reasons = append(r.Reasons, "certificate revoked")
	}
}
