package pdfval

import (
	"crypto/x509"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/validbr/pdfval/extract"
	"github.com/validbr/pdfval/icpbrasil"
	"github.com/validbr/pdfval/revocation"
	"github.com/validbr/pdfval/scanner"
	"github.com/validbr/pdfval/verify"
)

// ValidateBuilder provides a fluent API for configuring and executing
// signature validation. Execution is lazy: the document is only read
// when a result accessor (Run, Valid, Err, Count) is called.
type ValidateBuilder struct {
	doc *Document

	anchors      []*x509.Certificate
	checker      revocation.Checker
	policy       Policy
	workers      int
	at           time.Time
	requiredEKUs []x509.ExtKeyUsage
	log          *zap.Logger

	scan       bool
	scanLimits scanner.Limits

	// Lazy execution state
	executed bool
	verdict  *Verdict
	err      error
}

// Validate begins configuring a validation run over the document's
// signatures.
func (d *Document) Validate() *ValidateBuilder {
	return &ValidateBuilder{
		doc:     d,
		policy:  AnySignature,
		workers: 1,
	}
}

// Anchors adds trusted issuing certificates for the chain check. Without
// anchors the chain is reported unverified rather than failed.
func (b *ValidateBuilder) Anchors(certs ...*x509.Certificate) *ValidateBuilder {
	b.anchors = append(b.anchors, certs...)
	return b
}

// Revocation sets the checker consulted for certificate status. Without
// one, only revocation material archived inside the signatures is used.
func (b *ValidateBuilder) Revocation(checker revocation.Checker) *ValidateBuilder {
	b.checker = checker
	return b
}

// Policy sets how per-signature outcomes aggregate into the document
// verdict. Default is AnySignature.
func (b *ValidateBuilder) Policy(p Policy) *ValidateBuilder {
	b.policy = p
	return b
}

// Workers sets how many signatures are validated concurrently. Default
// is one.
func (b *ValidateBuilder) Workers(n int) *ValidateBuilder {
	b.workers = n
	return b
}

// AtTime fixes the reference time for certificate validity checks. By
// default every signature is checked at its own signing time.
func (b *ValidateBuilder) AtTime(t time.Time) *ValidateBuilder {
	b.at = t
	return b
}

// RequiredEKUs requires at least one of the given extended key usages on
// signing certificates that carry the extension.
func (b *ValidateBuilder) RequiredEKUs(ekus ...x509.ExtKeyUsage) *ValidateBuilder {
	b.requiredEKUs = ekus
	return b
}

// Logger sets the logger for validation progress and warnings.
func (b *ValidateBuilder) Logger(log *zap.Logger) *ValidateBuilder {
	b.log = log
	return b
}

// Scan runs the safety scanner before validation. Structural violations
// in the report block validation; the report rides along on the verdict
// either way. Zero limit fields fall back to the defaults.
func (b *ValidateBuilder) Scan(limits scanner.Limits) *ValidateBuilder {
	b.scan = true
	b.scanLimits = limits
	return b
}

// --- Result accessors (trigger lazy execution) ---

// Run executes validation and returns the document verdict. A verdict is
// returned even when err is non-nil: structural failures come back as an
// invalid verdict carrying the error text.
func (b *ValidateBuilder) Run() (*Verdict, error) {
	b.execute()
	return b.verdict, b.err
}

// Valid reports the document verdict under the configured policy.
func (b *ValidateBuilder) Valid() bool {
	b.execute()
	return b.verdict.Valid
}

// Err returns the structural error of the run, if any. Invalid
// signatures are not errors.
func (b *ValidateBuilder) Err() error {
	b.execute()
	return b.err
}

// Count returns the number of signatures that produced a result.
func (b *ValidateBuilder) Count() int {
	b.execute()
	return b.verdict.TotalSignatures
}

// execute performs the validation once and caches the verdict.
func (b *ValidateBuilder) execute() {
	if b.executed {
		return
	}
	b.executed = true

	if b.log == nil {
		b.log = zap.NewNop()
	}

	verdict := &Verdict{
		Filename:          b.doc.name,
		Policy:            b.policy,
		ValidSignatures:   []*SignatureResult{},
		InvalidSignatures: []*SignatureResult{},
	}
	b.verdict = verdict

	if b.scan {
		report := scanner.New(b.scanLimits, b.log).Scan(b.doc.file, b.doc.size)
		verdict.Scan = report
		if !report.Safe {
			verdict.Error = strings.Join(report.Issues, "; ")
			b.err = errors.New(verdict.Error)
			return
		}
	}

	verdict.DocumentInfo = b.doc.Info()

	fields, err := extract.FindFields(b.doc.rdr, b.doc.file, b.log)
	if err != nil {
		verdict.Error = err.Error()
		b.err = err
		return
	}

	var signed []*extract.Field
	for _, f := range fields {
		if f.Signed() {
			signed = append(signed, f)
		}
	}

	// Negative verdicts, not errors: the document was read fine, it just
	// carries nothing to validate.
	if len(fields) == 0 {
		verdict.Error = "no signatures present"
		return
	}
	if len(signed) == 0 {
		verdict.Error = "signature fields contain no signature values"
		return
	}

	verdict.TotalSignatures = len(signed)
	for _, res := range b.validateAll(signed) {
		if res.Valid {
			verdict.ValidSignatures = append(verdict.ValidSignatures, res)
		} else {
			verdict.InvalidSignatures = append(verdict.InvalidSignatures, res)
		}
	}

	switch b.policy {
	case AllSignatures:
		verdict.Valid = len(verdict.InvalidSignatures) == 0
	default:
		verdict.Valid = len(verdict.ValidSignatures) > 0
	}
	if !verdict.Valid && len(verdict.ValidSignatures) == 0 {
		verdict.Error = joinReasons(verdict.InvalidSignatures)
	}

	b.log.Info("document validated",
		zap.String("filename", verdict.Filename),
		zap.Bool("valid", verdict.Valid),
		zap.Int("total", verdict.TotalSignatures),
		zap.Int("invalid", len(verdict.InvalidSignatures)))
}

// validateAll fans the signed fields out over the configured workers.
// Results keep field discovery order regardless of completion order.
func (b *ValidateBuilder) validateAll(fields []*extract.Field) []*SignatureResult {
	results := make([]*SignatureResult, len(fields))

	workers := b.workers
	if workers > len(fields) {
		workers = len(fields)
	}
	if workers <= 1 {
		for i, f := range fields {
			results[i] = b.validateField(f)
		}
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = b.validateField(fields[i])
			}
		}()
	}
	for i := range fields {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// validateField runs the pipeline for one signature field: container
// extraction, certificate decode, hierarchy classification, validation.
// Failures before validation produce an invalid result with the failure
// as its reason; they never abort the sibling signatures.
func (b *ValidateBuilder) validateField(f *extract.Field) *SignatureResult {
	res := &SignatureResult{Field: f.Name, Source: string(f.Source)}

	c, err := f.Container()
	if err != nil {
		b.log.Warn("signature container unreadable",
			zap.String("field", f.Name), zap.Error(err))
		res.Reasons = []string{err.Error()}
		return res
	}
	res.Signer = c.SignerName
	res.SigningTime = c.SigningTime
	res.Reason = c.Reason
	res.Location = c.Location
	res.ContactInfo = c.ContactInfo
	res.DocTimeStamp = c.DocTimeStamp

	cert, err := verify.DecodeCertificate(c.Raw)
	if err != nil {
		b.log.Warn("certificate decode failed",
			zap.String("field", f.Name), zap.Error(err))
		res.Reasons = []string{err.Error()}
		return res
	}
	res.Certificate = cert

	icp := icpbrasil.Classify(cert)
	res.ICPBrasil = &icp

	v := verify.Validate(c, cert, &verify.Options{
		Anchors:      b.anchors,
		At:           b.at,
		RequiredEKUs: b.requiredEKUs,
		Revocation:   b.checker,
	})
	res.Validation = v
	res.Valid = v.Valid
	res.Reasons = v.Reasons

	// A verified timestamp is a stronger claim than the dictionary time.
	if v.Timestamp != nil {
		res.SigningTime = extract.FormatTime(v.Timestamp.Time)
	}
	return res
}

// joinReasons folds the distinct failure reasons of invalid results into
// one error string for the verdict.
func joinReasons(results []*SignatureResult) string {
	var reasons []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, reason := range r.Reasons {
			if !seen[reason] {
				seen[reason] = true
				reasons = append(reasons, reason)
			}
		}
	}
	return strings.Join(reasons, "; ")
}

// ValidateFile opens a document and validates it with default settings:
// any-signature policy, no anchors, no revocation checker.
func ValidateFile(path string) (*Verdict, error) {
	doc, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.Validate().Run()
}

// ValidateBytes validates an in-memory document with default settings.
func ValidateBytes(data []byte) (*Verdict, error) {
	doc, err := OpenBytes(data)
	if err != nil {
		return nil, err
	}
	return doc.Validate().Run()
}
