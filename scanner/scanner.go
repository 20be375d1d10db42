// Package scanner performs safety checks on PDF input before validation:
// size and page limits, header sanity, a sweep for content markers that
// deserve a closer look, and document metadata extraction. Structural
// violations make a document unsafe; suspicious content only produces
// warnings.
package scanner

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	pdflib "github.com/digitorus/pdf"
	"go.uber.org/zap"
)

// Limits bound what the scanner accepts.
type Limits struct {
	// MaxFileSize is the largest input in bytes.
	MaxFileSize int64

	// MaxPages is the largest page count.
	MaxPages int
}

// DefaultLimits are the bounds applied when the caller configures none.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize: 100 << 20,
		MaxPages:    1000,
	}
}

// Metadata is the document information dictionary as found, dates in
// their raw PDF form.
type Metadata struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	ModDate      string `json:"modification_date,omitempty"`
}

// Report is the outcome of a scan. Safe turns false only on structural
// violations; Warnings and Patterns never block validation on their own.
type Report struct {
	Safe     bool     `json:"safe"`
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Patterns lists every suspicious marker found in the raw bytes.
	Patterns []string `json:"patterns,omitempty"`

	PDFVersion string `json:"pdf_version,omitempty"`
	SizeBytes  int64  `json:"size_bytes"`
	Pages      int    `json:"pages"`
	Encrypted  bool   `json:"encrypted"`
	HasForms   bool   `json:"has_forms"`

	Metadata Metadata `json:"metadata"`
}

// Suspicious content markers, grouped by the warning they raise. The
// match is a raw byte search, deliberately blunt: markers inside streams
// or strings still count.
var suspiciousMarkers = []struct {
	pattern string
	warning string
}{
	{"/JS", "document contains JavaScript"},
	{"/JavaScript", "document contains JavaScript"},
	{"javascript:", "document contains JavaScript"},
	{"/OpenAction", "document contains automatic actions"},
	{"/AA", "document contains automatic actions"},
	{"/XFA", "document contains XFA forms"},
	{"/EmbeddedFile", "document contains embedded files"},
	{"/Filespec", "document contains embedded files"},
	{"/URI", "document contains external links"},
	{"http://", "document contains external links"},
	{"https://", "document contains external links"},
	{"ftp://", "document contains external links"},
	{"/Launch", "document contains potentially dangerous commands"},
	{"/SubmitForm", "document contains potentially dangerous commands"},
	{"/ImportData", "document contains potentially dangerous commands"},
}

var suspiciousProducers = []string{"malware", "virus", "exploit", "hack"}

var versionPattern = regexp.MustCompile(`^%PDF-(\d+\.\d+)`)

// Scanner runs the checks under a fixed set of limits.
type Scanner struct {
	limits Limits
	log    *zap.Logger
}

// New returns a scanner with the given limits. Zero limit fields fall
// back to the defaults; a nil logger disables logging.
func New(limits Limits, log *zap.Logger) *Scanner {
	def := DefaultLimits()
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = def.MaxFileSize
	}
	if limits.MaxPages <= 0 {
		limits.MaxPages = def.MaxPages
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{limits: limits, log: log}
}

// Scan checks a document and reports what it found. It never returns an
// error: everything wrong with the input is in the report.
func (s *Scanner) Scan(file io.ReaderAt, size int64) *Report {
	report := &Report{Safe: true, SizeBytes: size}

	if !s.checkBasics(file, size, report) {
		report.Safe = false
		return report
	}

	s.checkStructure(file, size, report)
	s.checkContent(file, size, report)

	report.Safe = len(report.Issues) == 0
	return report
}

// checkBasics validates size and header. A failure here makes the rest
// of the scan pointless, so it short-circuits.
func (s *Scanner) checkBasics(file io.ReaderAt, size int64, report *Report) bool {
	if size == 0 {
		report.Issues = append(report.Issues, "file is empty")
		return false
	}
	if size > s.limits.MaxFileSize {
		report.Issues = append(report.Issues,
			fmt.Sprintf("file too large: %d bytes (limit %d)", size, s.limits.MaxFileSize))
		return false
	}

	header := make([]byte, 8)
	if size < 8 {
		header = header[:size]
	}
	if _, err := file.ReadAt(header, 0); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("failed to read header: %v", err))
		return false
	}
	if !bytes.HasPrefix(header, []byte("%PDF-")) {
		report.Issues = append(report.Issues, "file has no PDF header")
		return false
	}
	if m := versionPattern.FindSubmatch(header); m != nil {
		report.PDFVersion = string(m[1])
	}
	return true
}

// checkStructure opens the document and validates page count,
// encryption and form presence, and pulls the information dictionary.
// The underlying parser panics on some malformed inputs, so everything
// runs behind a recover.
func (s *Scanner) checkStructure(file io.ReaderAt, size int64, report *Report) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("document structure unreadable", zap.Any("panic", r))
			report.Issues = append(report.Issues, fmt.Sprintf("malformed document structure: %v", r))
		}
	}()

	rdr, err := pdflib.NewReader(file, size)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			report.Encrypted = true
			report.Warnings = appendUnique(report.Warnings, "document is encrypted")
			return
		}
		report.Issues = append(report.Issues, fmt.Sprintf("malformed document structure: %v", err))
		return
	}

	report.Pages = rdr.NumPage()
	if report.Pages > s.limits.MaxPages {
		report.Issues = append(report.Issues,
			fmt.Sprintf("too many pages: %d (limit %d)", report.Pages, s.limits.MaxPages))
	}
	if report.Pages == 0 {
		report.Issues = append(report.Issues, "document has no pages")
	}

	trailer := rdr.Trailer()
	if !trailer.Key("Encrypt").IsNull() {
		report.Encrypted = true
		report.Warnings = appendUnique(report.Warnings, "document is encrypted")
	}
	if !trailer.Key("Root").Key("AcroForm").IsNull() {
		report.HasForms = true
		report.Warnings = appendUnique(report.Warnings, "document contains interactive forms")
	}

	s.checkMetadata(trailer.Key("Info"), report)
}

func (s *Scanner) checkMetadata(info pdflib.Value, report *Report) {
	if info.IsNull() {
		return
	}
	report.Metadata = Metadata{
		Title:        info.Key("Title").Text(),
		Author:       info.Key("Author").Text(),
		Subject:      info.Key("Subject").Text(),
		Creator:      info.Key("Creator").Text(),
		Producer:     info.Key("Producer").Text(),
		CreationDate: info.Key("CreationDate").Text(),
		ModDate:      info.Key("ModDate").Text(),
	}

	haystack := strings.ToLower(report.Metadata.Creator + " " + report.Metadata.Producer)
	for _, word := range suspiciousProducers {
		if strings.Contains(haystack, word) {
			report.Warnings = appendUnique(report.Warnings,
				fmt.Sprintf("suspicious metadata: %s", word))
		}
	}
}

// checkContent sweeps the raw bytes for the marker table. Warnings are
// deduplicated; Patterns keeps every distinct marker hit.
func (s *Scanner) checkContent(file io.ReaderAt, size int64, report *Report) {
	content, err := io.ReadAll(io.NewSectionReader(file, 0, size))
	if err != nil {
		report.Warnings = appendUnique(report.Warnings,
			fmt.Sprintf("content scan incomplete: %v", err))
		return
	}

	for _, marker := range suspiciousMarkers {
		if !bytes.Contains(content, []byte(marker.pattern)) {
			continue
		}
		s.log.Debug("suspicious marker found", zap.String("marker", marker.pattern))
		report.Patterns = append(report.Patterns, marker.pattern)
		report.Warnings = appendUnique(report.Warnings, marker.warning)
	}
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
