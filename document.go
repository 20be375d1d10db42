// Package pdfval validates digital signatures embedded in PDF documents
// against the Brazilian national PKI (ICP-Brasil), producing
// per-signature and per-document verdicts.
//
// Basic usage:
//
//	doc, err := pdfval.OpenFile("contract.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer doc.Close()
//
//	verdict, err := doc.Validate().
//	    Anchors(anchors...).
//	    Policy(pdfval.AnySignature).
//	    Run()
//
// Signature fields are located in the AcroForm tree and page annotations,
// their CMS containers decoded (with a pattern matching fallback for
// malformed encodings), and every signature checked for integrity,
// certificate validity, key usage, trust chain and revocation status.
package pdfval

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	pdflib "github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"

	"github.com/validbr/pdfval/extract"
)

// Document is a PDF opened for signature validation.
type Document struct {
	file io.ReaderAt
	size int64
	rdr  *pdflib.Reader

	name   string
	closer io.Closer
}

// Open initializes a Document from an io.ReaderAt (an open file or a
// memory buffer). The size parameter must be the total size of the PDF
// in bytes.
func Open(file io.ReaderAt, size int64) (*Document, error) {
	rdr, err := newReader(file, size)
	if err != nil {
		return nil, err
	}
	return &Document{file: file, size: size, rdr: rdr}, nil
}

// OpenFile initializes a Document from a file on disk. The file stays
// open for the lifetime of the document; release it with Close.
func OpenFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	finfo, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	doc, err := Open(file, finfo.Size())
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	doc.name = filepath.Base(path)
	doc.closer = file
	return doc, nil
}

// OpenBytes initializes a Document from an in-memory PDF.
func OpenBytes(data []byte) (*Document, error) {
	return Open(filebuffer.New(data), int64(len(data)))
}

// newReader opens the low-level reader. The parser panics on some
// malformed cross reference tables, so construction runs behind a
// recover.
func newReader(file io.ReaderAt, size int64) (rdr *pdflib.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			rdr = nil
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	rdr, err = pdflib.NewReader(file, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return rdr, nil
}

// Close releases the underlying file when the document owns one.
// Documents opened from a reader or byte slice have nothing to release.
func (d *Document) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

// Name returns the document's display name, the base filename for
// documents opened from disk.
func (d *Document) Name() string {
	return d.name
}

// SetName sets the display name reported in verdicts, for documents
// that did not come from a file.
func (d *Document) SetName(name string) {
	d.name = name
}

// Size returns the document length in bytes.
func (d *Document) Size() int64 {
	return d.size
}

// Reader returns the low-level PDF reader, allowing direct access to
// the cross reference table and objects.
func (d *Document) Reader() *pdflib.Reader {
	return d.rdr
}

// Info extracts the document information dictionary. Malformed entries
// degrade to partial info rather than an error.
func (d *Document) Info() *DocumentInfo {
	info := &DocumentInfo{}

	defer func() {
		// The pdf layer panics on some malformed objects; whatever was
		// read up to that point stands.
		_ = recover()
	}()

	if v := d.rdr.Trailer().Key("Info"); !v.IsNull() {
		parseDocumentInfo(v, info)
	}
	if pages := d.rdr.Trailer().Key("Root").Key("Pages").Key("Count"); !pages.IsNull() {
		info.Pages = int(pages.Int64())
	}
	return info
}

// parseDocumentInfo fills a DocumentInfo from the PDF Info dictionary.
func parseDocumentInfo(v pdflib.Value, info *DocumentInfo) {
	keys := []string{
		"Author", "CreationDate", "Creator", "Keywords", "ModDate",
		"Producer", "Subject", "Title",
	}

	for _, key := range keys {
		value := v.Key(key)
		if value.IsNull() {
			continue
		}
		valueStr := value.Text()

		elem := reflect.ValueOf(info).Elem()
		field := elem.FieldByName(key)

		switch key {
		case "CreationDate", "ModDate":
			if t, err := extract.ParsePDFDate(valueStr); err == nil {
				field.Set(reflect.ValueOf(t))
			}
		case "Keywords":
			info.Keywords = parseKeywords(valueStr)
		default:
			field.Set(reflect.ValueOf(valueStr))
		}
	}
}

// parseKeywords splits the Keywords entry. Producers disagree on the
// separator, so a cascade of the common ones is tried.
func parseKeywords(value string) []string {
	separators := []string{", ", ": ", ",", ":", " ", "; ", ";", " ;"}
	for _, s := range separators {
		if strings.Contains(value, s) {
			return strings.Split(value, s)
		}
	}
	return []string{value}
}

