// Package extract locates signature fields in a PDF's object graph and
// pulls the embedded signature containers out of them.
package extract

import (
	"fmt"
	"io"
	"iter"

	pdflib "github.com/digitorus/pdf"
	"go.uber.org/zap"
)

// FieldSource identifies where in the document a signature field was found.
type FieldSource string

const (
	// SourceAcroForm marks fields reached through /Root -> /AcroForm -> /Fields.
	SourceAcroForm FieldSource = "acroform"
	// SourceAnnots marks widget annotations found on a page's /Annots array.
	// Some producers omit the form dictionary entirely.
	SourceAnnots FieldSource = "annots"
)

// Field is one signature-type form field found in a document.
type Field struct {
	// Name is the partial field name (/T), empty when the producer omitted it.
	Name string
	// Index is the ordinal position in document order.
	Index int
	// Source records which traversal found the field.
	Source FieldSource

	Obj  pdflib.Value
	File io.ReaderAt
}

// Value returns the field's signature dictionary (/V).
// The result is a null value when the field has not been signed yet.
func (f *Field) Value() pdflib.Value {
	return f.Obj.Key("V")
}

// Signed reports whether the field carries a signature dictionary.
// Unsigned fields are legitimate (not-yet-signed), not malformed.
func (f *Field) Signed() bool {
	signed := false
	_ = guard(func() { signed = !f.Obj.Key("V").IsNull() })
	return signed
}

// Fields returns an iterator over all signature-type form fields in the
// document, in document order. The interactive form tree is walked first
// (with /Kids recursion); every page's /Annots array is scanned afterwards
// to catch signature widgets that are not linked through /AcroForm.
// Duplicates are suppressed by object identity.
//
// A failure to resolve one field is logged and skips only that field. The
// iterator yields an error only when the document catalog itself is
// unreadable.
func Fields(rdr *pdflib.Reader, file io.ReaderAt, log *zap.Logger) iter.Seq2[*Field, error] {
	if log == nil {
		log = zap.NewNop()
	}
	return func(yield func(*Field, error) bool) {
		var root pdflib.Value
		if err := guard(func() { root = rdr.Trailer().Key("Root") }); err != nil {
			yield(nil, &StructuralError{Msg: "unreadable document catalog", Err: err})
			return
		}
		if root.IsNull() {
			yield(nil, &StructuralError{Msg: "document has no catalog"})
			return
		}

		w := &walker{
			file: file,
			log:  log,
			seen: make(map[uint32]bool),
		}

		cont := true
		if err := guard(func() {
			cont = w.walkFields(root.Key("AcroForm").Key("Fields"), SourceAcroForm, yield)
		}); err != nil {
			log.Warn("interactive form traversal failed, continuing with page annotations",
				zap.Error(err))
		}
		if !cont {
			return
		}

		if err := guard(func() { w.walkAnnots(rdr, yield) }); err != nil {
			log.Warn("page annotation scan failed", zap.Error(err))
		}
	}
}

// FindFields collects the results of Fields into a slice.
func FindFields(rdr *pdflib.Reader, file io.ReaderAt, log *zap.Logger) ([]*Field, error) {
	var fields []*Field
	for f, err := range Fields(rdr, file, log) {
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

type walker struct {
	file io.ReaderAt
	log  *zap.Logger
	seen map[uint32]bool
	next int
}

func (w *walker) walkFields(arr pdflib.Value, src FieldSource, yield func(*Field, error) bool) bool {
	if arr.IsNull() || arr.Kind() != pdflib.Array {
		return true
	}
	for i := 0; i < arr.Len(); i++ {
		var field pdflib.Value
		if err := guard(func() { field = arr.Index(i) }); err != nil {
			w.log.Warn("skipping unresolvable form field",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		if !w.visitField(field, src, yield) {
			return false
		}
	}
	return true
}

func (w *walker) visitField(field pdflib.Value, src FieldSource, yield func(*Field, error) bool) bool {
	var (
		sig  bool
		name string
	)
	if err := guard(func() {
		sig = field.Key("FT").Name() == "Sig"
		name = field.Key("T").Text()
	}); err != nil {
		w.log.Warn("skipping unreadable form field", zap.Error(err))
		return true
	}

	if sig && w.mark(field) {
		f := &Field{Name: name, Index: w.next, Source: src, Obj: field, File: w.file}
		w.next++
		if !yield(f, nil) {
			return false
		}
	}

	var kids pdflib.Value
	if err := guard(func() { kids = field.Key("Kids") }); err != nil {
		return true
	}
	if !kids.IsNull() {
		return w.walkFields(kids, src, yield)
	}
	return true
}

func (w *walker) walkAnnots(rdr *pdflib.Reader, yield func(*Field, error) bool) bool {
	var pages int
	if err := guard(func() { pages = rdr.NumPage() }); err != nil {
		w.log.Warn("page tree is unreadable", zap.Error(err))
		return true
	}

	for p := 1; p <= pages; p++ {
		var annots pdflib.Value
		if err := guard(func() { annots = rdr.Page(p).V.Key("Annots") }); err != nil {
			w.log.Warn("skipping unreadable page annotations",
				zap.Int("page", p), zap.Error(err))
			continue
		}
		if annots.IsNull() || annots.Kind() != pdflib.Array {
			continue
		}

		for i := 0; i < annots.Len(); i++ {
			var (
				a      pdflib.Value
				widget bool
			)
			if err := guard(func() {
				a = annots.Index(i)
				widget = a.Key("Subtype").Name() == "Widget"
			}); err != nil {
				w.log.Warn("skipping unresolvable annotation",
					zap.Int("page", p), zap.Int("index", i), zap.Error(err))
				continue
			}
			if !widget {
				continue
			}
			if !w.visitField(a, SourceAnnots, yield) {
				return false
			}
		}
	}
	return true
}

// mark records a field by object identity and reports whether it is new.
// The signature dictionary's pointer is preferred over the field's own,
// so a field and its widget annotation count once.
func (w *walker) mark(field pdflib.Value) bool {
	id := valueID(field.Key("V"))
	if id == 0 {
		id = valueID(field)
	}
	if id == 0 {
		// Inline object without an indirect reference, nothing to dedupe on.
		return true
	}
	if w.seen[id] {
		return false
	}
	w.seen[id] = true
	return true
}

func valueID(v pdflib.Value) uint32 {
	if v.IsNull() {
		return 0
	}
	return uint32(v.GetPtr().GetID())
}

// guard runs fn and converts a panic from the PDF object layer into an
// error, so one malformed object cannot abort a whole document scan.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed object: %v", r)
		}
	}()
	fn()
	return nil
}
