package pdfval

import (
	"iter"

	"github.com/validbr/pdfval/extract"
)

// Signatures iterates the document's signature fields in discovery
// order, the AcroForm tree first and widget annotations as a fallback.
// Unsigned fields are included; check Field.Signed before pulling a
// container out of one.
func (d *Document) Signatures() iter.Seq2[*extract.Field, error] {
	return extract.Fields(d.rdr, d.file, nil)
}
