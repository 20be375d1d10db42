package extract

import (
	"strings"

	pdflib "github.com/digitorus/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Container holds the raw signed-data blob from a signature dictionary
// together with the declared byte ranges and the human-readable metadata.
// No semantic parsing of the blob has happened yet.
type Container struct {
	// Raw is the /Contents value, including any trailing zero padding the
	// signer reserved in the placeholder.
	Raw []byte
	// ByteRange is the list of (offset, length) pairs covered by the
	// signature, flattened. Nil when absent or malformed.
	ByteRange []int64

	SignerName     string
	SigningTime    string // display-formatted, see FormatPDFDate
	RawSigningTime string // the /M entry as written
	Reason         string
	Location       string
	ContactInfo    string

	Filter    string
	SubFilter string
	// DocTimeStamp marks an ETSI.RFC3161 document-level timestamp, whose
	// container is a timestamp token rather than a detached CMS signature.
	DocTimeStamp bool

	field *Field
}

// Container extracts the signature container from the field's /V entry.
// It returns MissingSignatureValue when the field is unsigned or its
// signature dictionary has no /Contents. Optional metadata entries default
// to the empty string.
func (f *Field) Container() (*Container, error) {
	v := f.Value()
	if v.IsNull() {
		return nil, &MissingSignatureValue{Field: f.Name}
	}

	var raw string
	_ = guard(func() { raw = v.Key("Contents").RawString() })
	if raw == "" {
		return nil, &MissingSignatureValue{Field: f.Name}
	}

	c := &Container{
		Raw:   []byte(raw),
		field: f,
	}
	_ = guard(func() {
		c.SignerName = textString(v.Key("Name"))
		c.RawSigningTime = v.Key("M").Text()
		c.SigningTime = FormatPDFDate(c.RawSigningTime)
		c.Reason = textString(v.Key("Reason"))
		c.Location = textString(v.Key("Location"))
		c.ContactInfo = textString(v.Key("ContactInfo"))
		c.Filter = v.Key("Filter").Name()
		c.SubFilter = v.Key("SubFilter").Name()
		c.DocTimeStamp = c.SubFilter == "ETSI.RFC3161"
		c.ByteRange = byteRanges(v)
	})
	return c, nil
}

// Field returns the field the container was extracted from.
func (c *Container) Field() *Field {
	return c.field
}

func byteRanges(v pdflib.Value) []int64 {
	br := v.Key("ByteRange")
	if br.IsNull() || br.Len() == 0 || br.Len()%2 != 0 {
		return nil
	}
	ranges := make([]int64, 0, br.Len())
	for i := 0; i < br.Len(); i++ {
		ranges = append(ranges, br.Index(i).Int64())
	}
	return ranges
}

func textString(v pdflib.Value) string {
	var s string
	_ = guard(func() { s = v.Text() })
	return normalizeText(s)
}

// normalizeText repairs text strings whose producer wrote a Unicode BOM
// that the PDF string layer did not consume. UTF-8 BOMs are stripped and
// UTF-16 content (either byte order) is transformed to UTF-8.
func normalizeText(s string) string {
	switch {
	case strings.HasPrefix(s, "\xef\xbb\xbf"):
		return strings.TrimPrefix(s, "\xef\xbb\xbf")
	case strings.HasPrefix(s, "\xfe\xff"), strings.HasPrefix(s, "\xff\xfe"):
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.String(dec, s)
		if err != nil {
			return s
		}
		return out
	default:
		return s
	}
}
