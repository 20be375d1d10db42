package testpki

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/digitorus/pkcs7"

	"github.com/validbr/pdfval/revocation"
)

// Adobe revocation information archival attribute.
var oidRevocationInfoArchival = asn1.ObjectIdentifier{1, 2, 840, 113583, 1, 1, 8}

// id-aa-timeStampToken, RFC 3161 appendix A.
var oidTimeStampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

// DocumentSpec configures BuildSignedPDF.
type DocumentSpec struct {
	FieldName   string // form field name, default Signature1
	SignerName  string
	Reason      string
	Location    string
	ContactInfo string
	// SigningTime becomes the /M dictionary entry when set.
	SigningTime time.Time

	// SubFilter overrides the default adbe.pkcs7.detached.
	SubFilter string

	// Chain is embedded in the signature container after the signer.
	Chain []*x509.Certificate

	// Archival fills the revocation information archival attribute.
	// The attribute is always written; without material it stays empty,
	// as most signers leave it.
	Archival *revocation.InfoArchival

	// TSA stamps the signature value with an RFC 3161 token carried as
	// an unauthenticated attribute.
	TSA *TSA

	// Placeholder reserves space for the signature DER, default 8192.
	Placeholder int

	// OmitContents writes the signature dictionary without /Contents,
	// producing a signed field whose container cannot be extracted.
	OmitContents bool

	// AnnotsOnly drops the interactive form dictionary so the field is
	// reachable only through the page's annotation array.
	AnnotsOnly bool
}

func (s *DocumentSpec) applyDefaults() {
	if s.FieldName == "" {
		s.FieldName = "Signature1"
	}
	if s.Placeholder == 0 {
		s.Placeholder = 8192
	}
	if s.SubFilter == "" {
		s.SubFilter = "adbe.pkcs7.detached"
	}
}

// BuildSignedPDF synthesizes a one-page document carrying a single
// detached CMS signature over its byte ranges. The layout is the
// minimal classic-xref shape: catalog, page tree, one page, signature
// dictionary and a signature field doubling as a widget annotation.
func BuildSignedPDF(t *testing.T, key crypto.Signer, cert *x509.Certificate, spec DocumentSpec) []byte {
	spec.applyDefaults()

	w := newPDFWriter()

	acroForm := " /AcroForm << /Fields [5 0 R] /SigFlags 3 >>"
	if spec.AnnotsOnly {
		acroForm = ""
	}
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R"+acroForm+" >>")
	w.writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [5 0 R] >>")
	slot := w.writeSigDict(4, spec, 2)
	w.writeObj(5, fmt.Sprintf(
		"<< /FT /Sig /T (%s) /V 4 0 R /Type /Annot /Subtype /Widget /Rect [0 0 0 0] /P 3 0 R /F 132 >>",
		spec.FieldName))

	data := w.finish("1 0 R")
	if spec.OmitContents {
		return data
	}

	open, shut := slot.window()
	ranges := []int64{0, open, shut + 1, int64(len(data)) - (shut + 1)}
	patchByteRange(data, slot, ranges)
	signInto(t, data, ranges, slot, key, cert, spec)
	return data
}

// BuildTwoSignaturePDF synthesizes a document with two signature fields
// signed by the same key. With bothValid the second signature's byte
// ranges exclude the first one's contents window, so both verify. Without
// it the second signature covers the window the first one is written
// into afterwards, which breaks its digest: one valid and one invalid
// signature in the same document.
func BuildTwoSignaturePDF(t *testing.T, key crypto.Signer, cert *x509.Certificate, bothValid bool) []byte {
	specA := DocumentSpec{FieldName: "Signature1", SignerName: "First Signer"}
	specA.applyDefaults()
	specB := DocumentSpec{FieldName: "Signature2", SignerName: "Second Signer"}
	specB.applyDefaults()

	w := newPDFWriter()
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [5 0 R 7 0 R] /SigFlags 3 >> >>")
	w.writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [5 0 R 7 0 R] >>")
	slotA := w.writeSigDict(4, specA, 2)
	w.writeObj(5, "<< /FT /Sig /T (Signature1) /V 4 0 R /Type /Annot /Subtype /Widget /Rect [0 0 0 0] /P 3 0 R /F 132 >>")
	pairsB := 2
	if bothValid {
		pairsB = 3
	}
	slotB := w.writeSigDict(6, specB, pairsB)
	w.writeObj(7, "<< /FT /Sig /T (Signature2) /V 6 0 R /Type /Annot /Subtype /Widget /Rect [0 0 0 0] /P 3 0 R /F 132 >>")

	data := w.finish("1 0 R")
	total := int64(len(data))

	openA, shutA := slotA.window()
	openB, shutB := slotB.window()

	rangesA := []int64{0, openA, shutA + 1, total - (shutA + 1)}
	var rangesB []int64
	if bothValid {
		rangesB = []int64{0, openA, shutA + 1, openB - (shutA + 1), shutB + 1, total - (shutB + 1)}
	} else {
		rangesB = []int64{0, openB, shutB + 1, total - (shutB + 1)}
	}

	patchByteRange(data, slotA, rangesA)
	patchByteRange(data, slotB, rangesB)

	// The second field signs first: its view of the first contents
	// window decides whether it survives the fill below.
	signInto(t, data, rangesB, slotB, key, cert, specB)
	signInto(t, data, rangesA, slotA, key, cert, specA)
	return data
}

// BuildMixedSignaturePDF synthesizes a document with one properly
// signed field and one whose signature dictionary lacks /Contents.
func BuildMixedSignaturePDF(t *testing.T, key crypto.Signer, cert *x509.Certificate) []byte {
	spec := DocumentSpec{FieldName: "Signature1", SignerName: "First Signer"}
	spec.applyDefaults()
	empty := DocumentSpec{FieldName: "Signature2", OmitContents: true}
	empty.applyDefaults()

	w := newPDFWriter()
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [5 0 R 7 0 R] /SigFlags 3 >> >>")
	w.writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [5 0 R 7 0 R] >>")
	slot := w.writeSigDict(4, spec, 2)
	w.writeObj(5, "<< /FT /Sig /T (Signature1) /V 4 0 R /Type /Annot /Subtype /Widget /Rect [0 0 0 0] /P 3 0 R /F 132 >>")
	w.writeSigDict(6, empty, 2)
	w.writeObj(7, "<< /FT /Sig /T (Signature2) /V 6 0 R /Type /Annot /Subtype /Widget /Rect [0 0 0 0] /P 3 0 R /F 132 >>")

	data := w.finish("1 0 R")
	open, shut := slot.window()
	ranges := []int64{0, open, shut + 1, int64(len(data)) - (shut + 1)}
	patchByteRange(data, slot, ranges)
	signInto(t, data, ranges, slot, key, cert, spec)
	return data
}

// BuildDocTimeStampPDF synthesizes a document whose single signature
// field holds an ETSI.RFC3161 document timestamp: the contents window
// carries a bare token whose imprint covers the signed byte ranges.
func BuildDocTimeStampPDF(t *testing.T, tsa *TSA) []byte {
	spec := DocumentSpec{FieldName: "Timestamp1", SubFilter: "ETSI.RFC3161"}
	spec.applyDefaults()

	w := newPDFWriter()
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [5 0 R] /SigFlags 3 >> >>")
	w.writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [5 0 R] >>")
	slot := w.writeSigDict(4, spec, 2)
	w.writeObj(5, fmt.Sprintf(
		"<< /FT /Sig /T (%s) /V 4 0 R /Type /Annot /Subtype /Widget /Rect [0 0 0 0] /P 3 0 R /F 132 >>",
		spec.FieldName))

	data := w.finish("1 0 R")
	open, shut := slot.window()
	ranges := []int64{0, open, shut + 1, int64(len(data)) - (shut + 1)}
	patchByteRange(data, slot, ranges)

	var content []byte
	for i := 0; i < len(ranges); i += 2 {
		content = append(content, data[ranges[i]:ranges[i]+ranges[i+1]]...)
	}
	token := tsa.Token(content)
	if len(token) > slot.placeholder {
		Fail(t, "token of %d bytes exceeds the %d byte placeholder", len(token), slot.placeholder)
	}
	copy(data[slot.hexStart:], hex.EncodeToString(token))
	return data
}

// BuildPlainPDF synthesizes a one-page document with no interactive
// form at all.
func BuildPlainPDF(t *testing.T) []byte {
	w := newPDFWriter()
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	return w.finish("1 0 R")
}

// BuildUnsignedFieldPDF synthesizes a document whose signature field
// was never signed: the field exists but carries no /V value.
func BuildUnsignedFieldPDF(t *testing.T) []byte {
	w := newPDFWriter()
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R] /SigFlags 3 >> >>")
	w.writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R] >>")
	w.writeObj(4, "<< /FT /Sig /T (Signature1) /Type /Annot /Subtype /Widget /Rect [0 0 0 0] /P 3 0 R /F 132 >>")
	return w.finish("1 0 R")
}

// BuildMultiPagePDF synthesizes a document with the given number of
// empty pages.
func BuildMultiPagePDF(t *testing.T, pages int) []byte {
	w := newPDFWriter()
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	w.writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		w.writeObj(3+i, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}
	return w.finish("1 0 R")
}

// BuildMetadataPDF synthesizes a document carrying an information
// dictionary, for metadata extraction and scan tests.
func BuildMetadataPDF(t *testing.T, producer, creator string) []byte {
	w := newPDFWriter()
	w.writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	w.writeObj(4, fmt.Sprintf(
		"<< /Title (Relatorio Mensal) /Author (Setor Fiscal) /Producer (%s) /Creator (%s) /CreationDate (D:20240102030405Z) /Keywords (fiscal, assinatura) >>",
		producer, creator))
	return w.finishWithInfo("1 0 R", "4 0 R")
}

// pdfWriter assembles a classic cross-reference table document.
type pdfWriter struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDFWriter() *pdfWriter {
	w := &pdfWriter{offsets: make(map[int]int)}
	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	return w
}

func (w *pdfWriter) writeObj(num int, body string) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// sigSlot records where a signature dictionary's patchable windows sit
// in the assembled file.
type sigSlot struct {
	brStart     int
	brLen       int
	hexStart    int
	placeholder int
}

// window returns the offsets of the opening and closing angle brackets
// around the contents hex string.
func (s sigSlot) window() (open, shut int64) {
	return int64(s.hexStart - 1), int64(s.hexStart + s.placeholder*2)
}

// writeSigDict appends a signature dictionary with byte range and
// contents placeholders wide enough for the given number of range pairs.
func (w *pdfWriter) writeSigDict(num int, spec DocumentSpec, pairs int) sigSlot {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< /Type /Sig /Filter /Adobe.PPKLite /SubFilter /%s", num, spec.SubFilter)
	writeTextEntry(&w.buf, "Name", spec.SignerName)
	writeTextEntry(&w.buf, "Reason", spec.Reason)
	writeTextEntry(&w.buf, "Location", spec.Location)
	writeTextEntry(&w.buf, "ContactInfo", spec.ContactInfo)
	if !spec.SigningTime.IsZero() {
		fmt.Fprintf(&w.buf, " /M (D:%sZ)", spec.SigningTime.UTC().Format("20060102150405"))
	}

	var slot sigSlot
	if spec.OmitContents {
		w.buf.WriteString(" /ByteRange [0 0 0 0] >>\nendobj\n")
		return slot
	}

	placeholder := byteRangeSlot(pairs)
	w.buf.WriteString(" ")
	slot.brStart = w.buf.Len()
	slot.brLen = len(placeholder)
	w.buf.WriteString(placeholder)
	w.buf.WriteString(" /Contents <")
	slot.hexStart = w.buf.Len()
	slot.placeholder = spec.Placeholder
	w.buf.Write(bytes.Repeat([]byte("0"), spec.Placeholder*2))
	w.buf.WriteString("> >>\nendobj\n")
	return slot
}

func (w *pdfWriter) finish(root string) []byte {
	return w.finishWithInfo(root, "")
}

func (w *pdfWriter) finishWithInfo(root, info string) []byte {
	size := len(w.offsets) + 1
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", size)
	w.buf.WriteString("0000000000 65535 f\r\n")
	for i := 1; i < size; i++ {
		fmt.Fprintf(&w.buf, "%010d %05d n\r\n", w.offsets[i], 0)
	}
	trailer := fmt.Sprintf("/Size %d /Root %s", size, root)
	if info != "" {
		trailer += " /Info " + info
	}
	fmt.Fprintf(&w.buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return w.buf.Bytes()
}

// byteRangeSlot renders the fixed-width placeholder later replaced by
// the real byte range array.
func byteRangeSlot(pairs int) string {
	slot := "/ByteRange[0"
	for i := 0; i < pairs*2-1; i++ {
		slot += " **********"
	}
	return slot + "]"
}

// patchByteRange writes the final byte range array over its placeholder,
// padded with spaces to keep every offset in the file stable.
func patchByteRange(data []byte, slot sigSlot, ranges []int64) {
	s := "/ByteRange["
	for i, v := range ranges {
		if i > 0 {
			s += " "
		}
		s += strconv.FormatInt(v, 10)
	}
	s += "]"
	s += strings.Repeat(" ", slot.brLen-len(s))
	copy(data[slot.brStart:], s)
}

// signInto signs the bytes the ranges cover with a detached CMS
// signature and writes its DER into the contents window. The rest of
// the window keeps its zero padding, as real signers leave it.
func signInto(t *testing.T, data []byte, ranges []int64, slot sigSlot, key crypto.Signer, cert *x509.Certificate, spec DocumentSpec) {
	var content []byte
	for i := 0; i < len(ranges); i += 2 {
		content = append(content, data[ranges[i]:ranges[i]+ranges[i+1]]...)
	}

	archival := spec.Archival
	if archival == nil {
		archival = &revocation.InfoArchival{}
	}
	config := pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{{
			Type:  oidRevocationInfoArchival,
			Value: *archival,
		}},
	}

	signedData, err := pkcs7.NewSignedData(content)
	if err != nil {
		Fail(t, "failed to initialize signed data: %v", err)
	}
	signedData.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := signedData.AddSignerChain(cert, key, spec.Chain, config); err != nil {
		Fail(t, "failed to add signer: %v", err)
	}
	signedData.Detach()

	if spec.TSA != nil {
		inner := signedData.GetSignedData()
		token := spec.TSA.Token(inner.SignerInfos[0].EncryptedDigest)
		attr := pkcs7.Attribute{
			Type:  oidTimeStampToken,
			Value: asn1.RawValue{FullBytes: token},
		}
		if err := inner.SignerInfos[0].SetUnauthenticatedAttributes([]pkcs7.Attribute{attr}); err != nil {
			Fail(t, "failed to attach timestamp token: %v", err)
		}
	}

	der, err := signedData.Finish()
	if err != nil {
		Fail(t, "failed to finish signature: %v", err)
	}
	if len(der) > slot.placeholder {
		Fail(t, "signature of %d bytes exceeds the %d byte placeholder", len(der), slot.placeholder)
	}
	copy(data[slot.hexStart:], hex.EncodeToString(der))
}

// writeTextEntry appends a literal string dictionary entry, skipping
// empty values.
func writeTextEntry(buf *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, " /%s (%s)", key, value)
}
