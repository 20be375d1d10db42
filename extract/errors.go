package extract

import "fmt"

// StructuralError indicates that the document itself could not be parsed
// as a PDF (missing header, unreadable trailer). It is fatal for the
// document it was raised on; other documents are unaffected.
type StructuralError struct {
	Msg string
	Err error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// MissingSignatureValue indicates a signature field whose /V entry is
// absent or lacks /Contents. The field is unsigned, not broken; callers
// report it and continue with sibling fields.
type MissingSignatureValue struct {
	Field string
}

func (e *MissingSignatureValue) Error() string {
	if e.Field == "" {
		return "signature field has no signature value"
	}
	return fmt.Sprintf("signature field %q has no signature value", e.Field)
}
