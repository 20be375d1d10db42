package extract

import (
	"fmt"
	"strings"
	"time"
)

// displayLayout is the layout signature dates are rendered in for reports.
const displayLayout = "02/01/2006 15:04:05"

// ParsePDFDate parses a PDF date string (D:YYYYMMDDHHmmSS, optionally
// followed by a timezone suffix). Only the fixed 14-character prefix is
// interpreted; the timezone suffix is discarded. Many producers write
// truncated or creative suffixes, so interpreting the prefix is the only
// portable reading.
func ParsePDFDate(raw string) (time.Time, error) {
	s := strings.TrimPrefix(raw, "D:")
	if len(s) < 14 {
		return time.Time{}, fmt.Errorf("pdf date %q is too short", raw)
	}
	t, err := time.Parse("20060102150405", s[:14])
	if err != nil {
		return time.Time{}, fmt.Errorf("pdf date %q: %w", raw, err)
	}
	return t, nil
}

// FormatPDFDate renders a PDF date string as DD/MM/YYYY HH:MM:SS.
// Strings that do not carry the D: prefix or do not parse pass through
// unchanged rather than failing.
func FormatPDFDate(raw string) string {
	if !strings.HasPrefix(raw, "D:") {
		return raw
	}
	t, err := ParsePDFDate(raw)
	if err != nil {
		return raw
	}
	return t.Format(displayLayout)
}

// FormatTime renders a time in the same display form signature dates
// use.
func FormatTime(t time.Time) string {
	return t.Format(displayLayout)
}
