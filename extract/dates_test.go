package extract_test

import (
	"testing"
	"time"

	"github.com/validbr/pdfval/extract"
)

func TestParsePDFDate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{
			name: "utc suffix",
			raw:  "D:20240102030405Z",
			want: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name: "timezone offset suffix",
			raw:  "D:20231130235959-03'00'",
			want: time.Date(2023, 11, 30, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "no prefix",
			raw:  "20240102030405",
			want: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:    "truncated",
			raw:     "D:2024",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "month out of range",
			raw:     "D:20241302030405Z",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.ParsePDFDate(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePDFDate(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePDFDate(%q) failed: %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParsePDFDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatPDFDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "utc suffix",
			raw:  "D:20240102030405Z",
			want: "02/01/2024 03:04:05",
		},
		{
			name: "no prefix passes through",
			raw:  "yesterday",
			want: "yesterday",
		},
		{
			name: "unparseable passes through",
			raw:  "D:notadate",
			want: "D:notadate",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.FormatPDFDate(tt.raw); got != tt.want {
				t.Errorf("FormatPDFDate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	at := time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)
	if got := extract.FormatTime(at); got != "15/06/2025 18:30:00" {
		t.Errorf("FormatTime = %q", got)
	}
}
