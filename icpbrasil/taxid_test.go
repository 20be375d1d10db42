package icpbrasil_test

import (
	"crypto/x509"
	"testing"

	"github.com/validbr/pdfval/icpbrasil"
	"github.com/validbr/pdfval/verify"
)

func certWith(extensions map[string][]byte, subjectDN string) *verify.CertificateInfo {
	return &verify.CertificateInfo{
		Certificate: &x509.Certificate{},
		SubjectDN:   subjectDN,
		Extensions:  extensions,
	}
}

func TestExtractCPFFromSubjectDataExtension(t *testing.T) {
	// The extension value starts with the eleven CPF digits; issuers
	// append further holder data after them.
	info := certWith(map[string][]byte{
		icpbrasil.OIDPersonData: []byte("12345678909RG1234567SSPSP"),
	}, "CN=Maria Souza")

	if got := icpbrasil.ExtractCPF(info); got != "123.456.789-09" {
		t.Errorf("ExtractCPF = %q", got)
	}
}

func TestExtractCPFFromSubjectDN(t *testing.T) {
	tests := []struct {
		name      string
		subjectDN string
		want      string
	}{
		{
			name:      "separated by colon",
			subjectDN: "CN=Fulano de Tal,OU=CPF:12345678909,C=BR",
			want:      "123.456.789-09",
		},
		{
			name:      "separated by space",
			subjectDN: "CN=Fulano de Tal CPF 12345678909,C=BR",
			want:      "123.456.789-09",
		},
		{
			name:      "already formatted",
			subjectDN: "CN=Fulano,OU=CPF: 111.444.777-35,C=BR",
			want:      "111.444.777-35",
		},
		{
			name:      "absent",
			subjectDN: "CN=Fulano de Tal,C=BR",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := certWith(map[string][]byte{}, tt.subjectDN)
			if got := icpbrasil.ExtractCPF(info); got != tt.want {
				t.Errorf("ExtractCPF = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractCPFPrecedence(t *testing.T) {
	// The subject data extension wins over a conflicting subject DN.
	info := certWith(map[string][]byte{
		icpbrasil.OIDPersonData: []byte("11144477735"),
	}, "CN=Fulano,OU=CPF:99999999999,C=BR")

	if got := icpbrasil.ExtractCPF(info); got != "111.444.777-35" {
		t.Errorf("ExtractCPF = %q", got)
	}
}

func TestExtractCNPJFromSubjectDataExtension(t *testing.T) {
	info := certWith(map[string][]byte{
		icpbrasil.OIDCompanyData: []byte("12345678000195"),
	}, "CN=Empresa Exemplo LTDA")

	if got := icpbrasil.ExtractCNPJ(info); got != "12.345.678/0001-95" {
		t.Errorf("ExtractCNPJ = %q", got)
	}
}

func TestExtractCNPJFromSubjectDN(t *testing.T) {
	info := certWith(map[string][]byte{},
		"CN=Empresa Exemplo LTDA,OU=CNPJ:12345678000195,C=BR")

	if got := icpbrasil.ExtractCNPJ(info); got != "12.345.678/0001-95" {
		t.Errorf("ExtractCNPJ = %q", got)
	}
}

func TestExtractTruncatedExtension(t *testing.T) {
	// Fewer bytes than a CPF needs: extraction degrades to the other
	// sources instead of slicing out of range.
	info := certWith(map[string][]byte{
		icpbrasil.OIDPersonData: []byte("123"),
	}, "CN=Fulano de Tal,C=BR")

	if got := icpbrasil.ExtractCPF(info); got != "" {
		t.Errorf("ExtractCPF = %q, want empty", got)
	}
}

func TestFormatCPF(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12345678909", "123.456.789-09"},
		{"123.456.789-09", "123.456.789-09"},
		{"123", "123"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := icpbrasil.FormatCPF(tt.in); got != tt.want {
			t.Errorf("FormatCPF(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatCNPJ(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12345678000195", "12.345.678/0001-95"},
		{"12.345.678/0001-95", "12.345.678/0001-95"},
		{"1234", "1234"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := icpbrasil.FormatCNPJ(tt.in); got != tt.want {
			t.Errorf("FormatCNPJ(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
