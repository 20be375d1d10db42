package pdfval_test

import (
	"bytes"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/validbr/pdfval"
	"github.com/validbr/pdfval/internal/testpki"
)

func TestParseAnchorsPEM(t *testing.T) {
	a := testpki.NewAuthority(t)

	anchors, err := pdfval.ParseAnchorsPEM(a.CertPEM())
	if err != nil {
		t.Fatalf("ParseAnchorsPEM: %v", err)
	}
	if len(anchors) != 1 {
		t.Fatalf("got %d anchors, want 1", len(anchors))
	}
	if !bytes.Equal(anchors[0].Raw, a.Cert.Raw) {
		t.Error("parsed anchor differs from the authority certificate")
	}
}

func TestParseAnchorsPEMBundle(t *testing.T) {
	a := testpki.NewAuthority(t)
	b := testpki.NewAuthority(t)

	bundle := append(a.CertPEM(), b.CertPEM()...)
	anchors, err := pdfval.ParseAnchorsPEM(bundle)
	if err != nil {
		t.Fatalf("ParseAnchorsPEM: %v", err)
	}
	if len(anchors) != 2 {
		t.Errorf("got %d anchors, want 2", len(anchors))
	}
}

func TestParseAnchorsPEMSkipsOtherBlocks(t *testing.T) {
	a := testpki.NewAuthority(t)

	var buf bytes.Buffer
	_ = pem.Encode(&buf, &pem.Block{Type: "EC PARAMETERS", Bytes: []byte{0x05, 0x00}})
	buf.Write(a.CertPEM())

	anchors, err := pdfval.ParseAnchorsPEM(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseAnchorsPEM: %v", err)
	}
	if len(anchors) != 1 {
		t.Errorf("got %d anchors, want 1", len(anchors))
	}
}

func TestParseAnchorsPEMNoCertificates(t *testing.T) {
	_, err := pdfval.ParseAnchorsPEM([]byte("plain text, no PEM blocks"))
	if err == nil || !strings.Contains(err.Error(), "no certificates found") {
		t.Errorf("err = %v, want no certificates error", err)
	}
}

func TestParseAnchorsPEMMalformedCertificate(t *testing.T) {
	var buf bytes.Buffer
	_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: []byte("not DER")})

	_, err := pdfval.ParseAnchorsPEM(buf.Bytes())
	if err == nil || !strings.Contains(err.Error(), "malformed anchor certificate") {
		t.Errorf("err = %v, want malformed certificate error", err)
	}
}

func TestLoadAnchors(t *testing.T) {
	a := testpki.NewAuthority(t)
	b := testpki.NewAuthority(t)
	dir := t.TempDir()

	pathA := filepath.Join(dir, "ac-raiz.pem")
	pathB := filepath.Join(dir, "ac-intermediaria.pem")
	if err := os.WriteFile(pathA, a.CertPEM(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(pathB, b.CertPEM(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	anchors, err := pdfval.LoadAnchors(pathA, pathB)
	if err != nil {
		t.Fatalf("LoadAnchors: %v", err)
	}
	if len(anchors) != 2 {
		t.Errorf("got %d anchors, want 2", len(anchors))
	}
}

func TestLoadAnchorsMissingFile(t *testing.T) {
	_, err := pdfval.LoadAnchors(filepath.Join(t.TempDir(), "nao-existe.pem"))
	if err == nil || !strings.Contains(err.Error(), "failed to read anchors") {
		t.Errorf("err = %v, want read failure", err)
	}
}

func TestLoadAnchorsBadContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vazio.pem")
	if err := os.WriteFile(path, []byte("nothing here"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := pdfval.LoadAnchors(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("err = %v, want error naming %s", err, path)
	}
}
