package pdfval

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ParseAnchorsPEM decodes trusted anchor certificates from PEM data.
// Non-certificate blocks are skipped; at least one certificate must be
// present.
func ParseAnchorsPEM(data []byte) ([]*x509.Certificate, error) {
	var anchors []*x509.Certificate
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("malformed anchor certificate: %w", err)
		}
		anchors = append(anchors, cert)
	}
	if len(anchors) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return anchors, nil
}

// LoadAnchors reads trusted anchors from one or more PEM files.
func LoadAnchors(paths ...string) ([]*x509.Certificate, error) {
	var anchors []*x509.Certificate
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read anchors: %w", err)
		}
		certs, err := ParseAnchorsPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		anchors = append(anchors, certs...)
	}
	return anchors, nil
}
