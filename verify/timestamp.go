package verify

import (
	"bytes"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"

	"github.com/validbr/pdfval/extract"
)

// id-aa-timeStampToken, RFC 3161 appendix A.
var oidTimeStampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

// attributeTimestamp extracts the RFC 3161 token carried as an
// unauthenticated attribute of the signature, when present, and checks
// its message imprint against the signature value it covers. A container
// without the attribute yields (nil, nil).
func attributeTimestamp(p7 *pkcs7.PKCS7) (*timestamp.Timestamp, error) {
	for _, s := range p7.Signers {
		for _, attr := range s.UnauthenticatedAttributes {
			if !attr.Type.Equal(oidTimeStampToken) {
				continue
			}

			ts, err := timestamp.Parse(attr.Value.Bytes)
			if err != nil {
				return nil, fmt.Errorf("malformed timestamp token: %w", err)
			}
			if !ts.HashAlgorithm.Available() {
				return ts, fmt.Errorf("unsupported timestamp hash algorithm %v", ts.HashAlgorithm)
			}

			h := ts.HashAlgorithm.New()
			h.Write(s.EncryptedDigest)
			if !bytes.Equal(h.Sum(nil), ts.HashedMessage) {
				return ts, errors.New("timestamp imprint does not match signature value")
			}
			return ts, nil
		}
	}
	return nil, nil
}

// docTimeStamp handles containers whose SubFilter is ETSI.RFC3161: the
// container itself is the timestamp token and its message imprint must
// match the hash of the signed byte ranges.
func docTimeStamp(c *extract.Container) (*timestamp.Timestamp, error) {
	ts, err := timestamp.Parse(c.Raw)
	if err != nil {
		return nil, fmt.Errorf("malformed timestamp token: %w", err)
	}
	if !ts.HashAlgorithm.Available() {
		return ts, fmt.Errorf("unsupported timestamp hash algorithm %v", ts.HashAlgorithm)
	}

	signed, err := c.SignedBytes()
	if err != nil {
		return ts, err
	}

	h := ts.HashAlgorithm.New()
	h.Write(signed)
	if !bytes.Equal(h.Sum(nil), ts.HashedMessage) {
		return ts, errors.New("timestamp imprint does not match document bytes")
	}
	return ts, nil
}
