package verify

import "fmt"

// CertificateNotFound indicates that no decodable certificate could be
// located in a signature container, neither by structured decoding nor by
// the byte-pattern fallback. The corresponding signature is reported
// invalid; sibling signatures are unaffected.
type CertificateNotFound struct {
	// Attempts counts the candidate offsets the pattern scanner tried.
	Attempts int
}

func (e *CertificateNotFound) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("no certificate found in signature container (%d candidate offsets tried)", e.Attempts)
	}
	return "no certificate found in signature container"
}
