package revocation

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPChecker fetches live revocation status from the OCSP responders
// and CRL distribution points named in the certificate. OCSP is tried
// first and needs the issuing certificate; without one the checker falls
// through to CRL downloads.
type HTTPChecker struct {
	Client  *http.Client
	Timeout time.Duration
}

func (h *HTTPChecker) Check(cert, issuer *x509.Certificate) (Status, error) {
	client := h.Client
	if client == nil {
		timeout := h.Timeout
		if timeout == 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	var lastErr error
	if issuer != nil && len(cert.OCSPServer) > 0 {
		status, err := h.checkOCSP(client, cert, issuer)
		if err == nil {
			return status, nil
		}
		lastErr = err
	}

	if len(cert.CRLDistributionPoints) > 0 {
		status, err := h.checkCRL(client, cert)
		if err == nil {
			return status, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return Unchecked("revocation sources unreachable"), lastErr
	}
	return Unchecked("certificate names no revocation source"), nil
}

func (h *HTTPChecker) checkOCSP(client *http.Client, cert, issuer *x509.Certificate) (Status, error) {
	req, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create OCSP request: %w", err)
	}

	var lastErr error
	for _, serverURL := range cert.OCSPServer {
		body, err := post(client, serverURL, "application/ocsp-request", req)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := ocsp.ParseResponse(body, issuer)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse OCSP response from %s: %w", serverURL, err)
			continue
		}

		switch resp.Status {
		case ocsp.Revoked:
			return Status{
				Checked: true,
				Revoked: true,
				Source:  SourceOCSP,
				Detail:  revokedDetail(resp.RevokedAt),
			}, nil
		case ocsp.Good:
			return Status{Checked: true, Source: SourceOCSP, Detail: "good"}, nil
		default:
			return Unchecked("OCSP responder does not know the certificate"), nil
		}
	}
	return Status{}, lastErr
}

func (h *HTTPChecker) checkCRL(client *http.Client, cert *x509.Certificate) (Status, error) {
	var lastErr error
	for _, crlURL := range cert.CRLDistributionPoints {
		body, err := get(client, crlURL)
		if err != nil {
			lastErr = err
			continue
		}

		crl, err := x509.ParseRevocationList(body)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse CRL from %s: %w", crlURL, err)
			continue
		}

		for _, entry := range crl.RevokedCertificateEntries {
			if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return Status{
					Checked: true,
					Revoked: true,
					Source:  SourceCRL,
					Detail:  revokedDetail(entry.RevocationTime),
				}, nil
			}
		}
		return Status{Checked: true, Source: SourceCRL, Detail: "good"}, nil
	}
	return Status{}, lastErr
}

func post(client *http.Client, url, contentType string, body []byte) ([]byte, error) {
	resp, err := client.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to contact %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func get(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
