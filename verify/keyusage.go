package verify

import (
	"crypto/x509"
)

// checkKeyUsage reports whether the signing certificate is fit for
// document signing. When the key usage extension is present it must
// assert Digital Signature or Content Commitment (non-repudiation).
// RFC 5280 leaves the extension optional and older issuance profiles
// omit it, so absence passes.
func checkKeyUsage(info *CertificateInfo) (bool, string) {
	if !info.HasKeyUsage {
		return true, ""
	}
	const signing = x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment
	if info.KeyUsage&signing == 0 {
		return false, "certificate does not have Digital Signature or Non-Repudiation key usage"
	}
	return true, ""
}

// checkExtKeyUsage enforces the caller's extended key usage policy. With
// no required usages configured, or when the certificate carries no EKU
// extension at all, the check passes.
func checkExtKeyUsage(info *CertificateInfo, required []x509.ExtKeyUsage) (bool, string) {
	if len(required) == 0 {
		return true, ""
	}
	if len(info.ExtKeyUsage) == 0 && len(info.UnknownExtKeyUsage) == 0 {
		return true, ""
	}
	for _, eku := range info.ExtKeyUsage {
		if eku == x509.ExtKeyUsageAny {
			return true, ""
		}
		for _, want := range required {
			if eku == want {
				return true, ""
			}
		}
	}
	return false, "certificate does not have a required Extended Key Usage"
}

// DocumentSigningEKUs lists the extended key usages commonly accepted on
// PDF signing certificates: Document Signing per RFC 9336, plus Email
// Protection and Client Authentication, which older issuance profiles
// used in its place.
func DocumentSigningEKUs() []x509.ExtKeyUsage {
	return []x509.ExtKeyUsage{
		x509.ExtKeyUsage(36), // id-kp-documentSigning (1.3.6.1.5.5.7.3.36)
		x509.ExtKeyUsageEmailProtection,
		x509.ExtKeyUsageClientAuth,
	}
}
