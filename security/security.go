// Package security implements configuration authenticity checks (spec
// §4.C9): RSA-SHA256 signature verification against an embedded X.509
// certificate, and a byte-equal API-key check against the payload's
// declared application.
package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// DefaultCertificatePEM is the vendor-issued X.509 certificate every
// configuration payload is signed against. A certificate carries only
// a public key, so embedding it is not a secret disclosure; it is the
// trust anchor `NewVerifier` falls back to when the host supplies no
// certificate of its own.
const DefaultCertificatePEM = `-----BEGIN CERTIFICATE-----
MIIDWDCCAkACCQDR039HDUMyzTANBgkqhkiG9w0BAQUFADBuMQswCQYDVQQHEwJj
YTETMBEGA1UEChMKcm9sbG91dC5pbzERMA8GA1UECxMIc2VjdXJpdHkxFzAVBgNV
BAMTDnd3dy5yb2xsb3V0LmlvMR4wHAYJKoZIhvcNAQkBFg9leWFsQHJvbGxvdXQu
aW8wHhcNMTQwODE4MDkzNjAyWhcNMjQwODE1MDkzNjAyWjBuMQswCQYDVQQHEwJj
YTETMBEGA1UEChMKcm9sbG91dC5pbzERMA8GA1UECxMIc2VjdXJpdHkxFzAVBgNV
BAMTDnd3dy5yb2xsb3V0LmlvMR4wHAYJKoZIhvcNAQkBFg9leWFsQHJvbGxvdXQu
aW8wggEiMA0GCSqGSIb3DQEBAQUAA4IBDwAwggEKAoIBAQDq8GMRFLyaQVDEdcHl
Ym7NnGrAqhLP2E/27W21yTQein7r8FOT/7jJ0PLpcGLw/3zDT5wzIJ3OtFy4HWre
2hn7wmt+bI+bbS/9kKrmqkpjAj1+PwnB4lhEad27lolMCuz5purqi209k7q51IMd
fq0/Ot7P/Bmp+LBNs2F4jMsPYxZUUYkVTAmPqgnwxuWoJZan/OGNjtj9OGg8eOcO
fcyxC4GDR/Yail+kht4I/HHesSXVukqXntsbdgnXKFkX682TuFPc3pd8ly+6N6OS
WpbNV8UmEVZygnxWT3vxBT2TWvFexbW52KOFY91wIkjt+IPEMPJBPPDiN9J2nutt
vfMpAgMBAAEwDQYJKoZIhvcNAQEFBQADggEBAIXrD6YsIhZa6fYDAR8huP0V3BRw
MKjeLGLCXLzvuPaoQGDhn4RJNgz3leNcomIkV/AwneeS9BXgBAcEKjNeLD+nW58R
SRnAfxDT5cUtQgIeR6dFmEK05u+8j/cK3VO410xr0taNMbmJfEn07WjfCdcJS3hs
GJuVmEUC85KYznbIcafQMGklLYArXYVnR3XKqzxcLohSPX99weujH5wt78Zy3pXx
uYCDETwhgcCYCQaZz7mpvtSOub3JQT+Ir5cBSdyI1oPI2dIamUL5+ntTyll/1rbY
j83qREw8PKA9Q0KIIgfpggy19TS9zknwOLz44wRdLyT2tFoaiRqHvm6JKaA=
-----END CERTIFICATE-----
`

// Verifier checks a configuration payload's signature against a fixed
// certificate. Constructed once at setup and reused for every fetch.
type Verifier struct {
	publicKey *rsa.PublicKey

	// disabled bypasses verification entirely; intended for development
	// only (spec §4.C9 "must log a warning on use"). The warning is the
	// caller's (rox client's) responsibility, since Verifier has no
	// logger dependency.
	disabled bool
}

// NewVerifier parses a PEM-encoded X.509 certificate and returns a
// Verifier that checks signatures against its embedded RSA public key.
// An empty certPEM falls back to DefaultCertificatePEM.
func NewVerifier(certPEM []byte) (*Verifier, error) {
	if len(certPEM) == 0 {
		certPEM = []byte(DefaultCertificatePEM)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("security: no PEM block found in certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("security: parse certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("security: certificate does not carry an RSA public key")
	}
	return &Verifier{publicKey: pub}, nil
}

// NewDisabledVerifier returns a Verifier whose Verify always succeeds,
// for `disable_signature_verification` development mode.
func NewDisabledVerifier() *Verifier {
	return &Verifier{disabled: true}
}

// Disabled reports whether this Verifier bypasses checking.
func (v *Verifier) Disabled() bool {
	return v == nil || v.disabled
}

// Verify checks signatureB64 (base64-encoded RSA-SHA256 signature) over
// payload. A disabled Verifier always accepts.
func (v *Verifier) Verify(payload []byte, signatureB64 string) error {
	if v.Disabled() {
		return nil
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("security: signature is not valid base64: %w", err)
	}

	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("security: signature verification failed: %w", err)
	}
	return nil
}

// CheckAPIKey reports whether application (the payload's declared
// `application` field) matches apiKey byte-for-byte (spec §4.C9).
func CheckAPIKey(apiKey, application string) bool {
	return subtle.ConstantTimeCompare([]byte(apiKey), []byte(application)) == 1
}
