package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const signaturePrefix = "sha256="

// ErrBadSignatureFormat is returned when the signature header isn't
// "sha256=<hex>" or the hex fails to parse.
var ErrBadSignatureFormat = errors.New("malformed webhook signature")

// VerifySignature checks an "X-Hub-Signature-256" header against body
// using secret, per spec.md §4.5: hex decoding is case-insensitive, any
// parse failure is a rejection, and the comparison is constant-time.
func VerifySignature(secret, header string, body []byte) (bool, error) {
	if len(secret) == 0 {
		// Empty configured secret disables verification (development
		// mode only), per spec.md §4.3.
		return true, nil
	}
	lower := strings.ToLower(header)
	if !strings.HasPrefix(lower, signaturePrefix) {
		return false, ErrBadSignatureFormat
	}
	sig := strings.TrimPrefix(lower, signaturePrefix)
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false, ErrBadSignatureFormat
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := mac.Sum(nil)
	return hmac.Equal(got, want), nil
}
