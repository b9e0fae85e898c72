// Package webhook receives calendar provider events and reconciles them
// into lead state.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"fastlead_backend/platform/apperr"
)

// VerifySignature checks the HMAC-SHA256 hex signature of the raw request
// body against the shared secret. The comparison is constant time.
func VerifySignature(secret string, body []byte, signature string) error {
	if signature == "" {
		return apperr.Authentication("missing webhook signature")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperr.Authentication("webhook signature mismatch")
	}
	return nil
}
