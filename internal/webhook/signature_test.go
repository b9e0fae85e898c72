package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"triggerEvent":"BOOKING_CREATED"}`)

	if err := VerifySignature(secret, body, sign(secret, body)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"triggerEvent":"BOOKING_CREATED"}`)
	signature := sign(secret, body)

	tampered := []byte(`{"triggerEvent":"BOOKING_CANCELLED"}`)
	if err := VerifySignature(secret, tampered, signature); err == nil {
		t.Fatal("tampered body must be rejected")
	}
	if err := VerifySignature("other-secret", body, signature); err == nil {
		t.Fatal("wrong secret must be rejected")
	}
	if err := VerifySignature(secret, body, ""); err == nil {
		t.Fatal("missing signature must be rejected")
	}
}
