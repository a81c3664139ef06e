package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// VerifyPaystackSignature checks the x-paystack-signature header: an
// HMAC-SHA512 hex digest of the exact raw body under the webhook secret.
func VerifyPaystackSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// VerifyStripeSignature checks the Stripe-Signature header: an HMAC-SHA256
// hex digest of the exact raw body under the shared webhook secret.
func VerifyStripeSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}
