package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

const (
	SignatureHeader      = "x-webhook-signature"
	TimestampHeader      = "x-webhook-timestamp"
	VersionHeader        = "x-webhook-version"
	IdempotencyKeyHeader = "x-idempotency-key"
)

// Sign returns the base64 HMAC-SHA256 of "{timestamp}.{body}", or of body
// alone when timestamp is empty.
func Sign(rawBody []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	if timestamp != "" {
		mac.Write([]byte(timestamp))
		mac.Write([]byte("."))
	}
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches rawBody. rawBody must be the
// exact bytes received; a re-encoded JSON body will not verify.
func Verify(signature string, rawBody []byte, secret, timestamp string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(rawBody, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
