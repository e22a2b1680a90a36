// Package signature authenticates webhook payloads with HMAC-SHA256 over the
// raw request body.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Compute returns the lowercase hex HMAC-SHA256 of rawBody under secret.
func Compute(rawBody, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether claimedHex is the HMAC-SHA256 of rawBody under
// secret. The comparison is constant-time and case-insensitive on hex digits;
// an absent, malformed, or wrong-length claimed signature is a mismatch, not
// an error.
func Verify(rawBody []byte, claimedHex string, secret []byte) bool {
	if claimedHex == "" {
		return false
	}

	claimed, err := hex.DecodeString(claimedHex)
	if err != nil {
		return false
	}
	if len(claimed) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(claimed, expected)
}
