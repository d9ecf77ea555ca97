package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignSHA512 computes HMAC-SHA512 over payload and returns lower-case hex.
func SignSHA512(secret, payload string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignSHA256 computes HMAC-SHA256 over payload and returns lower-case hex.
func SignSHA256(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares two hex signatures in constant time. Hex case differences
// between vendors are tolerated; empty signatures never match.
func Equal(supplied, computed string) bool {
	supplied = strings.ToLower(strings.TrimSpace(supplied))
	computed = strings.ToLower(strings.TrimSpace(computed))
	if supplied == "" || computed == "" {
		return false
	}
	return hmac.Equal([]byte(supplied), []byte(computed))
}
