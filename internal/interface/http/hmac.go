package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK SIGNATURE VERIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Webhook requests carry two headers: X-Timestamp (RFC 3339) and X-Signature
// ("sha256=<hex>"), where the digest is HMAC-SHA256 over "<timestamp>.<body>"
// with the shared secret. The timestamp is bounded by a maximum clock skew so
// captured requests cannot be replayed indefinitely.

var (
	// ErrBadTimestamp is returned for a missing or unparseable X-Timestamp.
	ErrBadTimestamp = errors.New("http: invalid X-Timestamp")

	// ErrTimestampSkew is returned when the timestamp is too far from now.
	ErrTimestampSkew = errors.New("http: timestamp skew too large")

	// ErrBadSignatureFormat is returned when X-Signature lacks the sha256= prefix.
	ErrBadSignatureFormat = errors.New("http: invalid X-Signature format")

	// ErrSignatureMismatch is returned when the digest does not match.
	ErrSignatureMismatch = errors.New("http: signature mismatch")
)

// verifyWebhookSignature validates the timestamp and HMAC of a raw webhook
// body.
func verifyWebhookSignature(secret string, maxSkew time.Duration, body []byte, timestamp, signature string, now time.Time) error {
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return ErrBadTimestamp
	}

	skew := now.Sub(ts.UTC())
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return ErrTimestampSkew
	}

	provided, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return ErrBadSignatureFormat
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrSignatureMismatch
	}
	return nil
}
