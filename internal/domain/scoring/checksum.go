package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

// Checksum computes the canonical fingerprint of a profile bundle: the bundle
// is serialized to JSON with object keys in sorted order and no insignificant
// whitespace, and the SHA-256 of those bytes is returned as lowercase hex.
//
// Two bundles with equal field values always produce the same checksum, no
// matter how they were assembled. The worker compares this value against the
// checksum stored with the last persisted result to skip redundant recomputes.
func Checksum(b profile.Bundle) (string, error) {
	canonical, err := canonicalJSON(b)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON produces the sorted-key compact encoding. The round trip
// through an untyped value is what enforces key ordering: encoding/json
// writes map keys in sorted order, whereas struct fields encode in
// declaration order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var untyped any
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return nil, err
	}
	return json.Marshal(untyped)
}
