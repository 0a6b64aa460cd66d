// Package ids derives short, stable tokens from arbitrary input.
package ids

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"
)

// DefaultLength is the standard length for generated IDs.
const DefaultLength = 8

// MaxLength is the longest ID the digest can supply.
const MaxLength = 52

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generate returns a lowercase base32 ID of at most MaxLength characters
// derived from parts. Parts are hashed with a separator, so ("a:b", "c") and
// ("a", "b:c") produce different IDs.
func Generate(length int, parts ...string) string {
	if length <= 0 {
		return ""
	}
	digest := sha256.New()
	for _, part := range parts {
		digest.Write([]byte(part))
		digest.Write([]byte{0})
	}
	encoded := encoding.EncodeToString(digest.Sum(nil))
	return strings.ToLower(encoded[:min(length, len(encoded))])
}
