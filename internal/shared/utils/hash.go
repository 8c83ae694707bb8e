package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// htmlKeyPrefix marks content keys derived from inline markup
const htmlKeyPrefix = "html:sha256:"

// Hasher computes content digests
type Hasher struct{}

// DefaultHasher returns the SHA-256 hasher
func DefaultHasher() *Hasher {
	return &Hasher{}
}

// Hash computes a hex digest of data
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString computes a hex digest of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// ContentKey returns the key a preload record is stored under for src.
// Remote sources are keyed by their address verbatim; inline markup is keyed
// by a digest of the markup and its base address.
func ContentKey(src types.Source) string {
	if !src.IsHTML() {
		return src.URL
	}
	var b strings.Builder
	b.WriteString(src.BaseURL)
	b.WriteByte(0)
	b.WriteString(src.HTML)
	return htmlKeyPrefix + DefaultHasher().HashString(b.String())
}

// IsMarkupKey reports whether key was derived from inline markup
func IsMarkupKey(key string) bool {
	return strings.HasPrefix(key, htmlKeyPrefix)
}
