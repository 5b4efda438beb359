// Package md5hash provides the default speedcore.Hasher implementation.
// It exists purely as a reference/demo wiring for cmd/speedcore-probe: the
// engine's share package never imports crypto/md5 directly, preserving the
// "MD5 computation is an external collaborator" boundary from spec.md §1.
package md5hash

import (
	"crypto/md5"
	"encoding/hex"
)

// Hasher computes lowercase MD5 hex digests.
type Hasher struct{}

// HexDigest returns the lowercase MD5 hex digest of s.
func (Hasher) HexDigest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
