package project

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a fixed 256-bit content hash.
type Digest [32]byte

// ZeroDigest is the digest of nothing at all. It is distinct from the
// sha256 of empty input on purpose: a snapshot that was never written and a
// snapshot of an empty set must compare equal.
var ZeroDigest Digest

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// Hex returns the lowercase hex form of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 8 hex characters, enough for artifact names.
func (d Digest) Short() string {
	return d.Hex()[:8]
}

// HashBytes digests a single byte slice.
func HashBytes(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// HashStrings digests a sequence of strings with NUL separators so that
// ("ab","c") and ("a","bc") hash differently. Order is the caller's job:
// pass a sorted slice when the result must not depend on insertion order.
// An empty sequence hashes to ZeroDigest.
func HashStrings(items []string) Digest {
	if len(items) == 0 {
		return ZeroDigest
	}
	h := sha256.New()
	for _, it := range items {
		_, _ = h.Write([]byte(it))
		_, _ = h.Write([]byte{0})
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Combine folds several digests into one: H(base || d1 || d2 ...).
// Order of deps must be deterministic.
func Combine(base Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(base[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
