package util

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// Md5ThenHex is a quick hasher, used for per-level checksums
func Md5ThenHex(value []byte) string {
	hasher := md5.New()
	hasher.Write(value)
	return hex.EncodeToString(hasher.Sum(nil))
}

// ContentUUID derives a stable UUID from the concatenated parts, e.g. the
// pixel buffers of every level of an image chain.
func ContentUUID(parts ...[]byte) uuid.UUID {
	hasher := md5.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	hash := hasher.Sum(nil)
	id, _ := uuid.FromBytes(hash[:16])
	return id
}
