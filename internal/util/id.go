package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewAnchorID issues a permanent inline-comment anchor id. The "ic-" prefix
// is part of the external format and is rendered into document markup as-is.
func NewAnchorID() string {
	return "ic-" + uuid.NewString()
}
