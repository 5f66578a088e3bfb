package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 24-character hex id for conversations, messages, and
// insights. IDs carry no ordering; creation order comes from timestamps.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
