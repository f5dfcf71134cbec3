// Package cache stores responses of deterministic generations.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// Entry is a cached generation.
type Entry struct {
	Text     string    `json:"text"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache is a response store keyed by Key.
type Cache interface {
	// Get returns the entry and true if found. A miss is not an error.
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Close() error
}

// Key derives a deterministic cache key for a generation. Only requests that
// decode greedily should be cached, so sampling parameters other than the
// length budget are not part of the key.
func Key(modelID string, maxNewTokens int, formattedPrompt string) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(maxNewTokens))
	h.Write(n[:])
	h.Write([]byte(formattedPrompt))
	return fmt.Sprintf("assistant_cache:%x", h.Sum(nil)[:16])
}
