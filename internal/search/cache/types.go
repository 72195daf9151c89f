package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix namespaces search entries in the shared backend. Bump the
// version when the entry layout changes.
const KeyPrefix = "musicez:search:v1:"

// KeyParts are the inputs that identify a search result set. The freshness
// bypass flag is deliberately absent.
type KeyParts struct {
	Query     string
	Limit     int
	Threshold float64
	Enrich    bool
}

// Key derives the backend key for a normalized query. The threshold is
// encoded exactly; distinct thresholds never share an entry.
func Key(p KeyParts) string {
	raw := strings.Join([]string{
		p.Query,
		strconv.Itoa(p.Limit),
		strconv.FormatFloat(p.Threshold, 'g', -1, 64),
		strconv.FormatBool(p.Enrich),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// Entry is a stored result set with its freshness window
type Entry[T any] struct {
	Key       string    `json:"key"`
	Value     T         `json:"resultSet"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is stale at now
func (e *Entry[T]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Policy picks a TTL by result provenance
type Policy struct {
	// LocalTTL applies to entries built from catalog results only
	LocalTTL time.Duration
	// ExternalTTL applies as soon as any result came from the provider
	ExternalTTL time.Duration
}

// DefaultPolicy returns the standard freshness windows
func DefaultPolicy() Policy {
	return Policy{
		LocalTTL:    5 * time.Minute,
		ExternalTTL: time.Hour,
	}
}

// TTL returns the lifetime for an entry
func (p Policy) TTL(external bool) time.Duration {
	if external {
		return p.ExternalTTL
	}
	return p.LocalTTL
}
