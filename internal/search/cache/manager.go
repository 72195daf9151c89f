package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"musicez/internal/cache"
	"musicez/internal/metrics"
)

// Store keeps search result sets in a key-value backend. Backend failures
// never reach the caller: a failed read is a miss and a failed write is
// logged and dropped.
type Store[T any] struct {
	backend cache.Cache
	policy  Policy
	now     func() time.Time
}

// NewStore creates a store over backend. A nil backend disables caching.
func NewStore[T any](backend cache.Cache, policy Policy) *Store[T] {
	return &Store[T]{
		backend: backend,
		policy:  policy,
		now:     time.Now,
	}
}

// Get returns the live entry for key, if any
func (s *Store[T]) Get(ctx context.Context, key string) (*Entry[T], bool) {
	if s == nil || s.backend == nil {
		return nil, false
	}

	data, err := s.backend.Get(ctx, key)
	if err != nil {
		slog.Warn("Search cache read failed, treating as miss", "key", key, "error", err)
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if data == nil {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("Discarding undecodable search cache entry", "key", key, "error", err)
		metrics.CacheErrorsTotal.WithLabelValues("decode").Inc()
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	// Backends expire on their own; this guards against clock skew and
	// backends without native TTLs
	if entry.Key != key || entry.Expired(s.now()) {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	metrics.CacheHitsTotal.Inc()
	return &entry, true
}

// Put stores value under key. external selects the longer TTL.
func (s *Store[T]) Put(ctx context.Context, key string, value T, external bool) {
	if s == nil || s.backend == nil {
		return
	}

	ttl := s.policy.TTL(external)
	if ttl <= 0 {
		return
	}

	now := s.now()
	entry := Entry[T]{
		Key:       key,
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to encode search cache entry", "key", key, "error", err)
		metrics.CacheErrorsTotal.WithLabelValues("encode").Inc()
		return
	}

	if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		slog.Warn("Search cache write failed", "key", key, "error", err)
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
	}
}

// Policy returns the TTL policy in effect
func (s *Store[T]) Policy() Policy {
	return s.policy
}
