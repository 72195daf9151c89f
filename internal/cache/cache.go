package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache defines the interface for caching operations.
// Get returns nil, nil when the key does not exist.
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// Close closes the cache connection
	Close() error

	// Health checks cache health
	Health(ctx context.Context) error
}

// CacheError represents a cache operation error
type CacheError struct {
	Operation string
	Key       string
	Err       error
}

func (e *CacheError) Error() string {
	return "cache " + e.Operation + " failed for key '" + e.Key + "': " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Supported backend drivers
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selects and configures a backend
type Options struct {
	Driver    string
	ValkeyURL string
	RedisURL  string

	// L1MaxItems enables an in-process LRU in front of a remote backend when > 0
	L1MaxItems int
	L1TTL      time.Duration
}

// New builds the backend named by opts.Driver
func New(opts Options) (Cache, error) {
	switch opts.Driver {
	case DriverValkey, "":
		if opts.L1MaxItems > 0 {
			return NewMultiLevelCache(opts.ValkeyURL, opts.L1MaxItems, opts.L1TTL)
		}
		return NewValkeyCache(opts.ValkeyURL)
	case DriverRedis:
		remote, err := NewRedisCache(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		if opts.L1MaxItems > 0 {
			return WithL1(remote, opts.L1MaxItems, opts.L1TTL), nil
		}
		return remote, nil
	case DriverMemory:
		maxItems := opts.L1MaxItems
		if maxItems <= 0 {
			maxItems = 10000
		}
		return NewMemoryCache(maxItems), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}
