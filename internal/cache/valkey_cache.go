package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// valkeyCache implements Cache interface using Valkey
type valkeyCache struct {
	client valkey.Client
}

// NewValkeyCache creates a new Valkey-backed cache
func NewValkeyCache(valkeyURL string) (Cache, error) {
	clientOption, err := valkey.ParseURL(valkeyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Valkey URL: %w", err)
	}

	client, err := valkey.NewClient(clientOption)
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	c := &valkeyCache{client: client}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return c, nil
}

// Get retrieves a value from Valkey
func (c *valkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	result := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := result.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, &CacheError{Operation: "get", Key: key, Err: err}
	}

	data, err := result.AsBytes()
	if err != nil {
		return nil, &CacheError{Operation: "get", Key: key, Err: err}
	}
	return data, nil
}

// Set stores a value in Valkey with expiration
func (c *valkeyCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	var cmd valkey.Completed
	if expiration > 0 {
		cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Ex(expiration).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	}

	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return &CacheError{Operation: "set", Key: key, Err: err}
	}
	return nil
}

// Delete removes a key from Valkey
func (c *valkeyCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error(); err != nil {
		return &CacheError{Operation: "delete", Key: key, Err: err}
	}
	return nil
}

// Exists checks if a key exists in Valkey
func (c *valkeyCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &CacheError{Operation: "exists", Key: key, Err: err}
	}
	return count > 0, nil
}

// Close closes the Valkey connection
func (c *valkeyCache) Close() error {
	c.client.Close()
	return nil
}

// Health checks Valkey health
func (c *valkeyCache) Health(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("valkey health check failed: %w", err)
	}
	return nil
}

// MultiLevelCache fronts a shared remote cache with an in-process LRU.
// L1 entries live at most l1TTL so instances converge on the remote value.
type MultiLevelCache struct {
	l1    *MemoryCache
	l2    Cache
	l1TTL time.Duration
}

// NewMultiLevelCache creates a Valkey cache with an L1 in front of it
func NewMultiLevelCache(valkeyURL string, l1MaxItems int, l1TTL time.Duration) (Cache, error) {
	l2, err := NewValkeyCache(valkeyURL)
	if err != nil {
		return nil, err
	}
	return WithL1(l2, l1MaxItems, l1TTL), nil
}

// WithL1 wraps any remote backend with an in-process L1
func WithL1(remote Cache, l1MaxItems int, l1TTL time.Duration) *MultiLevelCache {
	if l1TTL <= 0 {
		l1TTL = 30 * time.Second
	}
	return &MultiLevelCache{
		l1:    NewMemoryCache(l1MaxItems),
		l2:    remote,
		l1TTL: l1TTL,
	}
}

// Get retrieves from L1 first, then L2
func (c *MultiLevelCache) Get(ctx context.Context, key string) ([]byte, error) {
	if data, _ := c.l1.Get(ctx, key); data != nil {
		return data, nil
	}

	data, err := c.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if data != nil {
		_ = c.l1.Set(ctx, key, data, c.l1TTL)
	}
	return data, nil
}

// Set stores in L2 then L1
func (c *MultiLevelCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		// Never serve a value the shared cache rejected
		_ = c.l1.Delete(ctx, key)
		return err
	}

	l1Expiration := c.l1TTL
	if expiration > 0 && expiration < l1Expiration {
		l1Expiration = expiration
	}
	return c.l1.Set(ctx, key, value, l1Expiration)
}

// Delete removes from both levels
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)
	return c.l2.Delete(ctx, key)
}

// Exists checks both levels
func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := c.l1.Exists(ctx, key); ok {
		return true, nil
	}
	return c.l2.Exists(ctx, key)
}

// Close closes L2 connection
func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	return c.l2.Close()
}

// Health checks L2 health
func (c *MultiLevelCache) Health(ctx context.Context) error {
	return c.l2.Health(ctx)
}
