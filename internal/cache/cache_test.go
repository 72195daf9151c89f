package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCache implements the Cache interface for testing
type MockCache struct {
	data   map[string][]byte
	setErr error
	getErr error
	sets   int
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, &CacheError{Operation: "get", Key: key, Err: m.getErr}
	}
	if value, exists := m.data[key]; exists {
		return value, nil
	}
	return nil, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return &CacheError{Operation: "set", Key: key, Err: m.setErr}
	}
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCache) Exists(ctx context.Context, key string) (bool, error) {
	_, exists := m.data[key]
	return exists, nil
}

func (m *MockCache) Close() error {
	m.data = nil
	return nil
}

func (m *MockCache) Health(ctx context.Context) error {
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryCache(maxItems int) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryCache(maxItems)
	m.now = clock.now
	return m, clock
}

func TestMemoryCache_Basic(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(10)
	defer cache.Close()

	err := cache.Set(ctx, "key1", []byte("value1"), time.Hour)
	require.NoError(t, err)

	value, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	exists, err := cache.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, exists)

	// Missing keys are a miss, not an error
	value, err = cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(10)

	original := []byte("value")
	require.NoError(t, cache.Set(ctx, "key", original, time.Hour))
	original[0] = 'X'

	value, _ := cache.Get(ctx, "key")
	assert.Equal(t, []byte("value"), value)

	value[0] = 'Y'
	again, _ := cache.Get(ctx, "key")
	assert.Equal(t, []byte("value"), again)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestMemoryCache(10)

	require.NoError(t, cache.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, cache.Set(ctx, "forever", []byte("b"), 0))

	clock.advance(59 * time.Second)
	value, _ := cache.Get(ctx, "short")
	assert.Equal(t, []byte("a"), value)

	clock.advance(time.Second)
	value, _ = cache.Get(ctx, "short")
	assert.Nil(t, value, "entry must expire exactly at its TTL")

	clock.advance(24 * time.Hour)
	value, _ = cache.Get(ctx, "forever")
	assert.Equal(t, []byte("b"), value)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(2)

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), time.Hour))

	// Touch "a" so "b" becomes least recently used
	_, _ = cache.Get(ctx, "a")
	require.NoError(t, cache.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, cache.Size())
	b, _ := cache.Get(ctx, "b")
	assert.Nil(t, b)
	a, _ := cache.Get(ctx, "a")
	assert.Equal(t, []byte("1"), a)
}

func TestMemoryCache_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestMemoryCache(10)

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), time.Hour))
	clock.advance(2 * time.Minute)

	assert.Equal(t, 1, cache.CleanupExpired())
	assert.Equal(t, 1, cache.Size())
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(10)

	require.NoError(t, cache.Set(ctx, "key1", []byte("value1"), time.Hour))
	require.NoError(t, cache.Delete(ctx, "key1"))

	exists, err := cache.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMultiLevelCache(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through to L2 and populates L1", func(t *testing.T) {
		l2 := NewMockCache()
		l2.data["key"] = []byte("remote")
		c := WithL1(l2, 10, time.Minute)

		value, err := c.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, []byte("remote"), value)

		delete(l2.data, "key")
		value, err = c.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, []byte("remote"), value, "second read is served by L1")
	})

	t.Run("failed L2 write leaves no L1 entry", func(t *testing.T) {
		l2 := NewMockCache()
		c := WithL1(l2, 10, time.Minute)
		require.NoError(t, c.Set(ctx, "key", []byte("old"), time.Hour))

		l2.setErr = assert.AnError
		err := c.Set(ctx, "key", []byte("new"), time.Hour)
		require.Error(t, err)

		var cacheErr *CacheError
		assert.ErrorAs(t, err, &cacheErr)

		exists, _ := c.l1.Exists(ctx, "key")
		assert.False(t, exists)
	})

	t.Run("L2 read errors surface", func(t *testing.T) {
		l2 := NewMockCache()
		l2.getErr = assert.AnError
		c := WithL1(l2, 10, time.Minute)

		_, err := c.Get(ctx, "key")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("delete clears both levels", func(t *testing.T) {
		l2 := NewMockCache()
		c := WithL1(l2, 10, time.Minute)
		require.NoError(t, c.Set(ctx, "key", []byte("v"), time.Hour))
		require.NoError(t, c.Delete(ctx, "key"))

		exists, err := c.Exists(ctx, "key")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestNew(t *testing.T) {
	c, err := New(Options{Driver: DriverMemory, L1MaxItems: 5})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = New(Options{Driver: "memcached"})
	assert.Error(t, err)
}

func TestCacheError_Error(t *testing.T) {
	err := &CacheError{
		Operation: "get",
		Key:       "test-key",
		Err:       assert.AnError,
	}

	expectedMessage := "cache get failed for key 'test-key': assert.AnError general error for testing"
	assert.Equal(t, expectedMessage, err.Error())
}

func TestCacheError_Unwrap(t *testing.T) {
	err := &CacheError{
		Operation: "set",
		Key:       "test-key",
		Err:       assert.AnError,
	}

	assert.ErrorIs(t, err, assert.AnError)
}

func BenchmarkMemoryCache_Get(b *testing.B) {
	ctx := context.Background()
	cache := NewMemoryCache(1000)
	data := []byte("benchmark test data")

	for i := 0; i < 1000; i++ {
		_ = cache.Set(ctx, "key"+string(rune(i)), data, time.Hour)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.Get(ctx, "key"+string(rune(i%1000)))
	}
}
