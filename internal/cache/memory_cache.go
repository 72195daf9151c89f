package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache implements an in-process LRU cache with per-entry expiry
type MemoryCache struct {
	maxItems int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	now      func() time.Time
}

type memoryItem struct {
	key       string
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCache creates a new in-memory LRU cache
func NewMemoryCache(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1
	}
	return &MemoryCache{
		maxItems: maxItems,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns a copy of the stored value
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, found := m.items[key]
	if !found {
		return nil, nil
	}

	item := elem.Value.(*memoryItem)
	if m.expired(item) {
		m.removeElement(elem)
		return nil, nil
	}

	m.lru.MoveToFront(elem)
	return cloneBytes(item.data), nil
}

// Set stores a copy of value
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = m.now().Add(expiration)
	}

	if elem, found := m.items[key]; found {
		item := elem.Value.(*memoryItem)
		item.data = cloneBytes(value)
		item.expiresAt = expiresAt
		m.lru.MoveToFront(elem)
		return nil
	}

	elem := m.lru.PushFront(&memoryItem{
		key:       key,
		data:      cloneBytes(value),
		expiresAt: expiresAt,
	})
	m.items[key] = elem

	// Evict oldest items if over capacity
	for m.lru.Len() > m.maxItems {
		if oldest := m.lru.Back(); oldest != nil {
			m.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes a key from the cache
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, found := m.items[key]; found {
		m.removeElement(elem)
	}
	return nil
}

// Exists reports whether an unexpired entry is stored under key
func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	elem, found := m.items[key]
	return found && !m.expired(elem.Value.(*memoryItem)), nil
}

// Close drops all entries
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.lru = list.New()
	return nil
}

func (m *MemoryCache) Health(context.Context) error {
	return nil
}

// Size returns the current number of items in the cache
func (m *MemoryCache) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// CleanupExpired removes all expired items from the cache
func (m *MemoryCache) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, elem := range m.items {
		if m.expired(elem.Value.(*memoryItem)) {
			m.removeElement(elem)
			removed++
		}
	}
	return removed
}

func (m *MemoryCache) expired(item *memoryItem) bool {
	return !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt)
}

// removeElement removes an element from both the map and list (caller holds mu)
func (m *MemoryCache) removeElement(elem *list.Element) {
	item := elem.Value.(*memoryItem)
	delete(m.items, item.key)
	m.lru.Remove(elem)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
