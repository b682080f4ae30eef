package lru

import (
	"container/list"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is an access-ordered LRU. Put and Get both move an entry to the
// most-recently-used end. Put never evicts by itself: call TrimToMaxSize at
// a point where the evicted values are known to be no longer in use.
//
// The eviction hook runs after the internal lock is released, so it may
// safely call back into the cache.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	minSize int
	items   map[K]*list.Element
	lruList *list.List
	onEvict func(K, V)
}

// New creates a cache holding at most maxSize entries after a trim.
// onEvict may be nil.
func New[K comparable, V any](maxSize int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		maxSize: maxSize,
		items:   make(map[K]*list.Element),
		lruList: list.New(),
		onEvict: onEvict,
	}
}

// SetMinSize sets a floor below which trimming never evicts.
func (c *Cache[K, V]) SetMinSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minSize = n
}

func (c *Cache[K, V]) MaxSize() int {
	return c.maxSize
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.lruList.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// Touch promotes key to most-recently-used without returning it.
func (c *Cache[K, V]) Touch(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok {
		c.lruList.MoveToFront(elem)
	}
	return ok
}

func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		c.lruList.MoveToFront(elem)
		return
	}

	ent := &entry[K, V]{key: key, value: value}
	c.items[key] = c.lruList.PushFront(ent)
}

// Remove drops key without invoking the eviction hook.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(c.items, key)
	c.lruList.Remove(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// TrimToMaxSize evicts least-recently-used entries until the cache holds at
// most maxSize entries, or minSize if that is larger. It returns the number of
// evicted entries.
func (c *Cache[K, V]) TrimToMaxSize() int {
	c.mu.Lock()
	limit := max(c.maxSize, c.minSize)
	var evicted []*entry[K, V]
	for c.lruList.Len() > limit {
		oldest := c.lruList.Back()
		ent := oldest.Value.(*entry[K, V])
		delete(c.items, ent.key)
		c.lruList.Remove(oldest)
		evicted = append(evicted, ent)
	}
	c.mu.Unlock()

	c.evict(evicted)
	return len(evicted)
}

// UnloadAll evicts every entry, least-recently-used first.
func (c *Cache[K, V]) UnloadAll() int {
	c.mu.Lock()
	evicted := make([]*entry[K, V], 0, c.lruList.Len())
	for elem := c.lruList.Back(); elem != nil; elem = elem.Prev() {
		evicted = append(evicted, elem.Value.(*entry[K, V]))
	}
	c.items = make(map[K]*list.Element)
	c.lruList = list.New()
	c.mu.Unlock()

	c.evict(evicted)
	return len(evicted)
}

// Range calls fn for each entry from most to least recently used without
// changing the order. fn must not modify the cache.
func (c *Cache[K, V]) Range(fn func(K, V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*entry[K, V])
		if !fn(ent.key, ent.value) {
			return
		}
	}
}

func (c *Cache[K, V]) evict(evicted []*entry[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, ent := range evicted {
		c.onEvict(ent.key, ent.value)
	}
}
