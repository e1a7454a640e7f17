// Package cache keeps compiled templates in a bounded LRU.
//
// Compiling a template walks the whole document and builds every predicate
// and operand, so hosts that map many records with the same template
// document should compile it once. The cache is optional; nothing in the
// engine depends on it.
//
// # Example
//
//	c := cache.New(128)
//	tpl, err := c.GetOrCompile(cache.Key("json", doc), func() (*types.Template, error) {
//	    return parser.CompileJSON(doc)
//	})
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/sandrolain/gomapper/pkg/types"
)

// DefaultCapacity is used when New receives a non-positive capacity.
const DefaultCapacity = 256

type entry struct {
	key string
	tpl *types.Template
}

// Stats counts cache traffic since creation or the last Clear.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is an LRU of compiled templates, safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element

	hits, misses, evictions atomic.Uint64
}

// New creates a cache holding at most capacity templates.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Key derives a cache key from a template document and its format name
// ("json", "yaml", ...). Equal documents in different formats get
// different keys.
func Key(format string, doc []byte) string {
	h := sha256.New()
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write(doc)
	return format + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the template stored under key and marks it most recently
// used.
func (c *Cache) Get(key string) (*types.Template, bool) {
	c.mu.RLock()
	el, ok := c.items[key]
	front := ok && c.ll.Front() == el
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if !front {
		c.mu.Lock()
		el, ok = c.items[key]
		if ok {
			c.ll.MoveToFront(el)
		}
		c.mu.Unlock()
		if !ok {
			c.misses.Add(1)
			return nil, false
		}
	}
	c.hits.Add(1)
	return el.Value.(*entry).tpl, true
}

// Set stores tpl under key, evicting the least recently used template when
// the cache is full.
func (c *Cache) Set(key string, tpl *types.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).tpl = tpl
		c.ll.MoveToFront(el)
		return
	}
	for c.ll.Len() >= c.capacity {
		c.evictLocked()
	}
	c.items[key] = c.ll.PushFront(&entry{key: key, tpl: tpl})
}

// GetOrCompile returns the cached template for key or compiles and stores
// it. Compilation errors are returned and not cached.
func (c *Cache) GetOrCompile(key string, compile func() (*types.Template, error)) (*types.Template, error) {
	if tpl, ok := c.Get(key); ok {
		return tpl, nil
	}
	tpl, err := compile()
	if err != nil {
		return nil, err
	}
	c.Set(key, tpl)
	return tpl, nil
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Capacity returns the maximum number of cached templates.
func (c *Cache) Capacity() int { return c.capacity }

// Stats returns the traffic counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Invalidate drops key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Clear drops every template and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// evictLocked must be called with c.mu held for writing.
func (c *Cache) evictLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
	c.evictions.Add(1)
}
