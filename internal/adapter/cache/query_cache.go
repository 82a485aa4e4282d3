// Package cache keeps recently computed query embeddings in memory.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	defaultMaxSize = 100
	defaultTTL     = 30 * time.Minute
)

// QueryCache is a size-bounded LRU of query embeddings whose entries
// expire after a TTL. Entries are keyed by model name and query text.
type QueryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	recency *list.List // front is most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	key    string
	vector []float32
	stored time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &QueryCache{
		items:   make(map[string]*list.Element, maxSize),
		recency: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func key(model, query string) string {
	return model + "\x00" + query
}

// Get returns the cached vector and marks it recently used. Expired
// entries are dropped on access.
func (c *QueryCache) Get(model, query string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key(model, query)]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.stored) > c.ttl {
		c.remove(el)
		return nil, false
	}
	c.recency.MoveToFront(el)
	return e.vector, true
}

// Put stores vector, evicting the least recently used entry when full.
func (c *QueryCache) Put(model, query string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(model, query)
	if el, ok := c.items[k]; ok {
		e := el.Value.(*entry)
		e.vector, e.stored = vector, c.now()
		c.recency.MoveToFront(el)
		return
	}
	for c.recency.Len() >= c.maxSize {
		c.remove(c.recency.Back())
	}
	c.items[k] = c.recency.PushFront(&entry{key: k, vector: vector, stored: c.now()})
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.maxSize)
	c.recency.Init()
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func (c *QueryCache) remove(el *list.Element) {
	c.recency.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
