package tdom

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/sambeau/hyper/pkg/hyper/nodes"
	"github.com/sambeau/hyper/pkg/hyper/tstring"
)

// DefaultCacheSize bounds the process-wide parse cache.
const DefaultCacheSize = 512

// Cache memoizes parse trees by the literal chunks of a template. Parses of
// the same key that race are single-flighted: one goroutine parses and the
// rest wait for its result.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	waits   map[string]*sync.WaitGroup
}

type cacheEntry struct {
	key  string
	tree nodes.Node
}

// NewCache returns a cache holding at most max trees. A max of zero or less
// disables caching.
func NewCache(max int) *Cache {
	return &Cache{
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		waits:   make(map[string]*sync.WaitGroup),
	}
}

var defaultCache atomic.Pointer[Cache]

func init() {
	defaultCache.Store(NewCache(DefaultCacheSize))
}

// SetCacheSize replaces the process-wide cache with an empty one of the
// given size.
func SetCacheSize(max int) {
	defaultCache.Store(NewCache(max))
}

// DefaultCache returns the process-wide cache.
func DefaultCache() *Cache {
	return defaultCache.Load()
}

// Parse parses t using the process-wide cache.
func Parse(t *tstring.Template) (nodes.Node, error) {
	return defaultCache.Load().Parse(t)
}

// Parse returns the tree for t, parsing it at most once per distinct
// sequence of literal chunks. Trees are shared and must not be modified.
func (c *Cache) Parse(t *tstring.Template) (nodes.Node, error) {
	if c.max <= 0 {
		return ParseUncached(t)
	}
	key := t.Key()
	tree, ok := c.get(key)
	if !ok {
		var err error
		tree, err = parse(t)
		if err == nil {
			c.add(key, tree)
		}
		c.done(key)
		if err != nil {
			return nil, err
		}
	}
	if err := checkComponents(tree, t); err != nil {
		return nil, err
	}
	return tree, nil
}

// Len reports the number of cached trees.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// get returns a cached tree and true. When the tree is missing it returns
// false, and the caller must call done once it has finished parsing.
func (c *Cache) get(key string) (nodes.Node, bool) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return el.Value.(*cacheEntry).tree, true
	}
	if wait, ok := c.waits[key]; ok {
		c.mu.Unlock()
		wait.Wait()
		return c.get(key)
	}
	wait := &sync.WaitGroup{}
	wait.Add(1)
	c.waits[key] = wait
	c.mu.Unlock()
	return nil, false
}

func (c *Cache) add(key string, tree nodes.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, tree: tree})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *Cache) done(key string) {
	c.mu.Lock()
	c.waits[key].Done()
	delete(c.waits, key)
	c.mu.Unlock()
}
