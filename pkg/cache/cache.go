package cache

import (
	"container/list"
	"errors"
	"sync"
)

// ErrExists indicates the key is already present in the cache.
var ErrExists = errors.New("key already exists in cache")

// Cache is a weight-bounded LRU cache. When inserting an item would push the
// total weight past the budget, least recently used items are evicted first.
type Cache interface {
	// Insert adds a new item with the given weight. ErrExists is returned
	// if the key is already present.
	Insert(key string, value interface{}, weight int) error

	// Retrieve returns the item for the key, marking it as recently used.
	Retrieve(key string) (interface{}, bool)

	// Clear drops all items.
	Clear()
}

type entry struct {
	key    string
	value  interface{}
	weight int
}

type cache struct {
	mu     sync.Mutex
	order  *list.List
	lookup map[string]*list.Element
	weight int
	budget int
}

// NewCache returns a new LRU cache with the provided weight budget.
func NewCache(budget int) Cache {
	return &cache{
		order:  list.New(),
		lookup: make(map[string]*list.Element),
		budget: budget,
	}
}

func (c *cache) Insert(key string, value interface{}, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lookup[key]; ok {
		return ErrExists
	}

	elem := c.order.PushFront(&entry{key: key, value: value, weight: weight})
	c.lookup[key] = elem
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 1 {
		oldest := c.order.Back()
		c.evict(oldest)
	}

	return nil
}

func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.lookup[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(elem)
	return elem.Value.(*entry).value, true
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.lookup = make(map[string]*list.Element)
	c.weight = 0
}

func (c *cache) evict(elem *list.Element) {
	item := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.lookup, item.key)
	c.weight -= item.weight
}
