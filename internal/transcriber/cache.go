package transcriber

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// cacheKey computes the deterministic fingerprint of file identity plus
// transcription parameters used to dedupe provider calls.
func cacheKey(file File, p Params) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%s|%s|%s",
		file.Name,
		file.Size,
		file.ModTime.UnixNano(),
		p.Language,
		p.Model,
		strconv.FormatFloat(p.Temperature, 'f', -1, 64),
	)
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	key     string
	value   *Result
	expires time.Time
}

// resultCache is a bounded LRU of provider results. It is a behavioral
// cache, not a correctness cache: provider results are assumed
// deterministic per identical input and params within process lifetime.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	if capacity < 1 {
		capacity = 1
	}
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached result and refreshes its recency.
func (c *resultCache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && time.Now().After(entry.expires) {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return entry.value, true
}

// Put inserts a result, evicting the least recently used entry past capacity.
func (c *resultCache) Put(key string, value *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.expires = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, value: value, expires: time.Now().Add(c.ttl)})
	c.items[key] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len reports the number of cached entries.
func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// sweep removes expired entries. Called from the client's background task.
func (c *resultCache) sweep() {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*cacheEntry)
		if now.After(entry.expires) {
			c.ll.Remove(el)
			delete(c.items, entry.key)
		}
		el = prev
	}
}
