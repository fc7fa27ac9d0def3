package stats

import (
	"container/list"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// QueryCache is an LRU of stats responses with a time-to-live.
type QueryCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	key       string
	resp      *Response
	timestamp time.Time
	element   *list.Element
}

// NewQueryCache returns a cache holding at most capacity responses. A
// capacity of zero or less disables caching.
func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

func (qc *QueryCache) Get(level Level, p Params) (*Response, bool) {
	if qc == nil || qc.capacity <= 0 {
		return nil, false
	}
	qc.mu.Lock()
	defer qc.mu.Unlock()

	key := cacheKey(level, p)
	entry, ok := qc.cache[key]
	if !ok {
		qc.misses++
		return nil, false
	}
	if time.Since(entry.timestamp) > qc.ttl {
		qc.removeLocked(key)
		qc.misses++
		return nil, false
	}
	qc.lru.MoveToFront(entry.element)
	qc.hits++
	return entry.resp, true
}

func (qc *QueryCache) Put(level Level, p Params, resp *Response) {
	if qc == nil || qc.capacity <= 0 {
		return
	}
	qc.mu.Lock()
	defer qc.mu.Unlock()

	key := cacheKey(level, p)
	if entry, ok := qc.cache[key]; ok {
		entry.resp = resp
		entry.timestamp = time.Now()
		qc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{key: key, resp: resp, timestamp: time.Now()}
	entry.element = qc.lru.PushFront(entry)
	qc.cache[key] = entry

	if qc.lru.Len() > qc.capacity {
		if oldest := qc.lru.Back(); oldest != nil {
			qc.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}
}

// removeLocked must be called with mu held.
func (qc *QueryCache) removeLocked(key string) {
	if entry, ok := qc.cache[key]; ok {
		qc.lru.Remove(entry.element)
		delete(qc.cache, key)
	}
}

// Clear drops every entry, e.g. after new usage events were ingested.
func (qc *QueryCache) Clear() {
	if qc == nil {
		return
	}
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.cache = make(map[string]*cacheEntry)
	qc.lru = list.New()
}

// CacheStats is a point-in-time view of the cache.
type CacheStats struct {
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Expired  int    `json:"expired"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

func (qc *QueryCache) Stats() CacheStats {
	if qc == nil {
		return CacheStats{}
	}
	qc.mu.Lock()
	defer qc.mu.Unlock()

	expired := 0
	for _, entry := range qc.cache {
		if time.Since(entry.timestamp) > qc.ttl {
			expired++
		}
	}
	return CacheStats{
		Size:     len(qc.cache),
		Capacity: qc.capacity,
		Expired:  expired,
		Hits:     qc.hits,
		Misses:   qc.misses,
	}
}

func cacheKey(level Level, p Params) string {
	data, _ := json.Marshal(struct {
		Level  Level  `json:"level"`
		Params Params `json:"params"`
	}{level, p})
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
