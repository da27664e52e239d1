package service

import (
	"sync"
	"time"

	"content_sync/internal/domain"
)

type cacheEntry struct {
	records   []domain.Content
	expiresAt time.Time
}

// ResponseCache holds remote read results for a fixed TTL. A zero TTL
// disables caching. Expired entries are dropped on every write.
type ResponseCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	lists   map[domain.ListFilter]cacheEntry
	details map[string]cacheEntry
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		ttl:     ttl,
		now:     time.Now,
		lists:   make(map[domain.ListFilter]cacheEntry),
		details: make(map[string]cacheEntry),
	}
}

func (c *ResponseCache) Get(f domain.ListFilter) ([]domain.Content, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.lists[f]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.records, true
}

func (c *ResponseCache) Set(f domain.ListFilter, records []domain.Content) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweepLocked(now)
	c.lists[f] = cacheEntry{records: records, expiresAt: now.Add(c.ttl)}
}

func (c *ResponseCache) GetItem(id string) (domain.Content, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.details[id]
	if !ok || len(e.records) == 0 || !c.now().Before(e.expiresAt) {
		return domain.Content{}, false
	}
	return e.records[0], true
}

func (c *ResponseCache) SetItem(item domain.Content) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweepLocked(now)
	c.details[item.ID] = cacheEntry{records: []domain.Content{item}, expiresAt: now.Add(c.ttl)}
}

func (c *ResponseCache) sweepLocked(now time.Time) {
	for f, e := range c.lists {
		if !now.Before(e.expiresAt) {
			delete(c.lists, f)
		}
	}
	for id, e := range c.details {
		if !now.Before(e.expiresAt) {
			delete(c.details, id)
		}
	}
}

// Purge drops every cached response.
func (c *ResponseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = make(map[domain.ListFilter]cacheEntry)
	c.details = make(map[string]cacheEntry)
}

// PurgeID drops the detail entry of id and every list, since any list may
// contain it.
func (c *ResponseCache) PurgeID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.details, id)
	c.lists = make(map[domain.ListFilter]cacheEntry)
}

func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lists) + len(c.details)
}
