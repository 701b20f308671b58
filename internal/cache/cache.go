// Package cache holds the last-known result of every task. Entries are
// overwritten whole (value and timestamp together) and expire by TTL on read;
// nothing is ever deleted.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value any
	ts    time.Time
}

// ResultCache is safe for one writer per task and any number of concurrent
// readers. A single RWMutex over the entry map is enough: entries are
// independent and each write replaces the whole entry.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *ResultCache {
	return &ResultCache{entries: make(map[string]entry)}
}

// Put stores value with the given timestamp, overwriting any prior entry.
func (c *ResultCache) Put(name string, value any, now time.Time) {
	c.mu.Lock()
	c.entries[name] = entry{value: value, ts: now}
	c.mu.Unlock()
}

// Get returns the cached value for name if it was written less than ttl ago.
// A stale or missing entry returns ok=false.
func (c *ResultCache) Get(name string, now time.Time, ttl time.Duration) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.Sub(e.ts) >= ttl {
		return nil, false
	}
	return e.value, true
}

// GetEntry returns the raw value and write timestamp regardless of TTL, for
// status views. ok=false when the task has never produced a value.
func (c *ResultCache) GetEntry(name string) (any, time.Time, bool) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	return e.value, e.ts, ok
}
