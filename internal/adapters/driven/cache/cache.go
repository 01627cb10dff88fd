// Package cache implements the prediction result cache in memory.
// Entries carry a per-entry TTL and the whole cache is bounded: when
// full, the entry closest to expiry is evicted. Entries are stored as
// immutable snapshots, so a write racing a read never exposes
// partially-written data.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
)

// DefaultMaxEntries bounds the cache when no capacity is given.
const DefaultMaxEntries = 4096

type entry struct {
	prediction domain.Prediction
	expiresAt  time.Time
}

// Memory is an in-process driven.ResultCache.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

var _ driven.ResultCache = (*Memory)(nil)

// NewMemory creates a cache holding at most maxEntries predictions.
// Zero or negative means DefaultMaxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    map[string]entry{},
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached prediction for a key, expiring lazily.
func (c *Memory) Get(_ context.Context, key string) (*domain.Prediction, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a fresher Set may have raced us.
		if current, still := c.entries[key]; still && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	p := e.prediction
	return &p, true, nil
}

// Set stores a prediction snapshot under the key. A non-positive TTL
// is a no-op rather than an error: the caller already has the result.
func (c *Memory) Set(_ context.Context, key string, p domain.Prediction, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry{prediction: p, expiresAt: c.now().Add(ttl)}
	return nil
}

// Len returns the current entry count, counting expired entries not
// yet collected.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked removes the entry closest to expiry. Called with the
// write lock held.
func (c *Memory) evictLocked() {
	var victim string
	var soonest time.Time
	first := true
	for key, e := range c.entries {
		if first || e.expiresAt.Before(soonest) {
			victim, soonest = key, e.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}
