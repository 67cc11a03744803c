// Package logcache holds the most recent redacted log snapshot of the target
// container. One writer (the poller) replaces the snapshot, any number of HTTP
// handlers read it concurrently.
package logcache

import (
	"sync"
	"time"
)

// Snapshot is one published log text. Version counts publishes and is zero
// before the first Update.
type Snapshot struct {
	Text      string
	UpdatedAt time.Time
	Version   uint64
}

// Cache keeps exactly one snapshot. The zero value is ready to use and reads
// as an empty string.
type Cache struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	version  uint64
	now      func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{now: time.Now}
}

// Update replaces the current snapshot. The lock is held only for the swap.
func (c *Cache) Update(text string) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	next := &Snapshot{Text: text, UpdatedAt: now()}

	c.mu.Lock()
	c.version++
	next.Version = c.version
	c.snapshot = next
	c.mu.Unlock()
}

// Read returns the current snapshot text, or "" before the first Update.
func (c *Cache) Read() string {
	return c.Snapshot().Text
}

// Snapshot returns a copy of the current snapshot. UpdatedAt is zero before
// the first Update.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	current := c.snapshot
	c.mu.RUnlock()

	if current == nil {
		return Snapshot{}
	}
	return *current
}
