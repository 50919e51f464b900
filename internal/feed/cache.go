package feed

import (
	"sync"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
)

// Cache is the session-local copy of the entry set, kept in sync by applying
// change events. The direct write response and the later echoed feed event
// both land here, so every application must be idempotent: applying the same
// logical change twice is a no-op.
type Cache struct {
	mu      sync.RWMutex
	entries []models.QueueEntry
}

func NewCache() *Cache {
	return &Cache{}
}

// Load replaces the cache wholesale with an authoritative fetch.
func (c *Cache) Load(entries []models.QueueEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append([]models.QueueEntry(nil), entries...)
}

// Insert prepends a new entry. A duplicate id is treated as an update, which
// covers the echo of a create the cache already saw via Load.
func (c *Cache) Insert(entry models.QueueEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(entry.ID); i >= 0 {
		c.entries[i] = entry
		return
	}
	c.entries = append([]models.QueueEntry{entry}, c.entries...)
}

// Update merges a changed row by id. An update for an unknown id is kept as
// an insert: the feed guarantees eventual consistency, not ordering, so the
// update may outrun the insert it follows.
func (c *Cache) Update(entry models.QueueEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(entry.ID); i >= 0 {
		c.entries[i] = entry
		return
	}
	c.entries = append([]models.QueueEntry{entry}, c.entries...)
}

// Delete removes by id; unknown ids are a no-op.
func (c *Cache) Delete(entryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(entryID)
	if i < 0 {
		return
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
}

// Snapshot returns a copy of the current entry set.
func (c *Cache) Snapshot() []models.QueueEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.QueueEntry(nil), c.entries...)
}

func (c *Cache) indexOf(entryID string) int {
	for i := range c.entries {
		if c.entries[i].ID == entryID {
			return i
		}
	}
	return -1
}
