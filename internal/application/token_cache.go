package application

import (
	"sync"
	"time"
)

// consumedTokenCache remembers password reset token ids that were already
// redeemed. Entries only need to live until the token itself expires.
type consumedTokenCache struct {
	mu         sync.Mutex
	now        func() time.Time
	maxEntries int
	entries    map[string]time.Time
}

func newConsumedTokenCache(maxEntries int, now func() time.Time) *consumedTokenCache {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	if now == nil {
		now = time.Now
	}
	return &consumedTokenCache{
		now:        now,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
	}
}

// Consumed reports whether id was redeemed and has not yet expired.
func (c *consumedTokenCache) Consumed(id string) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.entries[id]
	if !ok {
		return false
	}
	if c.now().After(expiresAt) {
		delete(c.entries, id)
		return false
	}
	return true
}

// Consume marks id as redeemed until expiresAt. It returns false when id was
// already consumed, so concurrent redemptions of one token see exactly one winner.
func (c *consumedTokenCache) Consume(id string, expiresAt time.Time) bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, ok := c.entries[id]; ok {
		return false
	}
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[id] = expiresAt
	return true
}

// Release forgets id so the token can be redeemed again.
func (c *consumedTokenCache) Release(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *consumedTokenCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *consumedTokenCache) cleanupLocked() {
	now := c.now()
	for id, expiresAt := range c.entries {
		if now.After(expiresAt) {
			delete(c.entries, id)
		}
	}
}

// evictOneLocked drops the entry closest to expiry.
func (c *consumedTokenCache) evictOneLocked() {
	var (
		victim string
		oldest time.Time
	)
	for id, expiresAt := range c.entries {
		if victim == "" || expiresAt.Before(oldest) {
			victim, oldest = id, expiresAt
		}
	}
	delete(c.entries, victim)
}
