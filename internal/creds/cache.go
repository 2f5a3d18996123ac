package creds

import (
	"sync"
	"time"
)

// Cache holds a single resolved secret with an absolute expiry instant.
// A secret is never returned once the current time passes its expiry; the
// caller is expected to recompute lazily on the next need. A failed
// resolution leaves the cache unset rather than poisoning it.
type Cache struct {
	mu      sync.Mutex
	secret  string
	expiry  time.Time
	primed  bool
}

// Get returns the cached secret if one is present and not yet expired.
func (c *Cache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed || !now.Before(c.expiry) {
		return "", false
	}
	return c.secret, true
}

// Set stores a secret valid for ttl from now. A non-positive ttl clears
// the cache instead.
func (c *Cache) Set(secret string, ttl time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		c.primed = false
		c.secret = ""
		return
	}
	c.secret = secret
	c.expiry = now.Add(ttl)
	c.primed = true
}

// Clear drops any cached secret.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primed = false
	c.secret = ""
}
