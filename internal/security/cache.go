package security

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	granted   bool
	expiresAt time.Time // zero: без срока
}

// CachedChecker remembers decisions of the wrapped checker per role set.
// Safe for concurrent use.
type CachedChecker struct {
	next  Checker
	mu    sync.RWMutex
	items map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

type CacheOption func(*CachedChecker)

// WithTTL makes entries expire; 0 keeps them for the checker's lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedChecker) { c.ttl = ttl }
}

func NewCachedChecker(next Checker, opts ...CacheOption) *CachedChecker {
	c := &CachedChecker{
		next:  next,
		items: make(map[string]cacheEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedChecker) IsGranted(roles ...string) bool {
	key := cacheKey(roles)

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && (entry.expiresAt.IsZero() || c.now().Before(entry.expiresAt)) {
		return entry.granted
	}

	granted := c.next.IsGranted(roles...)
	entry = cacheEntry{granted: granted}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = entry
	c.mu.Unlock()
	return granted
}

func (c *CachedChecker) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func cacheKey(roles []string) string {
	sorted := append([]string(nil), roles...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

var _ Checker = (*CachedChecker)(nil)
