package imapconn

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cache holds live, authenticated sessions keyed by (user, account) so
// repeated syncs for the same account reuse one connection instead of
// re-dialing. A single instance is shared by every in-flight sync task.
//
// Invariant: Get never returns a session whose TTL has elapsed or whose
// transport has already signalled termination. Expired entries are evicted
// lazily on Get, swept on Put, and dead transports are evicted by a watcher
// registered at Put time. Evicted sessions are always closed outside the
// lock: Close is a network round trip and must never stall other callers.
type Cache struct {
	ttl    time.Duration
	logger *logrus.Logger

	mu      sync.Mutex
	entries map[string]*entry

	// now is replaceable for tests
	now func() time.Time
}

type entry struct {
	session   *Session
	expiresAt time.Time
}

// NewCache creates a new session cache with the given time-to-live
func NewCache(ttl time.Duration, logger *logrus.Logger) *Cache {
	return &Cache{
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func cacheKey(userID, accountID string) string {
	return userID + "/" + accountID
}

// Get returns the cached session for (user, account) if one is present,
// unexpired, and still connected. Stale entries are evicted on the spot.
func (c *Cache) Get(userID, accountID string) (*Session, bool) {
	key := cacheKey(userID, accountID)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.mu.Unlock()
		c.closeSession(key, e.session)
		return nil, false
	}

	// The termination watcher evicts dead transports, but the signal may not
	// have been observed yet. Never hand out a handle that already ended.
	select {
	case <-e.session.Closed():
		delete(c.entries, key)
		c.mu.Unlock()
		c.closeSession(key, e.session)
		return nil, false
	default:
	}

	session := e.session
	c.mu.Unlock()
	return session, true
}

// Put caches a session under (user, account), replacing any previous entry.
// The session is owned by the cache from this point on.
func (c *Cache) Put(userID, accountID string, s *Session) {
	key := cacheKey(userID, accountID)
	evicted := make(map[string]*Session)

	c.mu.Lock()
	if old, ok := c.entries[key]; ok && old.session != s {
		delete(c.entries, key)
		evicted[key] = old.session
	}

	c.entries[key] = &entry{
		session:   s,
		expiresAt: c.now().Add(c.ttl),
	}

	// Amortized sweep so short-lived accounts do not accumulate
	for k, e := range c.entries {
		if !c.now().Before(e.expiresAt) {
			delete(c.entries, k)
			evicted[k] = e.session
		}
	}
	c.mu.Unlock()

	for k, victim := range evicted {
		c.closeSession(k, victim)
	}

	// Evict proactively when the transport ends, so the cache never returns
	// a dead handle even before its TTL elapses. The identity check keeps a
	// watcher for a replaced session from evicting its successor.
	go func() {
		<-s.Closed()
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && e.session == s {
			delete(c.entries, key)
			c.logger.WithField("key", key).Debug("Evicted disconnected session")
		}
		c.mu.Unlock()
	}()
}

// Remove evicts the entry for (user, account) and closes its session.
// Close failures are swallowed, the handle is being discarded regardless.
func (c *Cache) Remove(userID, accountID string) {
	key := cacheKey(userID, accountID)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if ok {
		c.closeSession(key, e.session)
	}
}

// Len returns the number of cached entries, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close evicts every entry and closes the underlying sessions
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	for key, e := range entries {
		c.closeSession(key, e.session)
	}
}

// closeSession tears a session down best-effort. Callers must not hold c.mu:
// Close goes out over the network and a dead transport can block it for its
// full timeout.
func (c *Cache) closeSession(key string, s *Session) {
	if err := s.Close(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("Session close failed during eviction")
	}
}
