// Package cache keeps recently read submitted sessions in memory so repeat
// reads (dashboard refreshes, export after submit) skip the database.
package cache

import (
	"container/list"
	"sync"

	"github.com/inklab/quill/internal/session"
)

// Sessions is a fixed-capacity LRU of submitted session documents keyed by
// session ID. Safe for concurrent use.
type Sessions struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type cacheEntry struct {
	id   string
	sess *session.Session
}

// NewSessions creates a cache holding up to capacity documents.
// Panics if capacity < 1.
func NewSessions(capacity int) *Sessions {
	if capacity < 1 {
		panic("cache: capacity must be >= 1")
	}
	return &Sessions{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached session and true, or nil and false.
func (c *Sessions) Get(sessionID string) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[sessionID]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).sess, true
}

// Put inserts or refreshes a session, evicting the least recently used entry
// at capacity.
func (c *Sessions) Put(sess *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[sess.SessionID]; ok {
		el.Value.(*cacheEntry).sess = sess
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).id)
		}
	}

	c.entries[sess.SessionID] = c.order.PushFront(&cacheEntry{id: sess.SessionID, sess: sess})
}

// Invalidate drops a session from the cache. Returns true if it was present.
func (c *Sessions) Invalidate(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[sessionID]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.entries, sessionID)
	return true
}

// Len returns the number of cached sessions.
func (c *Sessions) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
