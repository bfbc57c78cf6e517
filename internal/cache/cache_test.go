package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklab/quill/internal/session"
)

func doc(id string) *session.Session {
	return &session.Session{SessionID: id, Content: "text for " + id}
}

func TestSessions_PutGet(t *testing.T) {
	c := NewSessions(4)

	c.Put(doc("a"))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.SessionID)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestSessions_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewSessions(2)

	c.Put(doc("a"))
	c.Put(doc("b"))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put(doc("c"))

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestSessions_PutRefreshesExisting(t *testing.T) {
	c := NewSessions(2)

	c.Put(doc("a"))
	updated := &session.Session{SessionID: "a", Content: "updated"}
	c.Put(updated)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "updated", got.Content)
	assert.Equal(t, 1, c.Len())
}

func TestSessions_Invalidate(t *testing.T) {
	c := NewSessions(2)

	c.Put(doc("a"))
	assert.True(t, c.Invalidate("a"))
	assert.False(t, c.Invalidate("a"))

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSessions_CapacityOne(t *testing.T) {
	c := NewSessions(1)

	for i := 0; i < 10; i++ {
		c.Put(doc(fmt.Sprintf("s%d", i)))
	}
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("s9")
	assert.True(t, ok)
}

func TestNewSessions_PanicsOnBadCapacity(t *testing.T) {
	assert.Panics(t, func() { NewSessions(0) })
}
