package api

import (
	"sync"

	"github.com/inklab/quill/internal/session"
)

// liveSession pairs a tracker with request-scoped metadata.
type liveSession struct {
	tracker       *session.Tracker
	participantID string
}

// registry holds the trackers of sessions currently being written. Each
// session is exclusively owned by its tracker; the registry only routes
// requests to it.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*liveSession)}
}

func (r *registry) add(ls *liveSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[ls.tracker.ID()] = ls
}

func (r *registry) get(sessionID string) *liveSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

func (r *registry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// forEach calls fn for every live session outside the registry lock.
func (r *registry) forEach(fn func(*liveSession)) {
	r.mu.RLock()
	snapshot := make([]*liveSession, 0, len(r.sessions))
	for _, ls := range r.sessions {
		snapshot = append(snapshot, ls)
	}
	r.mu.RUnlock()

	for _, ls := range snapshot {
		fn(ls)
	}
}
