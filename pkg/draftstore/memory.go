package draftstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store, used in tests and as a degraded-mode
// fallback when no draft directory is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	drafts  map[string]memoryDraft
	backups map[string][]byte
}

type memoryDraft struct {
	content string
	savedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:  make(map[string]memoryDraft),
		backups: make(map[string][]byte),
	}
}

func (m *MemoryStore) SaveDraft(_ context.Context, sessionID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[DraftKey(sessionID)] = memoryDraft{content: content, savedAt: time.Now()}
	return nil
}

func (m *MemoryStore) LoadDraft(_ context.Context, sessionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[DraftKey(sessionID)]
	if !ok {
		return "", ErrDraftNotFound
	}
	return d.content, nil
}

func (m *MemoryStore) DeleteDraft(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, DraftKey(sessionID))
	return nil
}

func (m *MemoryStore) SaveBackup(_ context.Context, sessionID string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(doc))
	copy(cp, doc)
	m.backups[BackupKey(sessionID)] = cp
	return nil
}

func (m *MemoryStore) LoadBackup(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.backups[BackupKey(sessionID)]
	if !ok {
		return nil, ErrBackupNotFound
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return cp, nil
}

func (m *MemoryStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for k, d := range m.drafts {
		if d.savedAt.Before(cutoff) {
			delete(m.drafts, k)
			removed++
		}
	}
	return removed, nil
}
