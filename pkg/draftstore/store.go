// Package draftstore persists the unsent local copy of a writing session:
// the continuously-saved raw draft text and, on a failed submission, a full
// backup of the assembled session document. It is the invariant backstop —
// no persistence failure may destroy already-captured writing.
package draftstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDraftNotFound  = errors.New("draft not found")
	ErrBackupNotFound = errors.New("backup not found")
)

// DraftKey returns the storage key for a session's raw draft text.
func DraftKey(sessionID string) string { return "draft_" + sessionID }

// BackupKey returns the storage key for a session's submission backup.
func BackupKey(sessionID string) string { return "session_" + sessionID }

// Store defines draft and backup storage. One writer per session; writes are
// last-write-wins.
type Store interface {
	// SaveDraft writes the raw editor text for a session.
	SaveDraft(ctx context.Context, sessionID, content string) error
	// LoadDraft reads the raw editor text. Returns ErrDraftNotFound.
	LoadDraft(ctx context.Context, sessionID string) (string, error)
	// DeleteDraft removes the draft after a confirmed submission.
	DeleteDraft(ctx context.Context, sessionID string) error

	// SaveBackup stores the full session JSON after a failed store write.
	SaveBackup(ctx context.Context, sessionID string, doc []byte) error
	// LoadBackup reads a stored backup. Returns ErrBackupNotFound.
	LoadBackup(ctx context.Context, sessionID string) ([]byte, error)

	// Cleanup removes drafts untouched for longer than maxAge and returns the
	// number removed. Backups are never cleaned up automatically.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}
