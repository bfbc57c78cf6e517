package draftstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore persists drafts and backups as flat files in a directory:
// draft_<sessionID>.txt holds raw editor text, session_<sessionID>.json
// holds the full session document backup.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create draft dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) draftPath(sessionID string) string {
	return filepath.Join(f.dir, DraftKey(sessionID)+".txt")
}

func (f *FileStore) backupPath(sessionID string) string {
	return filepath.Join(f.dir, BackupKey(sessionID)+".json")
}

func (f *FileStore) SaveDraft(_ context.Context, sessionID, content string) error {
	if err := writeAtomic(f.draftPath(sessionID), []byte(content)); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (f *FileStore) LoadDraft(_ context.Context, sessionID string) (string, error) {
	data, err := os.ReadFile(f.draftPath(sessionID))
	if os.IsNotExist(err) {
		return "", ErrDraftNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load draft: %w", err)
	}
	return string(data), nil
}

func (f *FileStore) DeleteDraft(_ context.Context, sessionID string) error {
	err := os.Remove(f.draftPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func (f *FileStore) SaveBackup(_ context.Context, sessionID string, doc []byte) error {
	if err := writeAtomic(f.backupPath(sessionID), doc); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	return nil
}

func (f *FileStore) LoadBackup(_ context.Context, sessionID string) ([]byte, error) {
	data, err := os.ReadFile(f.backupPath(sessionID))
	if os.IsNotExist(err) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load backup: %w", err)
	}
	return data, nil
}

// Cleanup removes draft files not modified within maxAge. Backup files are
// left untouched.
func (f *FileStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list draft dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "draft_") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(f.dir, name)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// writeAtomic writes via a temp file and rename so a crashed write never
// truncates an existing draft.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
