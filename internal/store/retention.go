package store

import (
	"context"
	"fmt"
	"time"
)

// RunRetention deletes submitted sessions (and their relational rows) older
// than the given number of days. days <= 0 disables retention entirely.
// Returns the number of sessions removed.
func (s *Store) RunRetention(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UnixMilli() - int64(days)*24*60*60*1000

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin retention tx: %w", err)
	}
	defer tx.Rollback()

	// Child rows first; foreign keys reference sessions.
	if _, err := tx.ExecContext(ctx, `
	DELETE FROM events WHERE session_id IN (SELECT session_id FROM sessions WHERE created_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
	DELETE FROM rule_snapshots WHERE session_id IN (SELECT session_id FROM sessions WHERE created_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete old rule snapshots: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sessions: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit retention tx: %w", err)
	}

	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Int("days", days).Msg("retention sweep removed old sessions")
	}
	return int(removed), nil
}
