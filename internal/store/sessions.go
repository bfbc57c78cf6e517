package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	qerrors "github.com/inklab/quill/internal/errors"
	"github.com/inklab/quill/internal/session"
)

// Summary is the listing view of a submitted session.
type Summary struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	WordCount     int    `json:"word_count"`
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	Duration      int64  `json:"duration"`
	CreatedAt     int64  `json:"created_at"`
}

// ListFilter holds query parameters for ListSessions.
type ListFilter struct {
	ParticipantID string
	Limit         int
	Offset        int
}

// SaveSession writes a full session document in one transaction: the
// document row plus relational event and rule-snapshot rows for analysis
// queries. Re-submitting the same session_id replaces the previous write.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(sess)
	if err != nil {
		return qerrors.NewStoreError("encode_session", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return qerrors.NewStoreError("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO sessions (
		session_id, participant_id, word_count, start_time, end_time, duration, document, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.SessionID,
		sql.NullString{String: participantID, Valid: participantID != ""},
		sess.WordCount, sess.StartTime, sess.EndTime, sess.Duration,
		string(doc), time.Now().UnixMilli(),
	)
	if err != nil {
		return qerrors.NewStoreError("save_session", err)
	}

	// Replace relational rows on re-submission.
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, sess.SessionID); err != nil {
		return qerrors.NewStoreError("clear_events", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_snapshots WHERE session_id = ?`, sess.SessionID); err != nil {
		return qerrors.NewStoreError("clear_rules", err)
	}

	for i, ev := range sess.EventLog {
		var selStart, selEnd sql.NullInt64
		if ev.Selection != nil {
			selStart = sql.NullInt64{Int64: int64(ev.Selection.Start), Valid: true}
			selEnd = sql.NullInt64{Int64: int64(ev.Selection.End), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO events (session_id, seq, event_type, timestamp, content, sel_start, sel_end, wildcard_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sess.SessionID, i, string(ev.Type), ev.Timestamp,
			sql.NullString{String: ev.Content, Valid: ev.Content != ""},
			selStart, selEnd,
			sql.NullString{String: ev.WildcardID, Valid: ev.WildcardID != ""},
		)
		if err != nil {
			return qerrors.NewStoreError("save_event", err)
		}
	}

	for i, r := range sess.Rules {
		var completedAt, skippedAt sql.NullInt64
		if r.CompletedAt != nil {
			completedAt = sql.NullInt64{Int64: *r.CompletedAt, Valid: true}
		}
		if r.SkippedAt != nil {
			skippedAt = sql.NullInt64{Int64: *r.SkippedAt, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO rule_snapshots (session_id, position, rule_id, content, rule_type, cond_kind, threshold, status, completed_at, skipped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sess.SessionID, i, r.ID, r.Content, string(r.Type),
			string(r.Condition.Kind), r.Condition.Threshold, string(r.Status),
			completedAt, skippedAt,
		)
		if err != nil {
			return qerrors.NewStoreError("save_rule", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return qerrors.NewStoreError("commit", err)
	}
	return nil
}

// GetSession retrieves a submitted session document by ID.
// Returns nil, nil when not found.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session document: %w", err)
	}
	return &sess, nil
}

// ListSessions returns session summaries, newest first, plus the total count.
func (s *Store) ListSessions(ctx context.Context, f ListFilter) ([]Summary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.Limit <= 0 {
		f.Limit = 50
	}

	where := ""
	args := []interface{}{}
	if f.ParticipantID != "" {
		where = " WHERE participant_id = ?"
		args = append(args, f.ParticipantID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query := `
	SELECT session_id, participant_id, word_count, start_time, end_time, duration, created_at
	FROM sessions` + where + `
	ORDER BY created_at DESC
	LIMIT ? OFFSET ?
	`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var participant sql.NullString
		if err := rows.Scan(&sm.SessionID, &participant, &sm.WordCount, &sm.StartTime, &sm.EndTime, &sm.Duration, &sm.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan session row: %w", err)
		}
		if participant.Valid {
			sm.ParticipantID = participant.String
		}
		out = append(out, sm)
	}
	return out, total, rows.Err()
}

// CountEvents returns the number of relational event rows for a session.
func (s *Store) CountEvents(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
