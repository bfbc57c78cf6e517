package store

import (
	"fmt"
	"strconv"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	if err := s.migrateV2(); err != nil {
		return err
	}
	return s.migrateV3()
}

// schemaVersion returns the stored schema version as an integer, or 0 when
// the meta row is missing or unreadable. Versions must compare numerically:
// a string compare puts "10" before "2" and re-runs old migrations.
func (s *Store) schemaVersion() int {
	var raw string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw); err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		word_count INTEGER NOT NULL,
		start_time INTEGER NOT NULL,
		end_time   INTEGER NOT NULL,
		duration   INTEGER NOT NULL,
		document   TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS events (
		session_id  TEXT NOT NULL REFERENCES sessions(session_id),
		seq         INTEGER NOT NULL,
		event_type  TEXT NOT NULL,
		timestamp   INTEGER NOT NULL,
		content     TEXT,
		sel_start   INTEGER,
		sel_end     INTEGER,
		wildcard_id TEXT,
		PRIMARY KEY (session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}

	return nil
}

func (s *Store) migrateV2() error {
	if s.schemaVersion() >= 2 {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS rule_snapshots (
		session_id   TEXT NOT NULL REFERENCES sessions(session_id),
		position     INTEGER NOT NULL,
		rule_id      TEXT NOT NULL,
		content      TEXT NOT NULL,
		rule_type    TEXT NOT NULL,
		cond_kind    TEXT NOT NULL,
		threshold    INTEGER NOT NULL,
		status       TEXT NOT NULL,
		completed_at INTEGER,
		skipped_at   INTEGER,
		PRIMARY KEY (session_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_rules_status ON rule_snapshots(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}

func (s *Store) migrateV3() error {
	if s.schemaVersion() >= 3 {
		return nil
	}

	// ALTER TABLE sessions ADD COLUMN participant_id (ignore if already exists)
	_, _ = s.db.Exec(`ALTER TABLE sessions ADD COLUMN participant_id TEXT`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_participant ON sessions(participant_id)`)

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '3')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}
