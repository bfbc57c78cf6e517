// Package export renders a session as a downloadable JSON document.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/inklab/quill/internal/session"
)

// Filename returns the download name for a session export.
func Filename(sessionID string) string {
	return fmt.Sprintf("session_%s.json", sessionID)
}

// Marshal renders the session as pretty-printed JSON matching the session
// schema exactly (ms-epoch timestamps, event order preserved).
func Marshal(sess *session.Session) ([]byte, error) {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode session export: %w", err)
	}
	return data, nil
}
