// Package api provides the HTTP capture API for writing sessions.
package api

import (
	"encoding/json"

	"github.com/inklab/quill/internal/rules"
	"github.com/inklab/quill/internal/session"
	"github.com/inklab/quill/internal/store"
)

// --- Request DTOs ---

// StartSessionRequest is the payload for POST /api/v1/sessions.
// SessionID resumes an existing draft; when empty a new session is created.
type StartSessionRequest struct {
	ParticipantID string `json:"participant_id,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	Consent       bool   `json:"consent,omitempty"`
}

// AppendEventRequest is the payload for POST /api/v1/sessions/:id/events.
type AppendEventRequest struct {
	Type       session.EventType  `json:"type"`
	Content    string             `json:"content,omitempty"`
	Selection  *session.Selection `json:"selection,omitempty"`
	WildcardID string             `json:"wildcard_id,omitempty"`
}

// WildcardRequest is the payload for POST /api/v1/sessions/:id/wildcard.
type WildcardRequest struct {
	WildcardID string `json:"wildcard_id"`
	Action     string `json:"action"` // "accept" or "decline"
}

// SaveDraftRequest is the payload for PUT /api/v1/sessions/:id/draft.
type SaveDraftRequest struct {
	Content string `json:"content"`
}

// SubmitRequest is the payload for POST /api/v1/sessions/:id/submit.
// Feedback and CheckIn are opaque questionnaire answers carried by value.
type SubmitRequest struct {
	Feedback json.RawMessage `json:"feedback,omitempty"`
	CheckIn  json.RawMessage `json:"check_in,omitempty"`
}

// --- Response DTOs ---

// StartSessionResponse is the response for POST /api/v1/sessions.
type StartSessionResponse struct {
	SessionID string           `json:"session_id"`
	Token     string           `json:"token,omitempty"`
	StartedAt int64            `json:"started_at"`
	Rules     []session.Rule   `json:"rules"`
	Wildcards []rules.Wildcard `json:"wildcards,omitempty"`
	Draft     string           `json:"draft,omitempty"`
	Resumed   bool             `json:"resumed,omitempty"`
}

// EventResponse reports the session state after an event is appended.
type EventResponse struct {
	WordCount      int            `json:"word_count"`
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	ActiveRules    []session.Rule `json:"active_rules"`
}

// RulesResponse is the response for GET /api/v1/sessions/:id/rules.
type RulesResponse struct {
	Rules       []session.Rule `json:"rules"`
	ActiveRules []session.Rule `json:"active_rules"`
	CanSubmit   bool           `json:"can_submit"`
}

// WildcardResponse is the response for POST /api/v1/sessions/:id/wildcard.
type WildcardResponse struct {
	WildcardID string `json:"wildcard_id"`
	Accepted   bool   `json:"accepted"`
	Opener     string `json:"opener,omitempty"`
}

// DraftResponse is the response for GET /api/v1/sessions/:id/draft.
type DraftResponse struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// Submission outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeBackedUp = "backed_up"
	OutcomeBlocked  = "blocked"
)

// SubmitResponse is the response for POST /api/v1/sessions/:id/submit.
// Status is "stored" when the document store acknowledged the write and
// "backed_up" when the fallback chain preserved the session locally.
type SubmitResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	ExportURL string `json:"export_url"`
	Detail    string `json:"detail,omitempty"`
}

// SessionListResponse wraps the operator listing.
type SessionListResponse struct {
	Sessions []store.Summary `json:"sessions"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// HealthDetailResponse is the response for GET /api/v1/health.
type HealthDetailResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Uptime string            `json:"uptime"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
