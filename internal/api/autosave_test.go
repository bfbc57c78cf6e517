package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictIdle_DropsAbandonedSession(t *testing.T) {
	e := openEnv(t)
	id := e.startSession(t)

	e.do(t, "POST", "/api/v1/sessions/"+id+"/events",
		`{"type":"type","content":"an unfinished thought"}`, nil)

	// The participant walks away past the idle limit.
	e.clk.Advance(3 * time.Hour)
	e.handlers.evictIdle(context.Background(), 2*time.Hour)

	// The tracker is gone from the live registry.
	r := e.do(t, "POST", "/api/v1/sessions/"+id+"/events",
		`{"type":"type","content":"an unfinished thought continues"}`, nil)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)

	// But the text survived in the draft store, and the session can resume.
	content, err := e.drafts.LoadDraft(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "an unfinished thought", content)

	var resp StartSessionResponse
	r = e.do(t, "POST", "/api/v1/sessions", `{"session_id":"`+id+`"}`, &resp)
	require.Equal(t, http.StatusCreated, r.StatusCode)
	assert.True(t, resp.Resumed)
	assert.Equal(t, "an unfinished thought", resp.Draft)
}

func TestEvictIdle_KeepsActiveSessions(t *testing.T) {
	e := openEnv(t)
	stale := e.startSession(t)
	e.do(t, "POST", "/api/v1/sessions/"+stale+"/events",
		`{"type":"type","content":"quiet"}`, nil)

	e.clk.Advance(3 * time.Hour)

	active := e.startSession(t)
	e.do(t, "POST", "/api/v1/sessions/"+active+"/events",
		`{"type":"type","content":"still writing"}`, nil)

	e.handlers.evictIdle(context.Background(), 2*time.Hour)

	r := e.do(t, "POST", "/api/v1/sessions/"+stale+"/events",
		`{"type":"type","content":"x"}`, nil)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)

	r = e.do(t, "POST", "/api/v1/sessions/"+active+"/events",
		`{"type":"type","content":"still writing more"}`, nil)
	assert.Equal(t, http.StatusOK, r.StatusCode)
}

func TestEvictIdle_DisabledByZeroMaxIdle(t *testing.T) {
	e := openEnv(t)
	id := e.startSession(t)

	e.clk.Advance(100 * time.Hour)
	e.handlers.evictIdle(context.Background(), 0)

	r := e.do(t, "POST", "/api/v1/sessions/"+id+"/events",
		`{"type":"type","content":"late but live"}`, nil)
	assert.Equal(t, http.StatusOK, r.StatusCode)
}
