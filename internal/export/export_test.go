package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklab/quill/internal/session"
)

func TestFilename(t *testing.T) {
	assert.Equal(t, "session_abc-123.json", Filename("abc-123"))
}

func TestMarshal_ProducesIndentedRoundTrippableJSON(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sess := session.Assemble("s1", "hello world", 2, start, start.Add(time.Minute),
		[]session.Event{{Type: session.EventSessionStart, Timestamp: start.UnixMilli()}},
		nil, nil, nil)

	data, err := Marshal(&sess)
	require.NoError(t, err)

	// A participant download should be readable, not a single line.
	assert.True(t, strings.Contains(string(data), "\n  "))

	var got session.Session
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sess, got)
}
