package session

import (
	"encoding/json"
	"time"
)

// Session is the terminal aggregate for one writing attempt. Created once at
// submission and never mutated after the store acknowledges the write.
// All timestamps are ms epoch; Duration is exactly EndTime - StartTime.
type Session struct {
	SessionID string          `json:"session_id"`
	Content   string          `json:"content"`
	WordCount int             `json:"word_count"`
	StartTime int64           `json:"start_time"`
	EndTime   int64           `json:"end_time"`
	Duration  int64           `json:"duration"`
	EventLog  []Event         `json:"event_log"`
	Rules     []Rule          `json:"rules"`
	Feedback  json.RawMessage `json:"feedback,omitempty"`
	CheckIn   json.RawMessage `json:"check_in,omitempty"`
}

// Assemble builds the immutable session document. Pure: no I/O, inputs are
// copied, event order is preserved verbatim.
func Assemble(sessionID, content string, wordCount int, startTime, endTime time.Time, events []Event, rules []Rule, feedback, checkIn json.RawMessage) Session {
	startMs := startTime.UnixMilli()
	endMs := endTime.UnixMilli()

	evCopy := make([]Event, len(events))
	copy(evCopy, events)
	ruleCopy := make([]Rule, len(rules))
	copy(ruleCopy, rules)

	return Session{
		SessionID: sessionID,
		Content:   content,
		WordCount: wordCount,
		StartTime: startMs,
		EndTime:   endMs,
		Duration:  endMs - startMs,
		EventLog:  evCopy,
		Rules:     ruleCopy,
		Feedback:  feedback,
		CheckIn:   checkIn,
	}
}
