package session

import (
	"sync"
	"time"

	"github.com/inklab/quill/internal/clock"
)

// EventType classifies entries in the interaction log.
type EventType string

const (
	EventSessionStart     EventType = "session_start"
	EventTyping           EventType = "type"
	EventDelete           EventType = "delete"
	EventPaste            EventType = "paste"
	EventPause            EventType = "pause"
	EventRuleCompleted    EventType = "rule_completed"
	EventRuleSkipped      EventType = "rule_skipped"
	EventConsent          EventType = "consent"
	EventWildcardAccepted EventType = "wildcard_accepted"
	EventWildcardDeclined EventType = "wildcard_declined"
	EventSubmit           EventType = "submit"
)

// Selection is the editor cursor/selection range at event time.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Event is one timestamped interaction record. Content on editing events is
// a full snapshot of the editor text at event time, not a diff.
type Event struct {
	Type       EventType  `json:"type"`
	Timestamp  int64      `json:"timestamp"`
	Content    string     `json:"content,omitempty"`
	Selection  *Selection `json:"selection,omitempty"`
	WildcardID string     `json:"wildcard_id,omitempty"`
}

// DefaultPauseThreshold is the quiet interval after the last editing event
// that produces a synthetic pause event.
const DefaultPauseThreshold = 2000 * time.Millisecond

// EventLog is an append-only ordered sequence of interaction events.
// Insertion order is chronological order by construction; no event is ever
// removed or reordered. Each editing event re-arms a pause debounce timer;
// if the quiet interval elapses, exactly one pause event is appended. The
// pause is the only time-triggered entry.
type EventLog struct {
	mu         sync.Mutex
	clk        clock.Clock
	pauseAfter time.Duration
	events     []Event
	pauseTimer clock.Timer
	lastEdit   time.Time
	drained    bool
}

// NewEventLog creates an event log on the given clock. pauseAfter <= 0 uses
// DefaultPauseThreshold.
func NewEventLog(clk clock.Clock, pauseAfter time.Duration) *EventLog {
	if pauseAfter <= 0 {
		pauseAfter = DefaultPauseThreshold
	}
	return &EventLog{clk: clk, pauseAfter: pauseAfter}
}

// Record stamps the current time on e and appends it. The stamped event is
// returned. Editing events (type/delete/paste) reset the pause countdown.
func (l *EventLog) Record(e Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = l.clk.Now().UnixMilli()
	l.events = append(l.events, e)

	if qualifiesForPause(e.Type) {
		l.lastEdit = l.clk.Now()
		l.armPauseLocked()
	}
	return e
}

func qualifiesForPause(t EventType) bool {
	return t == EventTyping || t == EventDelete || t == EventPaste
}

func (l *EventLog) armPauseLocked() {
	if l.pauseTimer == nil {
		l.pauseTimer = l.clk.AfterFunc(l.pauseAfter, l.firePause)
		return
	}
	l.pauseTimer.Reset(l.pauseAfter)
}

func (l *EventLog) firePause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.drained {
		return
	}
	// The timer callback runs in its own goroutine: a fire committed at the
	// boundary can be delivered after a newer edit has already Reset the
	// countdown. That edit owns the rearmed timer, so a stale fire must
	// stand down instead of appending a pause right after the edit.
	if l.clk.Now().Sub(l.lastEdit) < l.pauseAfter {
		return
	}
	// Timer fired: next editing event arms a fresh countdown.
	l.pauseTimer = nil
	l.events = append(l.events, Event{
		Type:      EventPause,
		Timestamp: l.clk.Now().UnixMilli(),
	})
}

// Events returns a copy of the log in insertion order.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// LastTimestamp returns the ms-epoch timestamp of the most recent event,
// or 0 when the log is empty.
func (l *EventLog) LastTimestamp() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return 0
	}
	return l.events[len(l.events)-1].Timestamp
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Drain stops the pause timer and returns the final ordered sequence.
// Called once at submission; later timer fires are ignored.
func (l *EventLog) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drained = true
	if l.pauseTimer != nil {
		l.pauseTimer.Stop()
		l.pauseTimer = nil
	}
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
