package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklab/quill/internal/clock"
)

var logEpoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestEventLog_RecordStampsTimestamp(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 0)

	clk.Advance(1500 * time.Millisecond)
	e := log.Record(Event{Type: EventTyping, Content: "Once"})

	assert.Equal(t, logEpoch.Add(1500*time.Millisecond).UnixMilli(), e.Timestamp)
	assert.Equal(t, 1, log.Len())
}

func TestEventLog_InsertionOrderIsChronological(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 0)

	log.Record(Event{Type: EventSessionStart})
	clk.Advance(time.Second)
	log.Record(Event{Type: EventTyping, Content: "a"})
	clk.Advance(time.Second)
	log.Record(Event{Type: EventTyping, Content: "ab"})

	events := log.Events()
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].Timestamp, events[i].Timestamp)
	}
}

func TestEventLog_PauseAfterQuietInterval(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 2*time.Second)

	log.Record(Event{Type: EventTyping, Content: "a"})
	clk.Advance(2 * time.Second)

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventPause, events[1].Type)
	assert.Equal(t, logEpoch.Add(2*time.Second).UnixMilli(), events[1].Timestamp)
}

func TestEventLog_EditingResetsPauseCountdown(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 2*time.Second)

	// Steady typing under the threshold: no pause is ever emitted.
	for i := 0; i < 5; i++ {
		log.Record(Event{Type: EventTyping, Content: "x"})
		clk.Advance(1500 * time.Millisecond)
	}

	assert.NotContains(t, eventTypes(log.Events()), EventPause)

	// Then the writer goes quiet.
	clk.Advance(time.Second)
	types := eventTypes(log.Events())
	assert.Equal(t, EventPause, types[len(types)-1])
}

func TestEventLog_SinglePausePerQuietInterval(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 2*time.Second)

	log.Record(Event{Type: EventTyping, Content: "a"})
	clk.Advance(10 * time.Minute)

	pauses := 0
	for _, e := range log.Events() {
		if e.Type == EventPause {
			pauses++
		}
	}
	assert.Equal(t, 1, pauses, "one quiet interval, one pause")
}

func TestEventLog_PauseRearmsAfterNextEdit(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 2*time.Second)

	log.Record(Event{Type: EventTyping, Content: "a"})
	clk.Advance(3 * time.Second)
	log.Record(Event{Type: EventDelete, Content: ""})
	clk.Advance(3 * time.Second)

	types := eventTypes(log.Events())
	assert.Equal(t, []EventType{EventTyping, EventPause, EventDelete, EventPause}, types)
}

func TestEventLog_AllEditKindsArmPause(t *testing.T) {
	for _, typ := range []EventType{EventTyping, EventDelete, EventPaste} {
		t.Run(string(typ), func(t *testing.T) {
			clk := clock.NewManual(logEpoch)
			log := NewEventLog(clk, 2*time.Second)

			log.Record(Event{Type: typ})
			clk.Advance(2 * time.Second)
			assert.Contains(t, eventTypes(log.Events()), EventPause)
		})
	}
}

func TestEventLog_MarkerEventsDoNotArmPause(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 2*time.Second)

	log.Record(Event{Type: EventConsent})
	log.Record(Event{Type: EventWildcardAccepted, WildcardID: "w1"})
	clk.Advance(time.Hour)

	assert.NotContains(t, eventTypes(log.Events()), EventPause)
}

func TestEventLog_DefaultPauseThreshold(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 0)

	log.Record(Event{Type: EventTyping, Content: "a"})
	clk.Advance(1999 * time.Millisecond)
	assert.NotContains(t, eventTypes(log.Events()), EventPause)

	clk.Advance(time.Millisecond)
	assert.Contains(t, eventTypes(log.Events()), EventPause)
}

func TestEventLog_DrainStopsPauseDetection(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 2*time.Second)

	log.Record(Event{Type: EventTyping, Content: "a"})
	final := log.Drain()
	require.Len(t, final, 1)

	// A pending pause timer must not append after drain.
	clk.Advance(time.Hour)
	assert.Equal(t, 1, log.Len())
}

// lateFireClock mimics time.AfterFunc's own-goroutine delivery: the test
// decides when a committed fire actually runs, so it can land after a Reset.
type lateFireClock struct {
	now   time.Time
	timer *lateFireTimer
}

type lateFireTimer struct {
	fn func()
}

func (t *lateFireTimer) Stop() bool                 { return true }
func (t *lateFireTimer) Reset(_ time.Duration) bool { return true }

func (c *lateFireClock) Now() time.Time { return c.now }

func (c *lateFireClock) AfterFunc(_ time.Duration, fn func()) clock.Timer {
	c.timer = &lateFireTimer{fn: fn}
	return c.timer
}

func TestEventLog_LateFireAfterResetIsSuppressed(t *testing.T) {
	clk := &lateFireClock{now: logEpoch}
	log := NewEventLog(clk, 2*time.Second)

	log.Record(Event{Type: EventTyping, Content: "a"})

	// The countdown expires exactly as a new edit arrives: the fire is
	// already committed when the edit Resets the countdown, and is only
	// delivered afterwards.
	clk.now = logEpoch.Add(2 * time.Second)
	log.Record(Event{Type: EventTyping, Content: "ab"})
	clk.timer.fn()

	assert.Equal(t, []EventType{EventTyping, EventTyping}, eventTypes(log.Events()),
		"a fire delivered after a newer edit must not append a pause")

	// The rearmed countdown still produces exactly one pause once the
	// writer actually goes quiet.
	clk.now = logEpoch.Add(4 * time.Second)
	clk.timer.fn()

	types := eventTypes(log.Events())
	assert.Equal(t, []EventType{EventTyping, EventTyping, EventPause}, types)
	events := log.Events()
	assert.Equal(t, logEpoch.Add(4*time.Second).UnixMilli(), events[2].Timestamp)
}

func TestEventLog_EventsReturnsCopy(t *testing.T) {
	clk := clock.NewManual(logEpoch)
	log := NewEventLog(clk, 0)

	log.Record(Event{Type: EventTyping, Content: "a"})
	events := log.Events()
	events[0].Content = "mutated"

	assert.Equal(t, "a", log.Events()[0].Content)
}
