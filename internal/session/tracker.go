package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/inklab/quill/internal/clock"
	qerrors "github.com/inklab/quill/internal/errors"
)

// Tracker is the single-owner state machine for one live writing session.
// It ties the session clock, word counter, rule engine, and event log
// together: every edit records an event, recounts words, re-evaluates rules,
// and surfaces the active set. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	id        string
	startedAt time.Time
	clk       clock.Clock
	engine    *Engine
	log       *EventLog
	content   string
	wordCount int
	submitted bool
}

// NewTracker starts a session over the given rules and records the
// session_start event.
func NewTracker(id string, rules []Rule, clk clock.Clock, pauseAfter time.Duration) *Tracker {
	t := &Tracker{
		id:        id,
		startedAt: clk.Now(),
		clk:       clk,
		engine:    NewEngine(rules),
		log:       NewEventLog(clk, pauseAfter),
	}
	t.log.Record(Event{Type: EventSessionStart})
	return t
}

// ID returns the session ID.
func (t *Tracker) ID() string { return t.id }

// StartedAt returns the session start time.
func (t *Tracker) StartedAt() time.Time { return t.startedAt }

// Elapsed returns wall-clock time since session start.
func (t *Tracker) Elapsed() time.Duration {
	return t.clk.Now().Sub(t.startedAt)
}

// LastActivity returns the time of the most recent recorded event. Used by
// the API layer to evict trackers abandoned mid-write.
func (t *Tracker) LastActivity() time.Time {
	return time.UnixMilli(t.log.LastTimestamp())
}

// Content returns the current editor text.
func (t *Tracker) Content() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content
}

// WordCount returns the current word count.
func (t *Tracker) WordCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wordCount
}

// ApplyEdit records an editing event carrying a full snapshot of the editor
// text, updates the word count, re-evaluates the rules, and returns the
// active set. Only type/delete/paste are editing events.
func (t *Tracker) ApplyEdit(typ EventType, content string, sel *Selection) ([]Rule, error) {
	if !qualifiesForPause(typ) {
		return nil, fmt.Errorf("event type %q is not an edit: %w", typ, qerrors.ErrInvalidInput)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.submitted {
		return nil, qerrors.ErrSessionSubmitted
	}

	t.log.Record(Event{Type: typ, Content: content, Selection: sel})
	t.content = content
	t.wordCount = CountWords(content)
	return t.engine.Evaluate(t.wordCount, t.clk.Now().Sub(t.startedAt)), nil
}

// Mark records a non-editing interaction event (consent, wildcard decisions).
func (t *Tracker) Mark(typ EventType, wildcardID string) error {
	switch typ {
	case EventConsent, EventWildcardAccepted, EventWildcardDeclined:
	default:
		return fmt.Errorf("event type %q is not a marker: %w", typ, qerrors.ErrInvalidInput)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.submitted {
		return qerrors.ErrSessionSubmitted
	}
	t.log.Record(Event{Type: typ, WildcardID: wildcardID})
	return nil
}

// ActiveRules re-evaluates and returns the active subset in list order.
// Reads re-evaluate so that time-conditioned rules activate without an edit.
func (t *Tracker) ActiveRules() []Rule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Evaluate(t.wordCount, t.clk.Now().Sub(t.startedAt))
}

// Rules returns a snapshot of all rules in list order.
func (t *Tracker) Rules() []Rule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Rules()
}

// CompleteRule marks a rule completed and records the rule_completed event.
func (t *Tracker) CompleteRule(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.engine.Complete(id, t.clk.Now()); err != nil {
		return err
	}
	t.log.Record(Event{Type: EventRuleCompleted})
	return nil
}

// SkipRule marks an optional rule skipped and records the rule_skipped event.
func (t *Tracker) SkipRule(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.engine.Skip(id, t.clk.Now()); err != nil {
		return err
	}
	t.log.Record(Event{Type: EventRuleSkipped})
	return nil
}

// ActivateRule promotes a manual rule to active (operator-triggered).
func (t *Tracker) ActivateRule(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Activate(id)
}

// CanSubmit reports whether submission is allowed: every currently active
// mandatory rule must be completed.
func (t *Tracker) CanSubmit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine.Evaluate(t.wordCount, t.clk.Now().Sub(t.startedAt))
	return t.engine.MandatorySatisfied()
}

// Finalize gates submission, stamps the end time, drains the event log, and
// assembles the immutable session document. The tracker accepts no further
// events afterwards.
func (t *Tracker) Finalize(feedback, checkIn json.RawMessage) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.submitted {
		return Session{}, qerrors.ErrSessionSubmitted
	}

	now := t.clk.Now()
	t.engine.Evaluate(t.wordCount, now.Sub(t.startedAt))
	if !t.engine.MandatorySatisfied() {
		return Session{}, qerrors.ErrSubmissionBlocked
	}

	t.log.Record(Event{Type: EventSubmit})
	events := t.log.Drain()
	t.submitted = true

	return Assemble(t.id, t.content, t.wordCount, t.startedAt, now, events, t.engine.Rules(), feedback, checkIn), nil
}
