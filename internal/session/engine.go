package session

import (
	"fmt"
	"time"

	qerrors "github.com/inklab/quill/internal/errors"
)

// Engine holds the fixed rule list for one session and drives activation.
// It is not safe for concurrent use; the owning Tracker serializes access.
type Engine struct {
	rules []*Rule
}

// NewEngine creates an engine from a rule list. Rules start inactive unless
// the input already carries a status (resume path).
func NewEngine(rules []Rule) *Engine {
	e := &Engine{rules: make([]*Rule, 0, len(rules))}
	for i := range rules {
		r := rules[i]
		if r.Status == "" {
			r.Status = RuleInactive
		}
		e.rules = append(e.rules, &r)
	}
	return e
}

// Evaluate recomputes activation for every non-terminal rule and returns the
// active subset in list order. The recomputation is idempotent: it may run on
// every word-count or time tick. Manual rules are excluded from automatic
// evaluation but still appear in the output once an operator activates them.
func (e *Engine) Evaluate(wordCount int, elapsed time.Duration) []Rule {
	var active []Rule
	for _, r := range e.rules {
		if !r.Terminal() && r.Condition.Kind != CondManual {
			if e.shouldActivate(r, wordCount, elapsed) {
				r.Status = RuleActive
			} else {
				r.Status = RuleInactive
			}
		}
		if r.Status == RuleActive {
			active = append(active, *r)
		}
	}
	return active
}

func (e *Engine) shouldActivate(r *Rule, wordCount int, elapsed time.Duration) bool {
	switch r.Condition.Kind {
	case CondWordCount:
		return wordCount >= r.Condition.Threshold
	case CondTime:
		return elapsed >= time.Duration(r.Condition.Threshold)*time.Second
	default:
		return false
	}
}

// Activate promotes a manual rule to active. Automatic-condition rules are
// rejected; their state belongs to Evaluate.
func (e *Engine) Activate(id string) error {
	r, err := e.find(id)
	if err != nil {
		return err
	}
	if r.Condition.Kind != CondManual {
		return fmt.Errorf("rule %s: %w", id, qerrors.ErrNotManual)
	}
	if r.Terminal() {
		return fmt.Errorf("rule %s: %w", id, qerrors.ErrTerminalState)
	}
	r.Status = RuleActive
	return nil
}

// Complete transitions an active rule to completed and stamps CompletedAt.
func (e *Engine) Complete(id string, now time.Time) error {
	r, err := e.find(id)
	if err != nil {
		return err
	}
	if r.Terminal() {
		return fmt.Errorf("rule %s: %w", id, qerrors.ErrTerminalState)
	}
	if r.Status != RuleActive {
		return fmt.Errorf("rule %s: %w", id, qerrors.ErrNotActive)
	}
	ts := now.UnixMilli()
	r.Status = RuleCompleted
	r.CompletedAt = &ts
	return nil
}

// Skip transitions an active optional rule to skipped and stamps SkippedAt.
// Mandatory rules have no skip affordance; this is a precondition, not a UI
// omission.
func (e *Engine) Skip(id string, now time.Time) error {
	r, err := e.find(id)
	if err != nil {
		return err
	}
	if r.Terminal() {
		return fmt.Errorf("rule %s: %w", id, qerrors.ErrTerminalState)
	}
	if r.Type == RuleMandatory {
		return fmt.Errorf("rule %s: %w", id, qerrors.ErrMandatorySkip)
	}
	if r.Status != RuleActive {
		return fmt.Errorf("rule %s: %w", id, qerrors.ErrNotActive)
	}
	ts := now.UnixMilli()
	r.Status = RuleSkipped
	r.SkippedAt = &ts
	return nil
}

// MandatorySatisfied reports whether every currently active mandatory rule
// has been completed. Mandatory rules that never activated do not block.
func (e *Engine) MandatorySatisfied() bool {
	for _, r := range e.rules {
		if r.Type == RuleMandatory && r.Status == RuleActive {
			return false
		}
	}
	return true
}

// Rules returns a snapshot copy of all rules in list order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, *r)
	}
	return out
}

func (e *Engine) find(id string) (*Rule, error) {
	for _, r := range e.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("rule %s: %w", id, qerrors.ErrNotFound)
}
