// Package session implements the core capture model of a writing study:
// the prompt rule engine, the append-only interaction event log with pause
// detection, and assembly of the final immutable session document.
package session

// RuleType distinguishes prompts the participant must address from ones
// they may dismiss.
type RuleType string

const (
	RuleMandatory RuleType = "mandatory"
	RuleOptional  RuleType = "optional"
)

// ConditionKind selects how a rule's activation condition is evaluated.
type ConditionKind string

const (
	// CondWordCount activates when the editor word count reaches the threshold.
	CondWordCount ConditionKind = "word_count"
	// CondTime activates when elapsed session time (seconds) reaches the threshold.
	CondTime ConditionKind = "time"
	// CondManual has no automatic trigger; only an operator call activates it.
	CondManual ConditionKind = "manual"
)

// RuleStatus is the lifecycle state of a rule.
// completed and skipped are terminal: once reached they never revert.
type RuleStatus string

const (
	RuleInactive  RuleStatus = "inactive"
	RuleActive    RuleStatus = "active"
	RuleCompleted RuleStatus = "completed"
	RuleSkipped   RuleStatus = "skipped"
)

// Condition is a rule's activation condition. Threshold is a word count for
// word_count rules and whole seconds for time rules; it is ignored for manual.
type Condition struct {
	Kind      ConditionKind `json:"kind" yaml:"kind"`
	Threshold int           `json:"threshold" yaml:"threshold"`
}

// Rule is a writing prompt surfaced to the participant once its condition
// is met. CompletedAt/SkippedAt are ms-epoch timestamps, present only after
// the corresponding transition.
type Rule struct {
	ID          string     `json:"id" yaml:"id"`
	Content     string     `json:"content" yaml:"content"`
	Type        RuleType   `json:"type" yaml:"type"`
	Condition   Condition  `json:"condition" yaml:"condition"`
	Status      RuleStatus `json:"status,omitempty" yaml:"-"`
	CompletedAt *int64     `json:"completed_at,omitempty" yaml:"-"`
	SkippedAt   *int64     `json:"skipped_at,omitempty" yaml:"-"`
}

// Terminal reports whether the rule has reached a terminal state.
func (r *Rule) Terminal() bool {
	return r.Status == RuleCompleted || r.Status == RuleSkipped
}
