// Package rules loads the prompt catalog surfaced during a writing session.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inklab/quill/internal/session"
)

// Wildcard is a special optional prompt offering a pre-written story opener.
// Accept/decline decisions are recorded in the session event log.
type Wildcard struct {
	ID           string `yaml:"id" json:"id"`
	Opener       string `yaml:"opener" json:"opener"`
	DelaySeconds int    `yaml:"delay_seconds" json:"delay_seconds"`
}

// Catalog is the fixed set of rules and wildcards for a study condition.
type Catalog struct {
	Rules     []session.Rule `yaml:"rules" json:"rules"`
	Wildcards []Wildcard     `yaml:"wildcards" json:"wildcards"`
}

// Load reads and validates a catalog from a YAML file. An empty path returns
// the built-in default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Validate checks catalog integrity: unique IDs, known types and condition
// kinds, non-negative thresholds.
func (c *Catalog) Validate() error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("catalog has no rules")
	}

	seen := make(map[string]bool, len(c.Rules)+len(c.Wildcards))
	for i, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d: missing id", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate id %q", r.ID)
		}
		seen[r.ID] = true

		if r.Content == "" {
			return fmt.Errorf("rule %s: missing content", r.ID)
		}
		switch r.Type {
		case session.RuleMandatory, session.RuleOptional:
		default:
			return fmt.Errorf("rule %s: unknown type %q", r.ID, r.Type)
		}
		switch r.Condition.Kind {
		case session.CondWordCount, session.CondTime:
			if r.Condition.Threshold < 0 {
				return fmt.Errorf("rule %s: negative threshold", r.ID)
			}
		case session.CondManual:
		default:
			return fmt.Errorf("rule %s: unknown condition kind %q", r.ID, r.Condition.Kind)
		}
	}

	for i, w := range c.Wildcards {
		if w.ID == "" {
			return fmt.Errorf("wildcard %d: missing id", i)
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate id %q", w.ID)
		}
		seen[w.ID] = true
		if w.Opener == "" {
			return fmt.Errorf("wildcard %s: missing opener", w.ID)
		}
	}
	return nil
}

// FindWildcard returns the wildcard with the given ID, or nil.
func (c *Catalog) FindWildcard(id string) *Wildcard {
	for i := range c.Wildcards {
		if c.Wildcards[i].ID == id {
			return &c.Wildcards[i]
		}
	}
	return nil
}

// SessionRules returns a fresh copy of the rule list for a new session.
// Each session owns its own rule state.
func (c *Catalog) SessionRules() []session.Rule {
	out := make([]session.Rule, len(c.Rules))
	copy(out, c.Rules)
	return out
}

// Default returns the built-in catalog used when no file is configured.
func Default() *Catalog {
	return &Catalog{
		Rules: []session.Rule{
			{
				ID:        "setting-shift",
				Content:   "Move your story to a place the narrator has never been.",
				Type:      session.RuleMandatory,
				Condition: session.Condition{Kind: session.CondWordCount, Threshold: 50},
			},
			{
				ID:        "new-voice",
				Content:   "Introduce a character who disagrees with your narrator.",
				Type:      session.RuleMandatory,
				Condition: session.Condition{Kind: session.CondWordCount, Threshold: 120},
			},
			{
				ID:        "sensory-detail",
				Content:   "Describe something only a machine could notice.",
				Type:      session.RuleOptional,
				Condition: session.Condition{Kind: session.CondTime, Threshold: 300},
			},
			{
				ID:        "time-jump",
				Content:   "Jump forward at least a decade in a single sentence.",
				Type:      session.RuleOptional,
				Condition: session.Condition{Kind: session.CondTime, Threshold: 600},
			},
			{
				ID:        "facilitator-cue",
				Content:   "Respond to the facilitator's prompt.",
				Type:      session.RuleOptional,
				Condition: session.Condition{Kind: session.CondManual},
			},
		},
		Wildcards: []Wildcard{
			{
				ID:           "opener-signal",
				Opener:       "The first signal arrived on a Tuesday, disguised as a weather report.",
				DelaySeconds: 60,
			},
		},
	}
}
