package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklab/quill/internal/session"
)

func writeCatalog(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Rules)
	assert.NoError(t, cat.Validate())
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeCatalog(t, `
rules:
  - id: warmup
    content: "Write a single true sentence."
    type: mandatory
    condition:
      kind: word_count
      threshold: 25
  - id: nudge
    content: "Respond to the facilitator."
    type: optional
    condition:
      kind: manual
wildcards:
  - id: opener
    opener: "It began, as these things do, with a list."
    delay_seconds: 30
`)

	cat, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cat.Rules, 2)
	require.Len(t, cat.Wildcards, 1)

	assert.Equal(t, "warmup", cat.Rules[0].ID)
	assert.Equal(t, session.RuleMandatory, cat.Rules[0].Type)
	assert.Equal(t, session.CondWordCount, cat.Rules[0].Condition.Kind)
	assert.Equal(t, 25, cat.Rules[0].Condition.Threshold)
	assert.Equal(t, 30, cat.Wildcards[0].DelaySeconds)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/rules.yaml")
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidCatalog(t *testing.T) {
	path := writeCatalog(t, `
rules:
  - id: bad
    content: "A prompt."
    type: sometimes
    condition:
      kind: word_count
      threshold: 10
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown type")
}

func TestValidate(t *testing.T) {
	base := func() *Catalog {
		return &Catalog{
			Rules: []session.Rule{{
				ID:        "r1",
				Content:   "A prompt.",
				Type:      session.RuleOptional,
				Condition: session.Condition{Kind: session.CondTime, Threshold: 60},
			}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("no rules", func(t *testing.T) {
		assert.ErrorContains(t, (&Catalog{}).Validate(), "no rules")
	})

	t.Run("duplicate rule id", func(t *testing.T) {
		c := base()
		c.Rules = append(c.Rules, c.Rules[0])
		assert.ErrorContains(t, c.Validate(), "duplicate id")
	})

	t.Run("wildcard id collides with rule id", func(t *testing.T) {
		c := base()
		c.Wildcards = []Wildcard{{ID: "r1", Opener: "Once."}}
		assert.ErrorContains(t, c.Validate(), "duplicate id")
	})

	t.Run("missing content", func(t *testing.T) {
		c := base()
		c.Rules[0].Content = ""
		assert.ErrorContains(t, c.Validate(), "missing content")
	})

	t.Run("unknown condition kind", func(t *testing.T) {
		c := base()
		c.Rules[0].Condition.Kind = "moon_phase"
		assert.ErrorContains(t, c.Validate(), "unknown condition kind")
	})

	t.Run("negative threshold", func(t *testing.T) {
		c := base()
		c.Rules[0].Condition.Threshold = -1
		assert.ErrorContains(t, c.Validate(), "negative threshold")
	})

	t.Run("wildcard missing opener", func(t *testing.T) {
		c := base()
		c.Wildcards = []Wildcard{{ID: "w1"}}
		assert.ErrorContains(t, c.Validate(), "missing opener")
	})
}

func TestFindWildcard(t *testing.T) {
	cat := Default()
	require.NotEmpty(t, cat.Wildcards)

	found := cat.FindWildcard(cat.Wildcards[0].ID)
	require.NotNil(t, found)
	assert.NotEmpty(t, found.Opener)

	assert.Nil(t, cat.FindWildcard("missing"))
}

func TestSessionRules_ReturnsIndependentCopy(t *testing.T) {
	cat := Default()

	a := cat.SessionRules()
	a[0].Status = session.RuleCompleted

	b := cat.SessionRules()
	assert.NotEqual(t, session.RuleCompleted, b[0].Status, "sessions must not share rule state")
}
