package health

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_RunAll(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("up", func(ctx context.Context) Status { return StatusOK })
	c.Register("slow", func(ctx context.Context) Status { return StatusDegraded })

	results := c.RunAll(context.Background())
	assert.Equal(t, StatusOK, results["up"])
	assert.Equal(t, StatusDegraded, results["slow"])
}

func TestChecker_IsReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusOK })
	assert.True(t, c.IsReady(context.Background()))

	c.Register("broken", func(ctx context.Context) Status { return StatusDown })
	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_DegradedIsStillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusDegraded })
	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_CachedResults(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusOK })

	cached, lastRun := c.Cached()
	assert.Empty(t, cached)
	assert.True(t, lastRun.IsZero())

	c.RunAll(context.Background())

	cached, lastRun = c.Cached()
	require.Contains(t, cached, "db")
	assert.Equal(t, StatusOK, cached["db"])
	assert.False(t, lastRun.IsZero())
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.Empty(t, c.RunAll(context.Background()))
	assert.True(t, c.IsReady(context.Background()))
}
