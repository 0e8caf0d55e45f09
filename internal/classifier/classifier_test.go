package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caserag/ragengine/internal/storage/models"
)

func TestClassifyBoundaries(t *testing.T) {
	c := New(20000, 60000)

	tests := []struct {
		name     string
		length   int
		category models.SizeCategory
		strategy models.Strategy
	}{
		{"one char", 1, models.SizeSmall, models.StrategyDirectLLM},
		{"just under small", 19999, models.SizeSmall, models.StrategyDirectLLM},
		{"at small threshold", 20000, models.SizeMedium, models.StrategyHybrid},
		{"just under medium", 59999, models.SizeMedium, models.StrategyHybrid},
		{"at medium threshold", 60000, models.SizeLarge, models.StrategyFullRAG},
		{"well over medium", 200000, models.SizeLarge, models.StrategyFullRAG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, strategy, err := c.Classify(strings.Repeat("x", tt.length))
			require.NoError(t, err)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.strategy, strategy)
		})
	}
}

func TestClassifyEmptyContent(t *testing.T) {
	c := New(20000, 60000)

	_, _, err := c.Classify("")
	require.ErrorIs(t, err, ErrEmptyContent)
}

func TestClassifyIdempotent(t *testing.T) {
	c := New(20000, 60000)
	content := strings.Repeat("a", 30000)

	cat1, strat1, err1 := c.Classify(content)
	cat2, strat2, err2 := c.Classify(content)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, cat1, cat2)
	assert.Equal(t, strat1, strat2)
}

func TestPriorityOrdering(t *testing.T) {
	assert.Greater(t, Priority(models.SizeSmall), Priority(models.SizeMedium))
	assert.Greater(t, Priority(models.SizeMedium), Priority(models.SizeLarge))
}

func TestScheduleDelayOrdering(t *testing.T) {
	assert.Less(t, ScheduleDelay(models.SizeSmall), ScheduleDelay(models.SizeMedium))
	assert.Less(t, ScheduleDelay(models.SizeMedium), ScheduleDelay(models.SizeLarge))
}
