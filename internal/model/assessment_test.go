package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProcessingMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ProcessingMode
	}{
		{"traditional", ModeTraditional},
		{"multi_agent", ModeMultiAgent},
		{"mcp", ModeMCP},
		{"  MULTI_AGENT ", ModeMultiAgent},
	}
	for _, tt := range tests {
		got, err := ParseProcessingMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseProcessingModeInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "auto", "multiagent", "MultiAgent-v2"} {
		_, err := ParseProcessingMode(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrInvalidProcessingMode))
		assert.Contains(t, err.Error(), "allowed: traditional, multi_agent, mcp")
	}
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	a := TokenUsage{InputTokens: 100, OutputTokens: 50, CacheCreationTokens: 10, CacheReadTokens: 20, Cost: 0.01}
	a.Add(TokenUsage{InputTokens: 200, OutputTokens: 100, CacheCreationTokens: 5, CacheReadTokens: 30, Cost: 0.02})
	assert.Equal(t, 300, a.InputTokens)
	assert.Equal(t, 150, a.OutputTokens)
	assert.Equal(t, 15, a.CacheCreationTokens)
	assert.Equal(t, 50, a.CacheReadTokens)
	assert.InDelta(t, 0.03, a.Cost, 0.0001)

	a.Add(TokenUsage{})
	assert.Equal(t, 300, a.InputTokens)
}
