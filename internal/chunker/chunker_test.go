package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50)
	first := Split(text, 120, 24)
	second := Split(text, 120, 24)
	require.Equal(t, first, second)
	require.NotEmpty(t, first)
}

func TestSplitOverlapContinuity(t *testing.T) {
	text := strings.Repeat("0123456789", 30)
	size, overlap := 100, 20
	segments := Split(text, size, overlap)
	require.Greater(t, len(segments), 1)
	for i := 1; i < len(segments); i++ {
		prev := []rune(segments[i-1])
		tail := string(prev[len(prev)-overlap:])
		require.True(t, strings.HasPrefix(segments[i], tail),
			"segment %d must start with the previous segment's overlap", i)
	}
	// Concatenating segments minus their overlap rebuilds the input.
	var b strings.Builder
	b.WriteString(segments[0])
	for i := 1; i < len(segments); i++ {
		b.WriteString(string([]rune(segments[i])[overlap:]))
	}
	require.Equal(t, text, b.String())
}

func TestSplitClampsOversizedOverlap(t *testing.T) {
	text := strings.Repeat("x", 500)
	segments := Split(text, 100, 100)
	require.NotEmpty(t, segments)
	// Clamped to size/5, so the step is 80 runes and the last segment
	// ends exactly at the input end.
	require.Len(t, segments, 6)
	require.Equal(t, strings.Repeat("x", 100), segments[len(segments)-1])
}

func TestSplitEmptyInput(t *testing.T) {
	require.Nil(t, Split("", 100, 20))
	require.Nil(t, Split("text", 0, 0))
}

func TestSplitMultibyteRunes(t *testing.T) {
	text := strings.Repeat("世界和平", 50)
	segments := Split(text, 30, 5)
	for _, seg := range segments {
		require.LessOrEqual(t, len([]rune(seg)), 30)
	}
}

func TestParamsForTiers(t *testing.T) {
	tests := []struct {
		name   string
		tokens int
		want   Params
	}{
		{"small", 1_000, Params{ChunkTokens: 300, OverlapTokens: 60, BatchSize: 8}},
		{"medium", 10_000, Params{ChunkTokens: 400, OverlapTokens: 80, BatchSize: 16}},
		{"large", 50_000, Params{ChunkTokens: 512, OverlapTokens: 64, BatchSize: 24}},
		{"huge", 200_000, Params{ChunkTokens: 768, OverlapTokens: 48, BatchSize: 32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParamsFor(tt.tokens*DefaultCharsPerToken, DefaultCharsPerToken)
			require.Equal(t, tt.want, got)
		})
	}
}
