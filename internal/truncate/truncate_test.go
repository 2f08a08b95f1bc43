package truncate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestEnforce_UnderLimitUntouched(t *testing.T) {
	text := strings.Repeat("a", MaxResponseBytes)
	got, truncated := Enforce(text, MaxResponseBytes)
	assert.False(t, truncated)
	assert.Equal(t, text, got)
}

func TestEnforce_CutsToExactlyTheLimit(t *testing.T) {
	text := strings.Repeat("a", MaxResponseBytes+1234)
	got, truncated := Enforce(text, MaxResponseBytes)
	assert.True(t, truncated)
	assert.Len(t, got, MaxResponseBytes)
}

func TestEnforce_MeasuresBytesNotRunes(t *testing.T) {
	// "é" is two bytes: 6 runes, 12 bytes.
	text := strings.Repeat("é", 6)
	got, truncated := Enforce(text, 8)
	assert.True(t, truncated)
	assert.Equal(t, strings.Repeat("é", 4), got)
}

func TestEnforce_NeverSplitsARune(t *testing.T) {
	text := "ab" + strings.Repeat("€", 3) // € is three bytes
	got, truncated := Enforce(text, 4)
	assert.True(t, truncated)
	assert.Equal(t, "ab", got)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 4)
}

func TestEnforce_ZeroAndNegativeLimit(t *testing.T) {
	got, truncated := Enforce("abc", 0)
	assert.True(t, truncated)
	assert.Empty(t, got)

	got, truncated = Enforce("abc", -5)
	assert.True(t, truncated)
	assert.Empty(t, got)
}

func TestExceeds(t *testing.T) {
	assert.False(t, Exceeds(strings.Repeat("x", MaxRenderedPromptBytes), MaxRenderedPromptBytes))
	assert.True(t, Exceeds(strings.Repeat("x", MaxRenderedPromptBytes+1), MaxRenderedPromptBytes))
}
