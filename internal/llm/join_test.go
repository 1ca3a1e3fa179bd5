package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripMarkers(t *testing.T) {
	continuation := BeginOverlapMarker + "\nline a\nline b\n" + EndOverlapMarker + "\nline c\nline d"
	rest, ok := stripMarkers(continuation)
	require.True(t, ok)
	assert.Equal(t, "line c\nline d", rest)

	_, ok = stripMarkers("no markers here")
	assert.False(t, ok)

	_, ok = stripMarkers(BeginOverlapMarker + "\nopened but never closed")
	assert.False(t, ok)
}

func TestExactJoin(t *testing.T) {
	overlap := []string{"def foo():", "    return 1"}

	rest, ok := exactJoin("def foo():\n    return 1\n\ndef bar():", overlap)
	require.True(t, ok)
	assert.Equal(t, "\ndef bar():", rest)

	_, ok = exactJoin("def foo():\n    return 2\n", overlap)
	assert.False(t, ok, "mismatched line must not join")

	_, ok = exactJoin("short", overlap)
	assert.False(t, ok)
}

func TestHashJoinToleratesWhitespaceDrift(t *testing.T) {
	overlap := []string{"def foo():", "    return 1"}
	// Re-emitted with tabs instead of spaces, after one preamble line.
	continuation := "Continuing:\ndef foo():\n\treturn 1\nnext line"

	rest, ok := hashJoin(continuation, overlap, ContentCode)
	require.True(t, ok)
	assert.Equal(t, "next line", rest)
}

func TestHashJoinLowercasesText(t *testing.T) {
	overlap := []string{"The Quick Brown Fox"}
	rest, ok := hashJoin("the quick brown fox\njumps over", overlap, ContentText)
	require.True(t, ok)
	assert.Equal(t, "jumps over", rest)

	_, ok = hashJoin("the quick brown fox\njumps over", overlap, ContentCode)
	assert.False(t, ok, "code comparison is case sensitive")
}

func TestHashJoinWindowLimit(t *testing.T) {
	overlap := []string{"needle"}
	var b strings.Builder
	for range 30 {
		b.WriteString("filler\n")
	}
	b.WriteString("needle\nafter")
	_, ok := hashJoin(b.String(), overlap, ContentCode)
	assert.False(t, ok, "matches past the lookahead window must be ignored")
}

func TestTokenJoin(t *testing.T) {
	accumulated := "alpha beta gamma delta\nepsilon zeta eta theta iota kappa"
	continuation := "zeta eta theta iota kappa\nlambda mu nu"

	joined, ok := tokenJoin(accumulated, continuation)
	require.True(t, ok)
	assert.Equal(t, "alpha beta gamma delta\nepsilon zeta eta theta iota kappa\nlambda mu nu", joined)
}

func TestTokenJoinRequiresMinimumRun(t *testing.T) {
	_, ok := tokenJoin("alpha beta", "beta\ncompletely different content")
	assert.False(t, ok, "a one-token overlap is not a seam")
}

func TestBasicJoinJSONSeams(t *testing.T) {
	joined := basicJoin(`{"a": 1}`, `}`, ContentJSON)
	assert.Equal(t, `{"a": 1}`, joined, "duplicate closer dropped")

	joined = basicJoin(`{"a": 1,`, `, "b": 2}`, ContentJSON)
	assert.Equal(t, "{\"a\": 1,\n\"b\": 2}", joined, "double comma collapsed")

	joined = basicJoin("plain tail", "plain head", ContentText)
	assert.Equal(t, "plain tail\nplain head", joined)

	joined = basicJoin("ends with newline\n", "head", ContentText)
	assert.Equal(t, "ends with newline\nhead", joined)
}
