package llm

import (
	"strings"

	"recast/internal/token"
)

// Overlap window bounds per content type, in lines. Code windows may expand
// past their normal maximum when the tail cuts a multi-line literal.
type overlapBounds struct {
	min, max                 int
	expandedMin, expandedMax int
}

func boundsFor(contentType ContentType) overlapBounds {
	switch contentType {
	case ContentCode, ContentJSONCode:
		return overlapBounds{min: 5, max: 15, expandedMin: 15, expandedMax: 30}
	case ContentJSON, ContentDiff:
		return overlapBounds{min: 8, max: 20, expandedMin: 8, expandedMax: 20}
	default:
		return overlapBounds{min: 3, max: 10, expandedMin: 3, expandedMax: 10}
	}
}

// overlapTokenBudget caps how much of the accumulated tail is replayed to the
// model; oversized windows waste continuation budget.
const overlapTokenBudget = 600

// overlapWindow computes the tail slice of accumulated content the model must
// repeat verbatim at the start of its continuation.
func overlapWindow(accumulated string, contentType ContentType) []string {
	lines := strings.Split(accumulated, "\n")
	bounds := boundsFor(contentType)

	want := bounds.max
	if (contentType == ContentCode || contentType == ContentJSONCode) &&
		hasUnterminatedLiteral(tailLines(lines, bounds.max)) {
		want = bounds.expandedMax
	}
	if want > len(lines) {
		want = len(lines)
	}

	window := tailLines(lines, want)

	// Trim the window down to the token budget, but never below the minimum.
	for len(window) > bounds.min && token.Count(strings.Join(window, "\n")) > overlapTokenBudget {
		window = window[1:]
	}
	return window
}

func tailLines(lines []string, n int) []string {
	if n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

// hasUnterminatedLiteral reports whether the window appears to cut a
// multi-line string: an odd number of triple-quote or backtick fences.
func hasUnterminatedLiteral(window []string) bool {
	joined := strings.Join(window, "\n")
	for _, fence := range []string{`"""`, "'''", "```"} {
		if strings.Count(joined, fence)%2 == 1 {
			return true
		}
	}
	// A line ending in a lone backslash continues a string on the next line.
	if len(window) > 0 {
		last := window[len(window)-1]
		if strings.HasSuffix(last, `\`) && !strings.HasSuffix(last, `\\`) {
			return true
		}
	}
	return false
}
