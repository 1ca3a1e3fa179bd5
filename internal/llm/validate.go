package llm

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"recast/internal/logging"
)

// bracketsBalanced reports whether {}, [] and () are balanced outside of
// string literals. Used as a cheap advisory check on joined code.
func bracketsBalanced(content string) bool {
	var stack []byte
	inString := byte(0)
	escaped := false
	for i := 0; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
		case '{', '[', '(':
			stack = append(stack, c)
		case '}', ']', ')':
			if len(stack) == 0 {
				return false
			}
			open := stack[len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') || (c == ')' && open != '(') {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// validateJoined runs content-type specific structure checks on the joined
// result. Failures never reject the join: they are logged, and for JSON
// content a repair is attempted. Returns the (possibly repaired) content
// and whether a structural repair was applied.
func validateJoined(content string, contentType ContentType, logger logging.Logger) (string, bool) {
	switch contentType {
	case ContentCode:
		if !bracketsBalanced(content) {
			logger.Warn("continuation: joined code has unbalanced brackets")
		}
		return content, false
	case ContentJSON, ContentJSONCode:
		return validateJSON(content, logger)
	default:
		return content, false
	}
}

func validateJSON(content string, logger logging.Logger) (string, bool) {
	candidate := jsonPrefix(content)
	if candidate == "" {
		candidate = content
	}
	if json.Valid([]byte(candidate)) {
		return content, false
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		logger.Warn("continuation: joined JSON is invalid and unrepairable: %v", err)
		return content, false
	}
	logger.Warn("continuation: joined JSON required structural repair")
	if candidate == content {
		return repaired, true
	}
	return strings.Replace(content, candidate, repaired, 1), true
}

// jsonPrefix extracts the largest plausible JSON document from content:
// from the first opening brace or bracket through the last closing one.
func jsonPrefix(content string) string {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(content, "}]")
	if end < start {
		return ""
	}
	return content[start : end+1]
}
