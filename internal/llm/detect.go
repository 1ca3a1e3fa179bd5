package llm

import "strings"

// ContentType selects overlap heuristics and continuation prompt wording.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentCode     ContentType = "code"
	ContentJSON     ContentType = "json"
	ContentJSONCode ContentType = "json_code"
	ContentDiff     ContentType = "diff"
)

// DetectContentType inspects the user messages to classify the artifact the
// model is being asked to produce.
func DetectContentType(messages []Message) ContentType {
	isCode := false
	isJSON := false
	isDiff := false

	for _, msg := range messages {
		if msg.Role != RoleUser {
			continue
		}
		content := msg.Content
		trimmed := strings.TrimSpace(content)

		if strings.Contains(content, "```") || strings.Contains(content, "def ") {
			isCode = true
		}
		if strings.Contains(strings.ToLower(content), "json") ||
			strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			isJSON = true
		}
		if strings.Contains(content, "--- ") && strings.Contains(content, "+++ ") {
			isDiff = true
		}
	}

	switch {
	case isCode && isJSON:
		return ContentJSONCode
	case isCode:
		return ContentCode
	case isJSON:
		return ContentJSON
	case isDiff:
		return ContentDiff
	default:
		return ContentText
	}
}
