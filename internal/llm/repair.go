package llm

import "strings"

// repairEscapeArtifacts fixes escape sequences broken by a continuation
// boundary. The typical artifact is a backslash followed by a literal
// newline inside a string: the model emitted `\` at the cut point and
// restarted with `n`, leaving `\` + "\n" where `\n` belonged.
func repairEscapeArtifacts(content string, contentType ContentType) (string, bool) {
	switch contentType {
	case ContentJSON, ContentJSONCode:
	default:
		return content, false
	}

	repaired := false
	var b strings.Builder
	b.Grow(len(content))

	inString := false
	for i := 0; i < len(content); i++ {
		c := content[i]
		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if c == '\\' && inString && i+1 < len(content) {
			next := content[i+1]
			if next == '\n' || next == '\r' {
				// Backslash split from its escape char at the seam.
				b.WriteString(`\n`)
				repaired = true
				i++
				if next == '\r' && i+1 < len(content) && content[i+1] == '\n' {
					i++
				}
				continue
			}
			b.WriteByte(c)
			b.WriteByte(next)
			i++
			continue
		}
		b.WriteByte(c)
	}

	return b.String(), repaired
}
