package llm

import (
	"fmt"
	"strings"
)

// Markers the continuation prompt asks the model to wrap the repeated
// overlap in. Responses carrying both markers join trivially.
const (
	BeginOverlapMarker = "---BEGIN_EXACT_OVERLAP---"
	EndOverlapMarker   = "---END_EXACT_OVERLAP---"
)

// continuationPrompt builds the user turn that requests a continuation. The
// model must repeat the overlap between explicit markers, then continue.
func continuationPrompt(overlap []string, contentType ContentType) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Your previous response was cut off by the length limit. Continue the %s content.\n\n", contentType)
	b.WriteString("First repeat these exact lines verbatim, wrapped between the markers shown, then continue from where the content stops:\n\n")
	b.WriteString(BeginOverlapMarker + "\n")
	b.WriteString(strings.Join(overlap, "\n"))
	b.WriteString("\n" + EndOverlapMarker + "\n\n")

	switch contentType {
	case ContentCode, ContentJSONCode:
		b.WriteString("Preserve the exact indentation of every line. Do not close code fences that are still open. ")
		b.WriteString("Do not restate any line from before the overlap.")
		if contentType == ContentJSONCode {
			b.WriteString(" Keep JSON escape sequences intact: never split an escape like \\n or \\\" across the boundary.")
		}
	case ContentJSON:
		b.WriteString("Continue the JSON exactly where it stops. Keep escape sequences intact (never split \\n, \\\", or \\\\ across the boundary), ")
		b.WriteString("do not add commentary, and do not re-open completed objects.")
	case ContentDiff:
		b.WriteString("Continue the unified diff exactly where it stops. Keep hunk headers and +/- prefixes intact.")
	default:
		b.WriteString("Continue the text from exactly where it stops. Do not summarize or repeat earlier content.")
	}

	return b.String()
}

// stitchPrompt asks for a temperature-0 splice of two fragments whose seam
// could not be joined mechanically.
func stitchPrompt(tail, head string, contentType ContentType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Two fragments of the same %s artifact overlap at an unknown seam.\n\n", contentType)
	b.WriteString("FRAGMENT A (ends mid-content):\n")
	b.WriteString(tail)
	b.WriteString("\n\nFRAGMENT B (continuation, may repeat some of A's tail):\n")
	b.WriteString(head)
	b.WriteString("\n\nOutput the spliced content exactly once, with no duplicated region and no commentary. Output nothing except the spliced content.")
	return b.String()
}
