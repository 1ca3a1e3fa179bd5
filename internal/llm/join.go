package llm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// JoinStrategy identifies which seam-matching strategy produced a join.
type JoinStrategy string

const (
	JoinMarker   JoinStrategy = "marker"
	JoinExact    JoinStrategy = "exact"
	JoinHash     JoinStrategy = "hash"
	JoinToken    JoinStrategy = "token"
	JoinLLM      JoinStrategy = "llm"
	JoinFallback JoinStrategy = "fallback"
)

// hashWindowLines caps how deep into the continuation the sliding hash
// match looks for the repeated overlap.
const hashWindowLines = 20

// minTokenRun is the shortest common token run the token-level join accepts.
const minTokenRun = 5

// stripMarkers removes a marker-wrapped overlap echo from the head of a
// continuation. Returns the remainder and whether both markers were found.
func stripMarkers(continuation string) (string, bool) {
	begin := strings.Index(continuation, BeginOverlapMarker)
	if begin < 0 {
		return continuation, false
	}
	end := strings.Index(continuation[begin:], EndOverlapMarker)
	if end < 0 {
		return continuation, false
	}
	rest := continuation[begin+end+len(EndOverlapMarker):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")
	return rest, true
}

// exactJoin checks whether the continuation opens with the overlap window
// verbatim and, if so, returns the continuation with that echo removed.
func exactJoin(continuation string, overlap []string) (string, bool) {
	if len(overlap) == 0 {
		return "", false
	}
	lines := strings.Split(continuation, "\n")
	if len(lines) < len(overlap) {
		return "", false
	}
	for i, want := range overlap {
		if lines[i] != want {
			return "", false
		}
	}
	return strings.Join(lines[len(overlap):], "\n"), true
}

// normalizeLine strips all whitespace from a line; text content is also
// lowercased so prose survives casing drift across the seam.
func normalizeLine(line string, contentType ContentType) string {
	var b strings.Builder
	for _, r := range line {
		if r == ' ' || r == '\t' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if contentType == ContentText {
		s = strings.ToLower(s)
	}
	return s
}

func hashLines(lines []string, contentType ContentType) string {
	h := md5.New()
	for _, line := range lines {
		h.Write([]byte(normalizeLine(line, contentType)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashJoin slides windows of the overlap's length across the first
// hashWindowLines lines of the continuation, comparing normalized MD5
// hashes. A match means the model re-emitted the overlap with only
// whitespace (or, for text, casing) drift.
func hashJoin(continuation string, overlap []string, contentType ContentType) (string, bool) {
	if len(overlap) == 0 {
		return "", false
	}
	want := hashLines(overlap, contentType)
	lines := strings.Split(continuation, "\n")
	limit := min(len(lines)-len(overlap), hashWindowLines)
	for start := 0; start <= limit; start++ {
		if hashLines(lines[start:start+len(overlap)], contentType) == want {
			return strings.Join(lines[start+len(overlap):], "\n"), true
		}
	}
	return "", false
}

// tokenJoin looks for the longest common token run between the accumulated
// tail and the continuation head using diff equality spans. A run of at
// least minTokenRun tokens anchors the seam: everything in the continuation
// after that run is appended to everything in the tail before it ends.
func tokenJoin(accumulated, continuation string) (string, bool) {
	tail := accumulated
	prefixLen := 0
	if idx := nthLastNewline(accumulated, 40); idx >= 0 {
		prefixLen = idx + 1
		tail = accumulated[prefixLen:]
	}

	head := continuation
	if len(head) > 4096 {
		head = head[:4096]
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(tail, head, false)

	bestLen := 0
	tailOff, headOff := 0, 0
	bestTailEnd, bestHeadEnd := -1, -1
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			if tokens := len(strings.Fields(d.Text)); tokens >= minTokenRun && len(d.Text) > bestLen {
				bestLen = len(d.Text)
				bestTailEnd = tailOff + len(d.Text)
				bestHeadEnd = headOff + len(d.Text)
			}
			tailOff += len(d.Text)
			headOff += len(d.Text)
		case diffmatchpatch.DiffDelete:
			tailOff += len(d.Text)
		case diffmatchpatch.DiffInsert:
			headOff += len(d.Text)
		}
	}
	if bestTailEnd < 0 {
		return "", false
	}
	return accumulated[:prefixLen+bestTailEnd] + continuation[bestHeadEnd:], true
}

// llmJoin asks the model to splice the two fragments at temperature zero.
// Only structured content types qualify; the result is accepted when it is
// at least 80% as long as the two inputs combined, guarding against the
// model summarizing instead of splicing.
func llmJoin(ctx context.Context, client Client, accumulated, continuation string, contentType ContentType) (string, bool) {
	switch contentType {
	case ContentCode, ContentJSON, ContentJSONCode, ContentDiff:
	default:
		return "", false
	}
	if client == nil {
		return "", false
	}

	tail := accumulated
	if idx := nthLastNewline(tail, 60); idx >= 0 {
		tail = tail[idx+1:]
	}
	head := continuation
	if len(head) > 8192 {
		head = head[:8192]
	}

	resp, err := client.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You splice fragments of truncated model output. Respond with the spliced content only."},
			{Role: RoleUser, Content: stitchPrompt(tail, head, contentType)},
		},
		Temperature: Temp(0),
	})
	if err != nil || resp == nil {
		return "", false
	}
	stitched := resp.Content
	if len(stitched) < (len(tail)+len(head))*8/10 {
		return "", false
	}
	prefix := accumulated[:len(accumulated)-len(tail)]
	return prefix + stitched, true
}

// basicJoin is the last resort: a syntax-aware concatenation that cleans up
// the most common seam artifacts instead of pretending a match was found.
func basicJoin(accumulated, continuation string, contentType ContentType) string {
	tail := strings.TrimRight(accumulated, " \t")
	head := strings.TrimLeft(continuation, "\n")

	switch contentType {
	case ContentJSON, ContentJSONCode:
		trimmedTail := strings.TrimRight(tail, " \t\n")
		trimmedHead := strings.TrimLeft(head, " \t\n")
		// Duplicate closer at the seam: `}` + `}` or `]` + `]`.
		if len(trimmedTail) > 0 && len(trimmedHead) > 0 {
			last := trimmedTail[len(trimmedTail)-1]
			first := trimmedHead[0]
			if (last == '}' || last == ']' || last == ')') && first == last {
				head = strings.TrimLeft(trimmedHead[1:], " \t\n")
			}
			if last == ',' && strings.HasPrefix(trimmedHead, ",") {
				head = strings.TrimLeft(trimmedHead[1:], " \t\n")
			}
			if (last == ':' || last == '{') && !strings.HasPrefix(head, "\n") {
				head = strings.TrimLeft(head, " \t")
			}
		}
	}

	if tail == "" {
		return head
	}
	if strings.HasSuffix(tail, "\n") || head == "" {
		return tail + head
	}
	return tail + "\n" + head
}

// nthLastNewline returns the index of the n-th newline counted from the end
// of s, or -1 when s has fewer than n newlines.
func nthLastNewline(s string, n int) int {
	idx := len(s)
	for range n {
		i := strings.LastIndexByte(s[:idx], '\n')
		if i < 0 {
			return -1
		}
		idx = i
	}
	return idx
}
