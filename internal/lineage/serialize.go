package lineage

import (
	"fmt"
	"time"

	"recast/internal/llm"
)

// Serialize converts an arbitrary value into a JSON-encodable shape.
// Primitives pass through; timestamps become ISO-8601 UTC strings; LLM
// responses are reduced to their content, finish reason, model, and usage;
// anything unrecognized degrades to a descriptive string.
func Serialize(value any) any {
	switch v := value.(type) {
	case nil, bool, int, int32, int64, float32, float64, string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *llm.CompletionResponse:
		if v == nil {
			return nil
		}
		return map[string]any{
			"content":       v.Content,
			"finish_reason": v.FinishReason,
			"model":         v.Model,
			"usage": map[string]any{
				"prompt_tokens":     v.Usage.PromptTokens,
				"completion_tokens": v.Usage.CompletionTokens,
				"total_tokens":      v.Usage.TotalTokens,
			},
		}
	case llm.CompletionResponse:
		return Serialize(&v)
	case []llm.Message:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = map[string]any{"role": m.Role, "content": m.Content}
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Serialize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Serialize(item)
		}
		return out
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v (type: %T)", v, v)
	}
}
