// Package llm contains the provider client and the continuation engine that
// stitches length-limited completions into a single artifact.
package llm

import "context"

// Message roles used on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reasons normalized across providers.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// Message represents one conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage from a follow-up call into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// CompletionRequest contains all parameters for one completion call.
type CompletionRequest struct {
	Messages []Message `json:"messages"`
	// Temperature is omitted from the wire request when nil; some providers
	// reject the parameter outright.
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
	ExtraParams map[string]any `json:"-"`
}

// CompletionResponse is the normalized provider response. Whatever shape the
// provider returns is converted into this at the transport boundary.
type CompletionResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Model        string     `json:"model"`
	Usage        TokenUsage `json:"usage"`
}

// Client represents any LLM provider.
type Client interface {
	// Complete sends messages and returns a normalized response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the provider-qualified model identifier.
	Model() string
}

// Temp returns a pointer to t, for CompletionRequest.Temperature.
func Temp(t float64) *float64 {
	return &t
}
