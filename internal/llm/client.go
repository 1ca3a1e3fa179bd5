package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	recasterrors "recast/internal/errors"
	"recast/internal/id"
	"recast/internal/logging"
	"recast/internal/token"
)

// Config holds transport settings for one provider client.
type Config struct {
	Provider               string
	Model                  string
	APIKey                 string
	BaseURL                string
	TimeoutSeconds         int
	MaxTokens              int
	Temperature            float64
	ModelParams            map[string]any
	ExtendedThinkingTokens int
	StreamingThreshold     int
	Headers                map[string]string
}

// openaiClient speaks the OpenAI-compatible chat completions API. Providers
// with compatible gateways (openai, anthropic-via-proxy, ollama, openrouter)
// all go through this one transport.
type openaiClient struct {
	cfg        Config
	httpClient *http.Client
	logger     logging.Logger
}

var _ Client = (*openaiClient)(nil)

// DefaultStreamingThreshold is the token budget above which responses are
// streamed instead of buffered.
const DefaultStreamingThreshold = 16384

// NewClient constructs a provider client from config.
func NewClient(cfg Config) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model", recasterrors.ErrConfigurationMissing)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.StreamingThreshold <= 0 {
		cfg.StreamingThreshold = DefaultStreamingThreshold
	}

	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &openaiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("llm-" + cfg.Provider),
	}, nil
}

// Model returns the provider-qualified model string, e.g. "anthropic/claude-3".
func (c *openaiClient) Model() string {
	return ModelString(c.cfg.Provider, c.cfg.Model)
}

// ModelString builds the provider-prefixed model identifier.
func ModelString(provider, model string) string {
	if provider == "" {
		return model
	}
	if provider == "gemini" {
		provider = "google"
	}
	return provider + "/" + model
}

// shouldStream reports whether the configured token budget crosses the
// provider threshold once the extended-thinking allowance is added.
func (c *openaiClient) shouldStream(req CompletionRequest) bool {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	return maxTokens+c.cfg.ExtendedThinkingTokens > c.cfg.StreamingThreshold
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	requestID := id.NewRequestID()
	stream := req.Stream || c.shouldStream(req)

	wireReq := map[string]any{
		"model":    c.cfg.Model,
		"messages": req.Messages,
		"stream":   stream,
	}
	// Per-request temperature wins over the agent's configured one. Some
	// providers reject the parameter outright, so it is withheld for them.
	if !OmitsTemperature(c.cfg.Provider) {
		if req.Temperature != nil {
			wireReq["temperature"] = *req.Temperature
		} else if c.cfg.Temperature > 0 {
			wireReq["temperature"] = c.cfg.Temperature
		}
	}
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		wireReq["max_tokens"] = maxTokens
	} else if c.cfg.MaxTokens > 0 {
		wireReq["max_tokens"] = c.cfg.MaxTokens
	}
	// Provider-specific parameters from config, then per-request overrides.
	for k, v := range c.cfg.ModelParams {
		wireReq[k] = v
	}
	for k, v := range req.ExtraParams {
		wireReq[k] = v
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/chat/completions"
	c.logger.Debug("[%s] POST %s model=%s stream=%v", requestID, endpoint, c.cfg.Model, stream)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, recasterrors.Transient(err, "LLM request failed: "+err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, requestID)
	}

	if stream {
		return c.readStream(resp.Body, requestID, promptTokenEstimate(req.Messages))
	}
	return c.readResponse(resp.Body, requestID)
}

// statusError converts a non-200 response into the right error class.
func (c *openaiClient) statusError(resp *http.Response, requestID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	c.logger.Warn("[%s] %s", requestID, msg)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 0
		if v := resp.Header.Get("Retry-After"); v != "" {
			fmt.Sscanf(v, "%d", &retryAfter)
		}
		return &recasterrors.RateLimitError{
			Err:        fmt.Errorf("%s", msg),
			RetryAfter: retryAfter,
			Message:    msg,
		}
	case resp.StatusCode >= 500:
		return &recasterrors.TransientError{
			Err:        fmt.Errorf("%s", msg),
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	default:
		return &recasterrors.PermanentError{
			Err:        fmt.Errorf("%s", msg),
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}
}

// wireResponse mirrors the chat completions response layout.
type wireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *openaiClient) readResponse(body io.Reader, requestID string) (*CompletionResponse, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, recasterrors.Transient(err, "read response body")
	}

	var wire wireResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	out := &CompletionResponse{
		Content:      wire.Choices[0].Message.Content,
		FinishReason: wire.Choices[0].FinishReason,
		Model:        wire.Model,
		Usage: TokenUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}
	c.logger.Debug("[%s] finish=%s tokens=%d", requestID, out.FinishReason, out.Usage.TotalTokens)
	return out, nil
}

// streamChunk mirrors one SSE data payload of a streamed completion.
type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// promptTokenEstimate counts the prompt side of a streamed request so usage
// can be reconstructed when the provider omits it from the stream.
func promptTokenEstimate(messages []Message) int {
	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Content
	}
	return token.CountMessages(contents)
}

func (c *openaiClient) readStream(body io.Reader, requestID string, promptTokens int) (*CompletionResponse, error) {
	var content strings.Builder
	out := &CompletionResponse{FinishReason: FinishStop}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Debug("[%s] skipping malformed stream chunk: %v", requestID, err)
			continue
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.Usage = TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		for _, choice := range chunk.Choices {
			content.WriteString(choice.Delta.Content)
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				out.FinishReason = *choice.FinishReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, recasterrors.Transient(err, "read stream")
	}

	out.Content = content.String()
	// Not every provider emits usage on streams; reconstruct it from token
	// counts so downstream metrics never report zero.
	if out.Usage.TotalTokens == 0 {
		out.Usage = TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: token.Count(out.Content),
		}
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}
	c.logger.Debug("[%s] stream finished, finish=%s length=%d", requestID, out.FinishReason, len(out.Content))
	return out, nil
}
