package llm

import (
	"context"
	"sync"
)

// ScriptedStep is one scripted turn of a fake provider: either a response or
// an error.
type ScriptedStep struct {
	Response *CompletionResponse
	Err      error
}

// ScriptedClient replays a fixed sequence of responses and records every
// request it receives. When the script runs out, the last step repeats.
// Intended for tests.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []ScriptedStep
	requests []CompletionRequest
	model    string
}

var _ Client = (*ScriptedClient)(nil)

// NewScriptedClient builds a fake provider from the given steps.
func NewScriptedClient(model string, steps ...ScriptedStep) *ScriptedClient {
	return &ScriptedClient{steps: steps, model: model}
}

// RespondWith is a convenience step carrying content and a finish reason.
func RespondWith(content, finishReason string) ScriptedStep {
	return ScriptedStep{Response: &CompletionResponse{
		Content:      content,
		FinishReason: finishReason,
		Model:        "scripted",
		Usage:        TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}}
}

// FailWith is a convenience step carrying an error.
func FailWith(err error) ScriptedStep {
	return ScriptedStep{Err: err}
}

func (s *ScriptedClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	idx := len(s.requests) - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	if idx < 0 {
		return &CompletionResponse{Content: "", FinishReason: FinishStop, Model: s.model}, nil
	}
	step := s.steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

func (s *ScriptedClient) Model() string {
	return s.model
}

// Calls returns how many requests the client has received.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Request returns the i-th received request.
func (s *ScriptedClient) Request(i int) CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}
