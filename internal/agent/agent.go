// Package agent provides the shared execution contract for every pipeline
// agent: config-driven prompts, LLM invocation through the continuation
// engine, response normalization, and lineage emission.
package agent

import (
	"context"
	"fmt"
	"time"

	"recast/internal/config"
	"recast/internal/lineage"
	"recast/internal/llm"
	"recast/internal/logging"
)

// Ops is the per-variant capability set. The Runtime supplies everything
// else: message assembly, the LLM call, response wrapping, and lineage.
type Ops interface {
	Kind() Kind
	// SystemPrompt resolves the agent's system prompt from config.
	SystemPrompt() string
	// FormatRequest renders the user message from the workflow context.
	FormatRequest(ctxData config.Config) (string, error)
	// RequiredKeys names context keys that must be present before the
	// agent runs. Empty means no preconditions.
	RequiredKeys() []string
}

// Response is the normalized result of one agent invocation. Success false
// always carries a non-empty Error; success true guarantees Data contains
// at least response and timestamp.
type Response struct {
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data"`
	Error     string         `json:"error,omitempty"`
	Messages  []llm.Message  `json:"messages,omitempty"`
	RawOutput string         `json:"raw_output,omitempty"`
	Metrics   map[string]any `json:"metrics,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// Err preserves the underlying failure so callers can classify it for
	// retry decisions. Not serialized; Error carries the message.
	Err error `json:"-"`
}

// Completer is the slice of the continuation engine the runtime needs.
type Completer interface {
	CompleteWithDiagnostics(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, llm.Diagnostics, error)
	Model() string
}

// Runtime executes one agent. It does not retry; bounded retries belong to
// the task wrapper above it.
type Runtime struct {
	ops     Ops
	engine  Completer
	tracker *lineage.Tracker
	logger  logging.Logger
}

// NewRuntime wires an agent variant to its engine and tracker.
func NewRuntime(ops Ops, engine Completer, tracker *lineage.Tracker, logger logging.Logger) *Runtime {
	return &Runtime{ops: ops, engine: engine, tracker: tracker, logger: logging.OrNop(logger)}
}

// Kind returns the wrapped variant's kind.
func (r *Runtime) Kind() Kind { return r.ops.Kind() }

// Process runs the agent against the workflow context. Exactly one lineage
// event is emitted whether the invocation succeeds or fails.
func (r *Runtime) Process(ctx context.Context, ctxData config.Config) Response {
	lineageCtx := r.prepareLineageContext(ctxData)

	for _, key := range r.ops.RequiredKeys() {
		if config.Get(lineageCtx, key) == nil {
			return r.failure(lineageCtx, nil, fmt.Errorf("missing required context key %q", key))
		}
	}

	userMessage, err := r.ops.FormatRequest(lineageCtx)
	if err != nil {
		return r.failure(lineageCtx, nil, fmt.Errorf("format request: %w", err))
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: r.ops.SystemPrompt()},
		{Role: llm.RoleUser, Content: userMessage},
	}

	r.logger.Info("%s: sending request (user=%d chars)", r.ops.Kind(), len(userMessage))
	resp, diag, err := r.engine.CompleteWithDiagnostics(ctx, llm.CompletionRequest{Messages: messages})
	if err != nil {
		return r.failure(lineageCtx, messages, err)
	}

	metrics := map[string]any{
		"token_usage": map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
		"continuation": diag.Map(),
	}

	event := r.track(lineageCtx, lineage.Interaction{
		Messages:         messages,
		FormattedRequest: userMessage,
		Response:         resp,
		Metrics:          metrics,
	})

	now := time.Now().UTC()
	executionMeta := map[string]any{
		"agent_execution_id": config.GetString(lineageCtx, "agent_execution_id"),
		"parent_id":          config.GetString(lineageCtx, "parent_id"),
		"workflow_run_id":    config.GetString(lineageCtx, "workflow_run_id"),
		"agent_type":         r.ops.Kind().String(),
		"timestamp":          now.Format(time.RFC3339),
	}
	if event != nil {
		executionMeta["execution_path"] = event.Workflow.ExecutionPath
	}
	data := map[string]any{
		"response":           resp.Content,
		"raw_output":         resp.Content,
		"timestamp":          now.Format(time.RFC3339),
		"usage":              metrics["token_usage"],
		"execution_metadata": executionMeta,
	}

	return Response{
		Success:   true,
		Data:      data,
		Messages:  messages,
		RawOutput: resp.Content,
		Metrics:   metrics,
		Timestamp: now,
	}
}

// prepareLineageContext threads tracking ids through the context. A context
// that already carries an agent_execution_id is passed through untouched so
// callers can pre-assign lineage.
func (r *Runtime) prepareLineageContext(ctxData config.Config) config.Config {
	if config.GetString(ctxData, "agent_execution_id") != "" {
		return ctxData
	}
	runID, ok := lineage.RunIDFrom(ctxData)
	if !ok && r.tracker != nil {
		runID = r.tracker.RunID()
	}
	parentID := config.GetString(ctxData, "parent_id")
	step := config.GetInt(ctxData, "step", 0)
	return lineage.AgentContext(runID, r.ops.Kind().String(), parentID, step, ctxData)
}

func (r *Runtime) failure(lineageCtx config.Config, messages []llm.Message, err error) Response {
	r.logger.Error("%s: %v", r.ops.Kind(), err)
	r.track(lineageCtx, lineage.Interaction{Messages: messages, Err: err})
	return Response{
		Success:   false,
		Data:      map[string]any{},
		Error:     err.Error(),
		Messages:  messages,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func (r *Runtime) track(lineageCtx config.Config, in lineage.Interaction) *lineage.Event {
	if r.tracker == nil {
		return nil
	}
	in.EventID = config.GetString(lineageCtx, "agent_execution_id")
	return r.tracker.TrackLLMInteraction(lineageCtx, in)
}
