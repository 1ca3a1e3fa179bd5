// Package lineage records every agent LLM interaction as a parent-linked
// event so a workflow can be inspected or replayed from any stage.
package lineage

import "time"

// AgentInfo identifies the agent that produced an event.
type AgentInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// WorkflowInfo carries the run-scoped identity of an event. RunID is stable
// for the whole workflow run; ParentID links to the event whose output fed
// this agent, empty for the entry agent.
type WorkflowInfo struct {
	RunID         string   `json:"run_id"`
	ParentID      string   `json:"parent_id,omitempty"`
	Step          int      `json:"step,omitempty"`
	ExecutionPath []string `json:"execution_path"`
}

// LLMInput snapshots the prompt side of an interaction.
type LLMInput struct {
	System           string `json:"system"`
	User             string `json:"user"`
	FormattedRequest string `json:"formatted_request,omitempty"`
}

// Event is one recorded LLM interaction. Events are write-once.
type Event struct {
	EventID   string       `json:"event_id"`
	Timestamp time.Time    `json:"timestamp"`
	Agent     AgentInfo    `json:"agent"`
	Workflow  WorkflowInfo `json:"workflow"`
	LLMInput  LLMInput     `json:"llm_input"`
	LLMOutput any          `json:"llm_output"`
	Metrics   any          `json:"metrics,omitempty"`
	Error     string       `json:"error,omitempty"`
}
