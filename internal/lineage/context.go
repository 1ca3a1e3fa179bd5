package lineage

import (
	"time"

	"recast/internal/config"
	"recast/internal/id"
)

// WorkflowContext extends base with the identifiers every downstream
// component reads: workflow_run_id, the system.runid alias, and an empty
// execution path. The base mapping is not mutated.
func WorkflowContext(runID string, base config.Config) config.Config {
	ctx := config.CopyConfig(base)
	ctx["workflow_run_id"] = runID

	system, _ := ctx["system"].(map[string]any)
	if system == nil {
		system = map[string]any{}
	}
	system["runid"] = runID
	ctx["system"] = system

	ctx["lineage_metadata"] = map[string]any{
		"workflow_run_id": runID,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"execution_path":  []any{},
	}
	return ctx
}

// AgentContext extends base for one agent execution: a fresh
// agent_execution_id, the parent link, and the step number. The inherited
// execution path is carried through untouched; the tracker appends this
// agent's entry when the event is recorded.
func AgentContext(runID, agentType, parentID string, step int, base config.Config) config.Config {
	ctx := config.CopyConfig(base)
	executionID := id.NewExecutionID()

	ctx["workflow_run_id"] = runID
	ctx["agent_execution_id"] = executionID
	if parentID != "" {
		ctx["parent_id"] = parentID
	}
	if step > 0 {
		ctx["step"] = step
	}

	meta, _ := ctx["lineage_metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{
			"workflow_run_id": runID,
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
			"execution_path":  []any{},
		}
	}
	ctx["lineage_metadata"] = meta

	system, _ := ctx["system"].(map[string]any)
	if system == nil {
		system = map[string]any{}
	}
	system["runid"] = runID
	system["agent_id"] = executionID
	system["agent_type"] = agentType
	ctx["system"] = system

	return ctx
}
