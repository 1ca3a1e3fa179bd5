package lineage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"recast/internal/config"
	"recast/internal/id"
	"recast/internal/logging"
)

// WorkflowRunner executes a workflow from a named entry team. Satisfied by
// the orchestrator; declared here so replay does not depend on it.
type WorkflowRunner interface {
	ExecuteWorkflow(ctx context.Context, entryTeam string, workflowCtx config.Config) (map[string]any, error)
}

// LoadEventFile reads and parses one recorded lineage event.
func LoadEventFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lineage file: %w", err)
	}
	var event map[string]any
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("parse lineage file %s: %w", path, err)
	}
	return event, nil
}

// ReplayOptions controls context reconstruction.
type ReplayOptions struct {
	// KeepRunID reuses the recorded run id instead of generating a new one.
	KeepRunID bool
}

// PrepareContext rebuilds a workflow context from a recorded event so that
// execution can resume at the given stage. The event's llm_output is placed
// in the shape the stage's first agent expects.
func PrepareContext(event map[string]any, stage string, cfg config.Config, opts ReplayOptions) (config.Config, error) {
	recordedRunID := config.GetString(event, "workflow.run_id")
	if recordedRunID == "" {
		return nil, fmt.Errorf("lineage event has no workflow run id")
	}
	agentName := config.GetString(event, "agent.name")
	if agentName == "" {
		return nil, fmt.Errorf("lineage event has no agent name")
	}
	output := config.Get(event, "llm_output")
	if output == nil {
		return nil, fmt.Errorf("lineage event has no llm_output")
	}

	runID := recordedRunID
	if !opts.KeepRunID {
		runID = id.NewWorkflowRunID(time.Now())
	}

	ctx := config.Config{
		"workflow_run_id": runID,
		"system":          map[string]any{"runid": runID},
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"config":          cfg,
		"lineage_source": map[string]any{
			"agent":    agentName,
			"event_id": config.GetString(event, "event_id"),
			"run_id":   recordedRunID,
		},
	}

	if project := config.GetMap(cfg, "project"); len(project) > 0 {
		ctx["project"] = project
		if path := config.GetString(cfg, "project.path"); path != "" {
			ctx["project_path"] = path
		}
	}

	intent := config.GetMap(cfg, "intent")

	switch {
	case stage == "solution_designer" && agentName == "discovery":
		ctx["input_data"] = map[string]any{
			"discovery_data": map[string]any{
				"response":   output,
				"raw_output": output,
			},
			"intent": intent,
		}
	case stage == "coder" && agentName == "solution_designer":
		ctx["input_data"] = map[string]any{
			"response":   output,
			"raw_output": output,
		}
	default:
		ctx["input_data"] = map[string]any{
			"response":   output,
			"raw_output": output,
			"intent":     intent,
		}
	}

	return ctx, nil
}

// entryTeamForStage maps an agent stage to the team that runs it. Stages
// outside the standard chain are taken as team ids directly.
func entryTeamForStage(stage string) string {
	if stage == "solution_designer" {
		return "solution"
	}
	return stage
}

// RunFromLineage loads an event file, rebuilds context for the stage, and
// resumes the workflow there.
func RunFromLineage(ctx context.Context, runner WorkflowRunner, eventFile, stage string, cfg config.Config, opts ReplayOptions, logger logging.Logger) (map[string]any, error) {
	logger = logging.OrNop(logger)

	event, err := LoadEventFile(eventFile)
	if err != nil {
		return nil, err
	}
	logger.Info("replay: loaded event from %s (agent=%s run=%s)",
		eventFile, config.GetString(event, "agent.name"), config.GetString(event, "workflow.run_id"))

	workflowCtx, err := PrepareContext(event, stage, cfg, opts)
	if err != nil {
		return nil, err
	}

	result, err := runner.ExecuteWorkflow(ctx, entryTeamForStage(stage), workflowCtx)
	if err != nil {
		return nil, fmt.Errorf("replay from stage %s: %w", stage, err)
	}
	logger.Info("replay: workflow %v finished with status %v", result["workflow_run_id"], result["status"])
	return result, nil
}
