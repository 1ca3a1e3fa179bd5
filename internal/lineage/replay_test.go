package lineage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recast/internal/config"
	"recast/internal/logging"
)

func writeEventFile(t *testing.T, event map[string]any) string {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func discoveryEvent() map[string]any {
	return map[string]any{
		"event_id": "evt-disc",
		"agent":    map[string]any{"name": "discovery", "type": "discovery"},
		"workflow": map[string]any{"run_id": "wf_0900_orig"},
		"llm_output": map[string]any{
			"content": "file inventory",
		},
	}
}

func TestLoadEventFile(t *testing.T) {
	path := writeEventFile(t, discoveryEvent())
	event, err := LoadEventFile(path)
	require.NoError(t, err)
	assert.Equal(t, "discovery", config.GetString(event, "agent.name"))

	_, err = LoadEventFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrepareContextDiscoveryToSolutionDesigner(t *testing.T) {
	cfg := config.Config{
		"intent":  map[string]any{"description": "extract the parser"},
		"project": map[string]any{"path": "/src/app"},
	}

	ctx, err := PrepareContext(discoveryEvent(), "solution_designer", cfg, ReplayOptions{})
	require.NoError(t, err)

	discovery := config.GetMap(ctx, "input_data.discovery_data")
	require.NotNil(t, discovery["response"])
	require.NotNil(t, discovery["raw_output"])
	intent := config.GetMap(ctx, "input_data.intent")
	assert.Equal(t, "extract the parser", intent["description"])
	assert.Equal(t, "/src/app", config.GetString(ctx, "project_path"))

	// Fresh run id by default, recorded run preserved as the source.
	assert.NotEqual(t, "wf_0900_orig", config.GetString(ctx, "workflow_run_id"))
	assert.Equal(t, "wf_0900_orig", config.GetString(ctx, "lineage_source.run_id"))
}

func TestPrepareContextSolutionDesignerToCoder(t *testing.T) {
	event := map[string]any{
		"event_id":   "evt-sol",
		"agent":      map[string]any{"name": "solution_designer", "type": "solution_designer"},
		"workflow":   map[string]any{"run_id": "wf_0900_orig"},
		"llm_output": "change plan",
	}

	ctx, err := PrepareContext(event, "coder", config.Config{}, ReplayOptions{})
	require.NoError(t, err)

	input := config.GetMap(ctx, "input_data")
	assert.Equal(t, "change plan", input["response"])
	assert.Equal(t, "change plan", input["raw_output"])
	assert.NotContains(t, input, "discovery_data")
}

func TestPrepareContextGenericShape(t *testing.T) {
	event := discoveryEvent()
	event["agent"] = map[string]any{"name": "assurance", "type": "assurance"}

	cfg := config.Config{"intent": map[string]any{"description": "verify"}}
	ctx, err := PrepareContext(event, "assurance", cfg, ReplayOptions{})
	require.NoError(t, err)

	input := config.GetMap(ctx, "input_data")
	assert.NotNil(t, input["response"])
	assert.NotNil(t, input["intent"])
}

func TestPrepareContextKeepRunID(t *testing.T) {
	ctx, err := PrepareContext(discoveryEvent(), "solution_designer", config.Config{}, ReplayOptions{KeepRunID: true})
	require.NoError(t, err)
	assert.Equal(t, "wf_0900_orig", config.GetString(ctx, "workflow_run_id"))
	assert.Equal(t, "wf_0900_orig", config.GetString(ctx, "system.runid"))
}

func TestPrepareContextRejectsIncompleteEvents(t *testing.T) {
	event := discoveryEvent()
	delete(event, "llm_output")
	_, err := PrepareContext(event, "coder", config.Config{}, ReplayOptions{})
	assert.Error(t, err)

	event = discoveryEvent()
	event["workflow"] = map[string]any{}
	_, err = PrepareContext(event, "coder", config.Config{}, ReplayOptions{})
	assert.Error(t, err)
}

type fakeRunner struct {
	entryTeam string
	ctx       config.Config
	result    map[string]any
}

func (f *fakeRunner) ExecuteWorkflow(_ context.Context, entryTeam string, workflowCtx config.Config) (map[string]any, error) {
	f.entryTeam = entryTeam
	f.ctx = workflowCtx
	return f.result, nil
}

func TestRunFromLineage(t *testing.T) {
	path := writeEventFile(t, discoveryEvent())
	runner := &fakeRunner{result: map[string]any{"status": "success", "workflow_run_id": "wf_new"}}

	result, err := RunFromLineage(context.Background(), runner, path, "solution_designer", config.Config{}, ReplayOptions{}, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "solution", runner.entryTeam)
	assert.NotNil(t, config.GetMap(runner.ctx, "input_data.discovery_data"))
}
