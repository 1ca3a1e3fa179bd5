package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recast/internal/agent"
	"recast/internal/config"
	"recast/internal/logging"
)

func TestEvaluateCondition(t *testing.T) {
	mixed := []TaskResult{{Success: true}, {Success: false}}
	allGood := []TaskResult{{Success: true}, {Success: true}}
	allBad := []TaskResult{{Success: false}}

	cases := []struct {
		condition string
		results   []TaskResult
		want      bool
	}{
		{"all_success", allGood, true},
		{"all_success", mixed, false},
		{"any_success", mixed, true},
		{"any_success", allBad, false},
		{"all_failure", allBad, true},
		{"all_failure", mixed, false},
		{"any_failure", mixed, true},
		{"any_failure", allGood, false},
		{"sometimes", allGood, false},
		// With no results there are no failures and no successes, so the
		// universally quantified conditions hold vacuously.
		{"all_success", nil, true},
		{"all_failure", nil, true},
		{"any_success", nil, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, evaluateCondition(tc.condition, tc.results),
			"condition %s over %d results", tc.condition, len(tc.results))
	}
}

func teamWithEngines(t *testing.T, id string, kinds []agent.Kind, routing Routing, stop bool) (*Team, map[agent.Kind]*scriptedEngine) {
	t.Helper()
	cfg := testOrchestratorConfig(t)
	engines := map[agent.Kind]*scriptedEngine{}
	factory := scriptedFactory(engines)
	var tasks []*Task
	for _, kind := range kinds {
		tasks = append(tasks, NewTask(TaskConfig{AgentKind: kind, Config: cfg},
			factory, nil, logging.Nop()))
	}
	return NewTeam(id, id, tasks, routing, stop, logging.Nop()), engines
}

func TestTeamAggregatesTaskData(t *testing.T) {
	team, engines := teamWithEngines(t, "analysis",
		[]agent.Kind{agent.KindDiscovery}, Routing{Default: "next"}, true)
	engines[agent.KindDiscovery] = &scriptedEngine{content: "manifest body"}

	result := team.Execute(context.Background(), config.Config{"project_path": t.TempDir()})

	require.True(t, result.Success)
	assert.Equal(t, "analysis", result.TeamID)
	assert.Equal(t, "next", result.NextTeam)
	assert.Equal(t, "manifest body", result.Data["response"])
	assert.Equal(t, "manifest body", result.Data["raw_output"])
}

func TestTeamStopOnFailure(t *testing.T) {
	team, engines := teamWithEngines(t, "brittle",
		[]agent.Kind{agent.KindDiscovery, agent.KindDiscovery}, Routing{}, true)
	engines[agent.KindDiscovery] = &scriptedEngine{errs: []error{assert.AnError}}

	result := team.Execute(context.Background(), config.Config{"project_path": t.TempDir()})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	// The second task never ran.
	assert.Equal(t, 1, engines[agent.KindDiscovery].calls)
}

func TestTeamContinuesPastFailure(t *testing.T) {
	team, engines := teamWithEngines(t, "tolerant",
		[]agent.Kind{agent.KindDiscovery, agent.KindDiscovery}, Routing{}, false)
	engines[agent.KindDiscovery] = &scriptedEngine{
		content: "second run output",
		errs:    []error{assert.AnError, nil},
	}

	result := team.Execute(context.Background(), config.Config{"project_path": t.TempDir()})

	assert.True(t, result.Success)
	assert.Equal(t, 2, engines[agent.KindDiscovery].calls)
	assert.Equal(t, "second run output", result.Data["response"])
}

func TestDiscoveryHandoffShape(t *testing.T) {
	team, engines := teamWithEngines(t, "discovery",
		[]agent.Kind{agent.KindDiscovery}, Routing{Default: "solution"}, true)
	engines[agent.KindDiscovery] = &scriptedEngine{content: "scan output"}

	intent := map[string]any{"description": "extract interfaces"}
	project := map[string]any{"path": "/tmp/demo"}
	result := team.Execute(context.Background(), config.Config{
		"project_path": t.TempDir(),
		"intent":       intent,
		"project":      project,
	})

	require.True(t, result.Success)
	require.NotNil(t, result.InputData)
	discoveryData := result.InputData["discovery_data"].(map[string]any)
	assert.Equal(t, "scan output", discoveryData["raw_output"])
	assert.Equal(t, config.Config(intent), result.InputData["intent"])
	assert.Equal(t, config.Config(project), result.InputData["project"])
}

func TestSolutionHandoffShape(t *testing.T) {
	team, engines := teamWithEngines(t, "solution",
		[]agent.Kind{agent.KindSolutionDesigner}, Routing{Default: "coder"}, true)
	engines[agent.KindSolutionDesigner] = &scriptedEngine{content: `{"changes":[]}`}

	result := team.Execute(context.Background(), config.Config{
		"input_data": map[string]any{
			"discovery_data": map[string]any{"raw_output": "source listing"},
		},
		"intent": map[string]any{"description": "split package"},
	})

	require.True(t, result.Success)
	require.NotNil(t, result.InputData)
	assert.Equal(t, `{"changes":[]}`, result.InputData["response"])
}

func TestTerminalTeamHasNoInputData(t *testing.T) {
	team, engines := teamWithEngines(t, "coder",
		[]agent.Kind{agent.KindCoder}, Routing{}, true)
	engines[agent.KindCoder] = &scriptedEngine{content: "done"}

	result := team.Execute(context.Background(), config.Config{
		"input_data": map[string]any{"response": "plan"},
	})

	require.True(t, result.Success)
	assert.Empty(t, result.NextTeam)
	assert.Nil(t, result.InputData)
}

func TestRoutingRuleBeatsDefault(t *testing.T) {
	team, engines := teamWithEngines(t, "gate", []agent.Kind{agent.KindDiscovery},
		Routing{
			Rules: []RoutingRule{
				{Condition: "any_failure", NextTeam: "repair"},
				{Condition: "all_success", NextTeam: "ship"},
			},
			Default: "fallback",
		}, true)
	engines[agent.KindDiscovery] = &scriptedEngine{content: "fine"}

	result := team.Execute(context.Background(), config.Config{"project_path": t.TempDir()})
	assert.Equal(t, "ship", result.NextTeam)

	engines[agent.KindDiscovery].errs = []error{assert.AnError}
	result = team.Execute(context.Background(), config.Config{"project_path": t.TempDir()})
	assert.Equal(t, "repair", result.NextTeam)
}

func TestTeamThreadsLineageBetweenTasks(t *testing.T) {
	cfg := testOrchestratorConfig(t)
	cfg["workflow_run_id"] = "wf_team"
	engines := map[agent.Kind]*scriptedEngine{
		agent.KindDiscovery: {content: "scan output"},
	}
	backend := &memoryBackend{}
	factory := scriptedFactoryWithBackend(engines, backend)
	tasks := []*Task{
		NewTask(TaskConfig{AgentKind: agent.KindDiscovery, Config: cfg}, factory, nil, logging.Nop()),
		NewTask(TaskConfig{AgentKind: agent.KindDiscovery, Config: cfg}, factory, nil, logging.Nop()),
	}
	team := NewTeam("scan", "scan", tasks, Routing{}, true, logging.Nop())

	ctx := config.Config{"project_path": t.TempDir(), "workflow_run_id": "wf_team"}
	result := team.Execute(context.Background(), ctx)

	require.True(t, result.Success)
	require.Len(t, backend.events, 2)
	first, second := backend.events[0], backend.events[1]
	assert.Empty(t, first.Workflow.ParentID)
	assert.Equal(t, first.EventID, second.Workflow.ParentID)
	require.Len(t, second.Workflow.ExecutionPath, 2)
	assert.Equal(t, first.Workflow.ExecutionPath[0], second.Workflow.ExecutionPath[0])

	// The caller's context is not mutated by the threading.
	assert.NotContains(t, ctx, "parent_id")
}
