package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recast/internal/agent"
	"recast/internal/config"
	"recast/internal/errors"
	"recast/internal/logging"
)

func newScriptedTask(t *testing.T, engine *scriptedEngine, cfg TaskConfig) (*Task, *[]time.Duration) {
	t.Helper()
	cfg.Config = testOrchestratorConfig(t)
	task := NewTask(cfg, scriptedFactory(map[agent.Kind]*scriptedEngine{cfg.AgentKind: engine}),
		nil, logging.Nop())
	var delays []time.Duration
	task.sleeper = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return task, &delays
}

func TestTaskDefaults(t *testing.T) {
	task := NewTask(TaskConfig{AgentKind: agent.KindDiscovery},
		scriptedFactory(map[agent.Kind]*scriptedEngine{}), nil, logging.Nop())
	assert.Equal(t, "discovery", task.Name())
	assert.Equal(t, 3, task.cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, task.cfg.RetryDelay)
}

func TestTaskSuccess(t *testing.T) {
	engine := &scriptedEngine{content: "project listing"}
	task, delays := newScriptedTask(t, engine, TaskConfig{AgentKind: agent.KindDiscovery})

	result := task.Execute(context.Background(), config.Config{"project_path": t.TempDir()})

	require.True(t, result.Success)
	assert.Equal(t, "project listing", result.ResultData["response"])
	assert.Equal(t, "completed", result.StageData["status"])
	assert.Equal(t, "project listing", result.StageData["raw_output"])
	assert.True(t, strings.HasPrefix(result.StageData["task_id"].(string), "task-"))
	assert.Empty(t, *delays)
	assert.Equal(t, 1, engine.calls)
}

func TestTaskRetriesTransientFailures(t *testing.T) {
	engine := &scriptedEngine{
		content: "recovered",
		errs: []error{
			errors.Transient(assert.AnError, "provider unavailable"),
			errors.Transient(assert.AnError, "provider unavailable"),
			nil,
		},
	}
	task, delays := newScriptedTask(t, engine, TaskConfig{
		AgentKind:  agent.KindDiscovery,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
	})

	result := task.Execute(context.Background(), config.Config{"project_path": t.TempDir()})

	require.True(t, result.Success)
	assert.Equal(t, 3, engine.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *delays)
}

func TestTaskRetryBudgetExhausted(t *testing.T) {
	engine := &scriptedEngine{
		errs: []error{
			errors.Transient(assert.AnError, "still down"),
			errors.Transient(assert.AnError, "still down"),
			errors.Transient(assert.AnError, "still down"),
		},
	}
	task, delays := newScriptedTask(t, engine, TaskConfig{
		AgentKind:  agent.KindDiscovery,
		MaxRetries: 3,
		RetryDelay: time.Second,
	})

	result := task.Execute(context.Background(), config.Config{"project_path": t.TempDir()})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "still down")
	assert.Equal(t, 3, engine.calls)
	assert.Len(t, *delays, 2)
}

func TestTaskDoesNotRetryPermanentFailure(t *testing.T) {
	engine := &scriptedEngine{errs: []error{assert.AnError}}
	task, delays := newScriptedTask(t, engine, TaskConfig{
		AgentKind:  agent.KindDiscovery,
		MaxRetries: 3,
	})

	result := task.Execute(context.Background(), config.Config{"project_path": t.TempDir()})

	assert.False(t, result.Success)
	assert.Equal(t, 1, engine.calls)
	assert.Empty(t, *delays)
}

func TestTaskMissingContextKeyFails(t *testing.T) {
	engine := &scriptedEngine{content: "unused"}
	task, _ := newScriptedTask(t, engine, TaskConfig{AgentKind: agent.KindDiscovery})

	result := task.Execute(context.Background(), config.Config{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "project_path")
	assert.Equal(t, 0, engine.calls)
}

func TestTaskFactoryErrorReported(t *testing.T) {
	task := NewTask(TaskConfig{AgentKind: agent.KindDiscovery},
		func(agent.Kind, config.Config) (*agent.Runtime, error) {
			return nil, assert.AnError
		}, nil, logging.Nop())

	result := task.Execute(context.Background(), config.Config{})
	assert.False(t, result.Success)
	assert.Equal(t, assert.AnError.Error(), result.Error)
}
