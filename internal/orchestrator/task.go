package orchestrator

import (
	"context"
	"time"

	"recast/internal/agent"
	"recast/internal/config"
	"recast/internal/errors"
	"recast/internal/id"
	"recast/internal/logging"
)

// TaskConfig describes one agent invocation inside a team.
type TaskConfig struct {
	AgentKind        agent.Kind
	Config           config.Config
	TaskName         string
	RequiresApproval bool
	MaxRetries       int
	RetryDelay       time.Duration
}

// TaskResult normalizes an agent response for team aggregation.
type TaskResult struct {
	Success    bool           `json:"success"`
	TaskName   string         `json:"task_name"`
	ResultData map[string]any `json:"result_data"`
	StageData  map[string]any `json:"stage_data,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// RuntimeFactory builds an agent runtime for a task. Injected so tests can
// substitute scripted agents.
type RuntimeFactory func(kind agent.Kind, cfg config.Config) (*agent.Runtime, error)

// Task wraps one agent invocation with bounded retries, an approval gate,
// and metrics. Only transient failures are retried; the agent itself never
// retries.
type Task struct {
	cfg     TaskConfig
	factory RuntimeFactory
	metrics *Metrics
	logger  logging.Logger
	sleeper errors.Sleeper
}

// NewTask builds a task wrapper around its runtime factory.
func NewTask(cfg TaskConfig, factory RuntimeFactory, metrics *Metrics, logger logging.Logger) *Task {
	if cfg.TaskName == "" {
		cfg.TaskName = cfg.AgentKind.String()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	return &Task{
		cfg:     cfg,
		factory: factory,
		metrics: metrics,
		logger:  logging.OrNop(logger),
		sleeper: errors.SleepContext,
	}
}

// Name returns the task's configured name.
func (t *Task) Name() string { return t.cfg.TaskName }

// Execute runs the agent, retrying transient failures up to the configured
// budget.
func (t *Task) Execute(ctx context.Context, ctxData config.Config) TaskResult {
	if t.cfg.RequiresApproval {
		// Reserved for a human-in-the-loop gate; approval is granted
		// implicitly for now.
		t.logger.Info("task %s: approval gate passed", t.cfg.TaskName)
	}

	runtime, err := t.factory(t.cfg.AgentKind, t.cfg.Config)
	if err != nil {
		t.metrics.IncTaskFailure(t.cfg.AgentKind.String())
		return TaskResult{TaskName: t.cfg.TaskName, Error: err.Error()}
	}

	taskID := id.NewTaskID()
	ctxData["task_id"] = taskID

	var resp agent.Response
	start := time.Now()
	for attempt := 0; ; attempt++ {
		resp = runtime.Process(ctx, ctxData)
		if resp.Success || attempt >= t.cfg.MaxRetries-1 || !errors.IsTransient(resp.Err) {
			break
		}
		t.metrics.IncTaskRetry(t.cfg.AgentKind.String())
		t.logger.Warn("task %s: attempt %d failed (%s), retrying in %s",
			t.cfg.TaskName, attempt+1, resp.Error, t.cfg.RetryDelay)
		if err := t.sleeper(ctx, t.cfg.RetryDelay); err != nil {
			resp.Error = err.Error()
			break
		}
	}

	status := "success"
	if !resp.Success {
		status = "failure"
		t.metrics.IncTaskFailure(t.cfg.AgentKind.String())
	}
	t.metrics.ObserveTaskDuration(t.cfg.AgentKind.String(), status, time.Since(start))

	result := TaskResult{
		Success:    resp.Success,
		TaskName:   t.cfg.TaskName,
		ResultData: resp.Data,
		Error:      resp.Error,
	}
	if resp.Success {
		result.StageData = map[string]any{
			"status":     "completed",
			"task_id":    taskID,
			"raw_output": resp.RawOutput,
			"timestamp":  resp.Timestamp.Format(time.RFC3339),
		}
	}
	return result
}
