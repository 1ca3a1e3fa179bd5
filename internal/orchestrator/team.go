package orchestrator

import (
	"context"

	"recast/internal/config"
	"recast/internal/logging"
)

// RoutingRule selects the next team when its condition holds.
type RoutingRule struct {
	Condition string
	NextTeam  string
}

// Routing is a team's next-team decision block. An empty next team is
// terminal.
type Routing struct {
	Rules   []RoutingRule
	Default string
}

// TeamResult is what a team hands back to the orchestrator.
type TeamResult struct {
	Success   bool           `json:"success"`
	TeamID    string         `json:"team_id"`
	Data      map[string]any `json:"data"`
	InputData map[string]any `json:"input_data,omitempty"`
	NextTeam  string         `json:"next_team,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Team is an ordered list of tasks plus routing.
type Team struct {
	ID            string
	Name          string
	Tasks         []*Task
	Routing       Routing
	StopOnFailure bool

	logger logging.Logger
}

// NewTeam builds a team. stop_on_failure defaults to true at the loading
// layer; here it is explicit.
func NewTeam(id, name string, tasks []*Task, routing Routing, stopOnFailure bool, logger logging.Logger) *Team {
	return &Team{
		ID:            id,
		Name:          name,
		Tasks:         tasks,
		Routing:       routing,
		StopOnFailure: stopOnFailure,
		logger:        logging.OrNop(logger),
	}
}

// Execute runs the team's tasks in order, aggregates their result data, and
// evaluates routing to pick the next team.
func (t *Team) Execute(ctx context.Context, ctxData config.Config) TeamResult {
	t.logger.Info("team %s (%s): starting %d tasks", t.ID, t.Name, len(t.Tasks))

	result := TeamResult{Success: true, TeamID: t.ID, Data: map[string]any{}}
	teamCtx := config.CopyConfig(ctxData)
	var results []TaskResult

	for i, task := range t.Tasks {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Error = err.Error()
			break
		}

		taskCtx := config.CopyConfig(teamCtx)
		taskCtx["team_id"] = t.ID
		taskCtx["team_name"] = t.Name
		taskCtx["task_index"] = i

		taskResult := task.Execute(ctx, taskCtx)
		results = append(results, taskResult)

		if taskResult.Success {
			threadLineage(teamCtx, taskResult.ResultData)
		}

		if !taskResult.Success && t.StopOnFailure {
			t.logger.Warn("team %s: task %s failed, stopping sequence", t.ID, task.Name())
			result.Success = false
			result.Error = taskResult.Error
			break
		}
	}

	for _, r := range results {
		if r.Success {
			for k, v := range r.ResultData {
				result.Data[k] = v
			}
		}
	}

	result.NextTeam = t.nextTeam(results)
	t.attachInputData(&result, ctxData)

	t.logger.Info("team %s: finished success=%v next=%q", t.ID, result.Success, result.NextTeam)
	return result
}

// nextTeam evaluates routing rules in order; the first matching condition
// wins, otherwise the default applies.
func (t *Team) nextTeam(results []TaskResult) string {
	for _, rule := range t.Routing.Rules {
		if rule.Condition != "" && evaluateCondition(rule.Condition, results) {
			return rule.NextTeam
		}
	}
	return t.Routing.Default
}

// evaluateCondition handles the built-in conditions. Unknown conditions are
// false rather than an error so a typo cannot route a workflow somewhere
// unintended.
func evaluateCondition(condition string, results []TaskResult) bool {
	anySuccess, anyFailure := false, false
	for _, r := range results {
		if r.Success {
			anySuccess = true
		} else {
			anyFailure = true
		}
	}
	switch condition {
	case "all_success":
		return !anyFailure
	case "any_success":
		return anySuccess
	case "all_failure":
		return !anySuccess
	case "any_failure":
		return anyFailure
	default:
		return false
	}
}

// threadLineage carries one agent's execution id and path into ctxData so
// the next agent records that agent as its parent and extends the same
// execution path instead of starting a fresh one.
func threadLineage(ctxData config.Config, resultData map[string]any) {
	meta, _ := resultData["execution_metadata"].(map[string]any)
	if meta == nil {
		return
	}
	if execID, _ := meta["agent_execution_id"].(string); execID != "" {
		ctxData["parent_id"] = execID
	}
	path, ok := meta["execution_path"]
	if !ok {
		return
	}
	lineageMeta, _ := ctxData["lineage_metadata"].(map[string]any)
	if lineageMeta == nil {
		lineageMeta = map[string]any{}
	}
	lineageMeta["execution_path"] = path
	ctxData["lineage_metadata"] = lineageMeta
}

// attachInputData shapes the hand-off payload for the well-known team
// transitions so the downstream team's first agent receives exactly the
// structure it validates.
func (t *Team) attachInputData(result *TeamResult, ctxData config.Config) {
	if !result.Success || result.NextTeam == "" {
		return
	}
	switch {
	case t.ID == "discovery" && result.NextTeam == "solution":
		result.InputData = map[string]any{
			"discovery_data": result.Data,
			"intent":         config.GetMap(ctxData, "intent"),
			"project":        config.GetMap(ctxData, "project"),
		}
	case t.ID == "solution" && result.NextTeam == "coder":
		result.InputData = result.Data
	}
}
