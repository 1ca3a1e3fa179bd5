// Package orchestrator sequences agent teams through a configurable router,
// threading a shared context mapping between them and bounding the total
// number of team executions.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"recast/internal/agent"
	"recast/internal/config"
	"recast/internal/errors"
	"recast/internal/id"
	"recast/internal/lineage"
	"recast/internal/llm"
	"recast/internal/logging"
	"recast/internal/project"
)

// DefaultMaxTeams bounds one workflow's team executions so cyclic routing
// cannot loop forever.
const DefaultMaxTeams = 10

// Orchestrator loads teams from config and runs the team graph.
type Orchestrator struct {
	cfg      config.Config
	teams    map[string]*Team
	factory  RuntimeFactory
	metrics  *Metrics
	maxTeams int
	logger   logging.Logger
	state    *StateStore
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRuntimeFactory replaces the default agent construction, used by tests
// to substitute scripted agents.
func WithRuntimeFactory(f RuntimeFactory) Option {
	return func(o *Orchestrator) { o.factory = f }
}

// WithMetrics replaces the shared metrics instance.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMaxTeams overrides the team execution bound.
func WithMaxTeams(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTeams = n
		}
	}
}

// New builds an orchestrator from a merged configuration.
func New(cfg config.Config, logger logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		metrics:  defaultMetrics(),
		maxTeams: DefaultMaxTeams,
	}
	o.factory = o.defaultRuntimeFactory
	for _, opt := range opts {
		opt(o)
	}
	o.state = NewStateStore(config.GetString(cfg, "project.workspace_root"), o.logger)
	applyIDStrategy(cfg)
	o.loadTeams()
	return o
}

// applyIDStrategy switches the identifier scheme when system.id_strategy is
// set. KSUID stays the default.
func applyIDStrategy(cfg config.Config) {
	switch config.GetString(cfg, "system.id_strategy") {
	case "uuidv7":
		id.SetStrategy(id.StrategyUUIDv7)
	case "ksuid":
		id.SetStrategy(id.StrategyKSUID)
	}
}

// Teams returns the loaded team ids.
func (o *Orchestrator) Teams() []string {
	ids := make([]string, 0, len(o.teams))
	for teamID := range o.teams {
		ids = append(ids, teamID)
	}
	return ids
}

// defaultRuntimeFactory wires a real agent: continuation engine over the
// configured provider plus a lineage tracker.
func (o *Orchestrator) defaultRuntimeFactory(kind agent.Kind, cfg config.Config) (*agent.Runtime, error) {
	ops, err := agent.NewOps(kind, cfg)
	if err != nil {
		return nil, err
	}
	clientCfg, err := llm.ConfigForAgent(cfg, kind.String())
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", kind, err)
	}
	client, err := llm.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", kind, err)
	}
	componentLogger := logging.NewComponentLogger(kind.String())
	engine := llm.NewEngine(client, componentLogger)

	backends := lineage.BackendsFromConfig(cfg, componentLogger)
	tracker := lineage.NewTracker(kind.String(), kind.String(), cfg, backends, componentLogger)

	return agent.NewRuntime(ops, engine, tracker, componentLogger), nil
}

// loadTeams reads orchestration.teams; with no teams configured the default
// discovery → solution → coder chain is used.
func (o *Orchestrator) loadTeams() {
	o.teams = map[string]*Team{}

	teamsCfg := config.GetMap(o.cfg, "orchestration.teams")
	if len(teamsCfg) == 0 {
		o.logger.Warn("orchestrator: no teams configured, loading default chain")
		o.loadDefaultTeams()
		return
	}

	for teamID, raw := range teamsCfg {
		teamCfg, ok := raw.(map[string]any)
		if !ok {
			o.logger.Error("orchestrator: team %s has invalid config", teamID)
			continue
		}
		team, err := o.buildTeam(teamID, teamCfg)
		if err != nil {
			o.logger.Error("orchestrator: loading team %s failed: %v", teamID, err)
			continue
		}
		o.teams[teamID] = team
	}
	o.logger.Info("orchestrator: loaded %d teams", len(o.teams))
}

func (o *Orchestrator) buildTeam(teamID string, teamCfg map[string]any) (*Team, error) {
	name := config.GetString(teamCfg, "name")
	if name == "" {
		name = teamID
	}

	var tasks []*Task
	rawTasks, _ := teamCfg["tasks"].([]any)
	for _, rawTask := range rawTasks {
		taskCfg, ok := rawTask.(map[string]any)
		if !ok {
			continue
		}
		kind, err := agent.ParseKind(config.GetString(taskCfg, "agent"))
		if err != nil {
			return nil, err
		}
		overrides := config.GetMap(taskCfg, "config")
		tasks = append(tasks, NewTask(TaskConfig{
			AgentKind:        kind,
			Config:           config.DeepMerge(o.cfg, overrides),
			TaskName:         config.GetString(taskCfg, "name"),
			RequiresApproval: config.GetBool(taskCfg, "requires_approval", false),
			MaxRetries:       config.GetInt(taskCfg, "max_retries", 3),
			RetryDelay:       time.Duration(config.GetInt(taskCfg, "retry_delay_seconds", 30)) * time.Second,
		}, o.factory, o.metrics, o.logger))
	}

	routing := Routing{Default: config.GetString(teamCfg, "routing.default")}
	rawRules, _ := config.Get(teamCfg, "routing.rules").([]any)
	for _, rawRule := range rawRules {
		rule, ok := rawRule.(map[string]any)
		if !ok {
			continue
		}
		routing.Rules = append(routing.Rules, RoutingRule{
			Condition: config.GetString(rule, "condition"),
			NextTeam:  config.GetString(rule, "next_team"),
		})
	}

	stopOnFailure := config.GetBool(teamCfg, "stop_on_failure", true)
	return NewTeam(teamID, name, tasks, routing, stopOnFailure, o.logger), nil
}

// loadDefaultTeams builds the canonical three-team refactoring chain.
func (o *Orchestrator) loadDefaultTeams() {
	chain := []struct {
		teamID string
		name   string
		kind   agent.Kind
		next   string
	}{
		{"discovery", "Discovery Team", agent.KindDiscovery, "solution"},
		{"solution", "Solution Design Team", agent.KindSolutionDesigner, "coder"},
		{"coder", "Coder Team", agent.KindCoder, ""},
	}
	for _, entry := range chain {
		task := NewTask(TaskConfig{
			AgentKind: entry.kind,
			Config:    o.cfg,
			TaskName:  entry.kind.String(),
		}, o.factory, o.metrics, o.logger)
		o.teams[entry.teamID] = NewTeam(entry.teamID, entry.name, []*Task{task},
			Routing{Default: entry.next}, true, o.logger)
	}
}

// InitializeWorkflow prepares the merged config and initial context for one
// workflow run: a fresh wf_<HHMM>_<UUID> run id threaded through every
// namespace components read, plus scanner defaults for discovery.
func (o *Orchestrator) InitializeWorkflow(projectPath string, intent map[string]any) (config.Config, config.Config, error) {
	if projectPath == "" {
		return nil, nil, fmt.Errorf("project path required: %w", errors.ErrInputValidation)
	}
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize project path: %w", err)
	}

	now := time.Now()
	runID := id.NewWorkflowRunID(now)

	prepared := config.CopyConfig(o.cfg)
	projectCfg, _ := prepared["project"].(map[string]any)
	if projectCfg == nil {
		projectCfg = map[string]any{}
	}
	projectCfg["path"] = absPath
	prepared["project"] = projectCfg
	prepared["intent"] = intent
	prepared["workflow_run_id"] = runID

	proj, err := project.FromConfig(prepared)
	if err != nil {
		return nil, nil, err
	}
	projectCfg["name"] = proj.Metadata.Name
	projectCfg["workspace_root"] = proj.Paths.Workspace

	system, _ := prepared["system"].(map[string]any)
	if system == nil {
		system = map[string]any{}
	}
	system["runid"] = runID
	prepared["system"] = system

	runtime, _ := prepared["runtime"].(map[string]any)
	if runtime == nil {
		runtime = map[string]any{}
	}
	runtime["workflow_run_id"] = runID
	runtime["run_id"] = runID
	runtime["workflow"] = map[string]any{
		"id":         runID,
		"start_time": now.UTC().Format(time.RFC3339),
	}
	prepared["runtime"] = runtime

	orchestration, _ := prepared["orchestration"].(map[string]any)
	if orchestration == nil {
		orchestration = map[string]any{}
	}
	orchestration["enabled"] = true
	prepared["orchestration"] = orchestration

	o.applyDiscoveryDefaults(prepared, absPath)

	ctx := lineage.WorkflowContext(runID, config.Config{
		"project_path": absPath,
		"project":      projectCfg,
		"intent":       intent,
		"config":       prepared,
	})
	return prepared, ctx, nil
}

// applyDiscoveryDefaults fills the discovery agent's scanner settings when
// the config leaves them out: the helper script next to the workspace and
// the project itself as the only input path.
func (o *Orchestrator) applyDiscoveryDefaults(cfg config.Config, projectPath string) {
	node := "llm_config.agents.discovery.tartxt_config"
	llmCfg, _ := cfg["llm_config"].(map[string]any)
	if llmCfg == nil {
		llmCfg = map[string]any{}
		cfg["llm_config"] = llmCfg
	}
	agents, _ := llmCfg["agents"].(map[string]any)
	if agents == nil {
		agents = map[string]any{}
		llmCfg["agents"] = agents
	}
	agentCfg, _ := agents["discovery"].(map[string]any)
	if agentCfg == nil {
		agentCfg = map[string]any{}
		agents["discovery"] = agentCfg
	}
	scanner, _ := agentCfg["tartxt_config"].(map[string]any)
	if scanner == nil {
		scanner = map[string]any{}
		agentCfg["tartxt_config"] = scanner
	}
	if _, ok := scanner["script_path"]; !ok {
		scanner["script_path"] = filepath.Join(projectPath, "scripts", "scan.py")
		o.logger.Debug("orchestrator: defaulted %s.script_path", node)
	}
	if _, ok := scanner["input_paths"]; !ok {
		scanner["input_paths"] = []any{"."}
		o.logger.Debug("orchestrator: defaulted %s.input_paths", node)
	}
}

// ExecuteWorkflow runs the team graph from entryTeam until a terminal team,
// a failure, cancellation, or the team bound.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, entryTeam string, workflowCtx config.Config) (map[string]any, error) {
	if _, ok := o.teams[entryTeam]; !ok {
		return nil, fmt.Errorf("entry team %q not found", entryTeam)
	}
	if workflowCtx == nil {
		workflowCtx = config.Config{}
	}

	// The context may embed a config prepared elsewhere (replay, service).
	// Reload teams when it differs from ours.
	if embedded, ok := workflowCtx["config"].(map[string]any); ok && len(embedded) > 0 {
		o.reloadIfChanged(embedded)
	}

	runID := config.GetString(workflowCtx, "workflow_run_id")
	if runID == "" {
		runID = id.NewWorkflowRunID(time.Now())
	}
	workflowCtx["workflow_run_id"] = runID
	system, _ := workflowCtx["system"].(map[string]any)
	if system == nil {
		system = map[string]any{}
	}
	system["runid"] = runID
	workflowCtx["system"] = system

	o.metrics.IncActiveWorkflows()
	defer o.metrics.DecActiveWorkflows()

	run := o.state.StartRun(runID)

	o.logger.Info("orchestrator: workflow %s starting at team %s", runID, entryTeam)

	final := map[string]any{
		"status":          "success",
		"workflow_run_id": runID,
		"data":            map[string]any{},
	}
	var executionPath []string
	teamResults := map[string]any{}
	currentTeam := entryTeam
	teamsExecuted := 0

	for currentTeam != "" {
		if err := ctx.Err(); err != nil {
			final["status"] = "error"
			final["error"] = err.Error()
			break
		}
		if teamsExecuted >= o.maxTeams {
			o.logger.Warn("orchestrator: workflow %s hit team limit %d", runID, o.maxTeams)
			final["status"] = "error"
			final["error"] = errors.ErrExecutionLimit.Error()
			break
		}
		team, ok := o.teams[currentTeam]
		if !ok {
			final["status"] = "error"
			final["error"] = fmt.Sprintf("team %s not found", currentTeam)
			break
		}

		executionPath = append(executionPath, currentTeam)
		run.StageStarted(teamsExecuted, currentTeam)

		result := team.Execute(ctx, workflowCtx)
		teamResults[currentTeam] = result
		teamsExecuted++

		if result.Success {
			data := final["data"].(map[string]any)
			for k, v := range result.Data {
				workflowCtx[k] = v
				data[k] = v
			}
			threadLineage(workflowCtx, result.Data)
			if result.InputData != nil {
				workflowCtx["input_data"] = result.InputData
			}
		} else {
			final["status"] = "error"
			final["error"] = result.Error
			break
		}

		currentTeam = result.NextTeam
	}

	final["execution_path"] = executionPath
	final["team_results"] = teamResults
	final["teams_executed"] = teamsExecuted
	final["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	if final["status"] == "success" {
		run.Completed()
	} else {
		errMsg, _ := final["error"].(string)
		run.Failed(errMsg)
	}

	o.logger.Info("orchestrator: workflow %s finished status=%v teams=%d path=%v",
		runID, final["status"], teamsExecuted, executionPath)
	return final, nil
}

// reloadIfChanged swaps in a new config and rebuilds teams when the
// embedded config differs from the current one.
func (o *Orchestrator) reloadIfChanged(embedded config.Config) {
	if config.GetString(embedded, "workflow_run_id") == config.GetString(o.cfg, "workflow_run_id") &&
		len(embedded) == len(o.cfg) {
		return
	}
	o.cfg = embedded
	o.loadTeams()
	o.logger.Info("orchestrator: reloaded %d teams from embedded config", len(o.teams))
}
