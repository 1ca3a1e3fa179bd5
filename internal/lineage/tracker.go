package lineage

import (
	"time"

	"recast/internal/config"
	"recast/internal/id"
	"recast/internal/llm"
	"recast/internal/logging"
)

// RunIDFrom resolves the stable workflow run id from a context mapping.
// Priority: system.runid, then workflow_run_id, then the runtime block's
// workflow_run_id, run_id, and workflow.id. Returns false when none is set.
func RunIDFrom(ctxData config.Config) (string, bool) {
	for _, path := range []string{
		"system.runid",
		"workflow_run_id",
		"runtime.workflow_run_id",
		"runtime.run_id",
		"runtime.workflow.id",
	} {
		if v := config.GetString(ctxData, path); v != "" {
			return v, true
		}
	}
	return "", false
}

// Tracker records one agent's LLM interactions. Tracking never fails the
// caller: backend errors are logged and swallowed.
type Tracker struct {
	agentName string
	agentType string
	runID     string
	backends  []Backend
	logger    logging.Logger
	now       func() time.Time
}

// NewTracker builds a tracker for one agent within one workflow run. The
// run id is resolved from ctxData; a fresh UUID is generated (and logged)
// when the context carries none.
func NewTracker(agentName, agentType string, ctxData config.Config, backends []Backend, logger logging.Logger) *Tracker {
	logger = logging.OrNop(logger)
	runID, ok := RunIDFrom(ctxData)
	if !ok {
		runID = id.NewEventID()
		logger.Warn("lineage: no run id in context for %s, generated %s", agentName, runID)
	}
	return &Tracker{
		agentName: agentName,
		agentType: agentType,
		runID:     runID,
		backends:  backends,
		logger:    logger,
		now:       time.Now,
	}
}

// BackendsFromConfig builds the configured lineage backends. The file
// backend defaults to workspaces/lineage; a remote collector is added when
// lineage.backend.url is set. A disabled lineage block yields none.
func BackendsFromConfig(cfg config.Config, logger logging.Logger) []Backend {
	if !config.GetBool(cfg, "llm_config.lineage.enabled", false) &&
		!config.GetBool(cfg, "lineage.enabled", false) {
		return nil
	}

	node := config.GetNode(cfg, "lineage")
	if len(config.GetMap(cfg, "llm_config.lineage")) > 0 {
		node = config.GetNode(cfg, "llm_config.lineage")
	}

	path := node.GetString("backend.path")
	if path == "" {
		path = "workspaces/lineage"
	}
	backends := []Backend{NewFileBackend(path, logger)}

	if url := node.GetString("backend.url"); url != "" {
		namespace := node.GetString("namespace")
		if namespace == "" {
			namespace = "recast"
		}
		backends = append(backends, NewRemoteBackend(url, namespace, logger))
	}
	return backends
}

// RunID returns the tracker's stable run id.
func (t *Tracker) RunID() string { return t.runID }

// Interaction describes one completed LLM exchange for tracking.
type Interaction struct {
	EventID          string // generated when empty
	Messages         []llm.Message
	FormattedRequest string
	Response         any
	Metrics          map[string]any
	Err              error
}

// TrackLLMInteraction derives and records one lineage event. The returned
// event carries the derived ids and execution path so the caller can thread
// them into downstream context. Never returns an error.
func (t *Tracker) TrackLLMInteraction(ctxData config.Config, in Interaction) *Event {
	eventID := in.EventID
	if eventID == "" {
		eventID = id.NewEventID()
	}

	event := &Event{
		EventID:   eventID,
		Timestamp: t.now().UTC(),
		Agent:     AgentInfo{Name: t.agentName, Type: t.agentType},
		Workflow: WorkflowInfo{
			RunID:         t.runID,
			ParentID:      t.parentID(ctxData),
			Step:          stepFrom(ctxData),
			ExecutionPath: t.executionPath(ctxData, eventID),
		},
		LLMInput:  inputFrom(in),
		LLMOutput: Serialize(in.Response),
		Metrics:   Serialize(in.Metrics),
	}
	if in.Err != nil {
		event.Error = in.Err.Error()
	}

	for _, backend := range t.backends {
		if err := backend.Record(event); err != nil {
			t.logger.Error("lineage: record failed for %s: %v", t.agentName, err)
		}
	}
	return event
}

// parentID resolves the event's parent: an explicit parent_id wins, then
// parent_run_id, then the context's workflow run id when it names a
// different run than ours. The entry agent ends up with no parent.
func (t *Tracker) parentID(ctxData config.Config) string {
	if v := config.GetString(ctxData, "parent_id"); v != "" {
		return v
	}
	if v := config.GetString(ctxData, "parent_run_id"); v != "" {
		return v
	}
	if v := config.GetString(ctxData, "workflow_run_id"); v != "" && v != t.runID {
		return v
	}
	return ""
}

func stepFrom(ctxData config.Config) int {
	if v := config.Get(ctxData, "step"); v != nil {
		return config.GetInt(ctxData, "step", 0)
	}
	return config.GetInt(ctxData, "sequence", 0)
}

func (t *Tracker) executionPath(ctxData config.Config, eventID string) []string {
	var path []string
	if raw := config.Get(ctxData, "lineage_metadata.execution_path"); raw != nil {
		switch typed := raw.(type) {
		case []string:
			path = append(path, typed...)
		case []any:
			for _, item := range typed {
				if s, ok := item.(string); ok {
					path = append(path, s)
				}
			}
		}
	}
	return append(path, t.agentType+":"+id.ShortID(eventID))
}

func inputFrom(in Interaction) LLMInput {
	out := LLMInput{FormattedRequest: in.FormattedRequest}
	for _, m := range in.Messages {
		switch m.Role {
		case llm.RoleSystem:
			out.System = m.Content
		case llm.RoleUser:
			out.User = m.Content
		}
	}
	return out
}
