package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"recast/internal/logging"
)

// StateStore writes human-readable workflow state files under the
// workspace root, one directory per run. Failures to write state never
// fail the workflow; they are logged and dropped.
type StateStore struct {
	root   string
	logger logging.Logger
	mu     sync.Mutex
}

// NewStateStore builds a store rooted at root, defaulting to "workspaces".
func NewStateStore(root string, logger logging.Logger) *StateStore {
	if root == "" {
		root = "workspaces"
	}
	return &StateStore{root: root, logger: logging.OrNop(logger)}
}

// RunState tracks one workflow run's state directory.
type RunState struct {
	store *StateStore
	dir   string
	runID string
}

// StartRun creates the run directory and marks the run started.
func (s *StateStore) StartRun(runID string) *RunState {
	dir := filepath.Join(s.root, fmt.Sprintf("%s_%s",
		time.Now().Format("060102_1504"), runID))
	run := &RunState{store: s, dir: dir, runID: runID}
	if err := os.MkdirAll(filepath.Join(dir, "events"), 0o755); err != nil {
		s.logger.Error("state: creating run dir %s failed: %v", dir, err)
		run.dir = ""
		return run
	}
	run.writeState("started")
	return run
}

// Dir returns the run's state directory, empty when unavailable.
func (r *RunState) Dir() string { return r.dir }

// StageStarted records one team execution as a numbered event file.
func (r *RunState) StageStarted(index int, stage string) {
	if r.dir == "" {
		return
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	name := fmt.Sprintf("%02d_%s.txt", index, sanitizeStage(stage))
	path := filepath.Join(r.dir, "events", name)
	body := fmt.Sprintf("stage: %s\nstarted: %s\n", stage, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		r.store.logger.Error("state: writing event %s failed: %v", path, err)
	}
}

// Completed marks the run finished.
func (r *RunState) Completed() {
	r.writeState("completed")
}

// Failed marks the run errored with the failure message.
func (r *RunState) Failed(msg string) {
	if msg == "" {
		msg = "unknown error"
	}
	r.writeState("error: " + msg)
}

func (r *RunState) writeState(state string) {
	if r.dir == "" {
		return
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	path := filepath.Join(r.dir, "workflow_state.txt")
	body := fmt.Sprintf("run_id: %s\nstate: %s\nupdated: %s\n",
		r.runID, state, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		r.store.logger.Error("state: writing %s failed: %v", path, err)
	}
}

func sanitizeStage(stage string) string {
	var b strings.Builder
	for _, c := range stage {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(byte(c))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
