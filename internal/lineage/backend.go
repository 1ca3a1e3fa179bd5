package lineage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"recast/internal/logging"
)

// Backend persists lineage events.
type Backend interface {
	Record(event *Event) error
}

// FileBackend writes each event to
// <root>/<YYYYMMDD>/<run_id>/events/<event_id>.json. Writes go through a
// temp file and a rename so readers never observe a partial event.
type FileBackend struct {
	root   string
	logger logging.Logger
	mu     sync.Mutex
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a file backend rooted at dir.
func NewFileBackend(dir string, logger logging.Logger) *FileBackend {
	return &FileBackend{root: dir, logger: logging.OrNop(logger)}
}

// RunDir returns the directory holding one run's events.
func (b *FileBackend) RunDir(timestamp time.Time, runID string) string {
	return filepath.Join(b.root, timestamp.Format("20060102"), runID)
}

func (b *FileBackend) Record(event *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	runDir := b.RunDir(event.Timestamp.UTC(), event.Workflow.RunID)
	eventsDir := filepath.Join(runDir, "events")
	if err := os.MkdirAll(eventsDir, 0o755); err != nil {
		return fmt.Errorf("create lineage dir: %w", err)
	}
	// Reserved for error payloads and input/output snapshots.
	for _, sub := range []string{"errors", "inputs", "outputs"} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return fmt.Errorf("create lineage dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lineage event %s: %w", event.EventID, err)
	}

	finalPath := filepath.Join(eventsDir, event.EventID+".json")
	tmpPath := filepath.Join(eventsDir, event.EventID+".tmp")
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write lineage event %s: %w", event.EventID, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("finalize lineage event %s: %w", event.EventID, err)
	}

	b.logger.Debug("lineage: event %s saved to %s", event.EventID, finalPath)
	return nil
}
