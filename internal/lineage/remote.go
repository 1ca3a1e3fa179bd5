package lineage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"recast/internal/logging"
)

// RemoteBackend emits a COMPLETE run event to an OpenLineage-style
// collector. Collector failures are logged and swallowed: lineage must
// never break a workflow.
type RemoteBackend struct {
	url       string
	namespace string
	client    *http.Client
	logger    logging.Logger
}

var _ Backend = (*RemoteBackend)(nil)

// NewRemoteBackend creates a backend posting to the given collector URL.
func NewRemoteBackend(url, namespace string, logger logging.Logger) *RemoteBackend {
	return &RemoteBackend{
		url:       url,
		namespace: namespace,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logging.OrNop(logger),
	}
}

func (b *RemoteBackend) Record(event *Event) error {
	run := map[string]any{
		"runId":  event.Workflow.RunID,
		"facets": map[string]any{},
	}
	facets := run["facets"].(map[string]any)
	if event.Workflow.ParentID != "" {
		facets["parent"] = map[string]any{"run_id": event.Workflow.ParentID}
	}
	facets["documentation"] = map[string]any{
		"description": fmt.Sprintf("Agent: %s", event.Agent.Name),
	}

	payload := map[string]any{
		"eventType": "COMPLETE",
		"eventTime": event.Timestamp.UTC().Format(time.RFC3339),
		"run":       run,
		"job": map[string]any{
			"namespace": b.namespace,
			"name":      event.Agent.Name,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("lineage: marshal remote event failed: %v", err)
		return nil
	}
	resp, err := b.client.Post(b.url, "application/json", bytes.NewReader(body))
	if err != nil {
		b.logger.Error("lineage: remote emit failed: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b.logger.Error("lineage: remote collector returned status %d", resp.StatusCode)
	}
	return nil
}
