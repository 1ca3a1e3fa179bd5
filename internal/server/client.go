package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"recast/internal/errors"
	"recast/internal/logging"
)

// Client submits workflows to a running service and polls for completion.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
	sleeper errors.Sleeper
}

// NewClient targets host:port.
func NewClient(host string, port int, logger logging.Logger) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.OrNop(logger),
		sleeper: errors.SleepContext,
	}
}

// Submit posts a workflow request and returns the acknowledgement.
func (c *Client) Submit(ctx context.Context, req WorkflowRequest) (*WorkflowResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/workflow", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit workflow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("submit workflow: %s: %s", resp.Status, payload)
	}
	var ack WorkflowResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ack, nil
}

// Status fetches the current record for a workflow id.
func (c *Client) Status(ctx context.Context, workflowID string) (*Record, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/workflow/"+workflowID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("workflow %s not found", workflowID)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch status: %s: %s", resp.Status, payload)
	}
	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &rec, nil
}

// Poll waits for the workflow to settle, checking every interval up to
// maxPolls times.
func (c *Client) Poll(ctx context.Context, workflowID string, interval time.Duration, maxPolls int) (*Record, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 60
	}
	for i := 0; i < maxPolls; i++ {
		rec, err := c.Status(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		switch rec.Status {
		case StatusSuccess, StatusError:
			return rec, nil
		}
		c.logger.Debug("client: workflow %s still %s (poll %d/%d)",
			workflowID, rec.Status, i+1, maxPolls)
		if err := c.sleeper(ctx, interval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("workflow %s did not settle after %d polls", workflowID, maxPolls)
}
