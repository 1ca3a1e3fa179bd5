// Package id produces identifiers for workflow runs, agent executions, and
// tasks.
package id

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Strategy identifies the identifier generation algorithm to use.
type Strategy int

const (
	// StrategyKSUID generates lexicographically sortable identifiers.
	StrategyKSUID Strategy = iota
	// StrategyUUIDv7 generates time-ordered identifiers using UUID version 7.
	StrategyUUIDv7
)

var defaultGenerator = &Generator{strategy: StrategyKSUID}

// Generator produces prefixed identifiers.
type Generator struct {
	mu       sync.RWMutex
	strategy Strategy
}

// SetStrategy configures the generation strategy for the default generator.
func SetStrategy(strategy Strategy) {
	defaultGenerator.mu.Lock()
	defaultGenerator.strategy = strategy
	defaultGenerator.mu.Unlock()
}

// NewExecutionID generates an identifier for a single agent execution.
func NewExecutionID() string {
	return defaultGenerator.newIdentifier("exec")
}

// NewTaskID generates an identifier for a task invocation.
func NewTaskID() string {
	return defaultGenerator.newIdentifier("task")
}

// NewRequestID generates an identifier for one LLM transport request.
func NewRequestID() string {
	return defaultGenerator.newIdentifier("req")
}

func (g *Generator) newIdentifier(prefix string) string {
	g.mu.RLock()
	strategy := g.strategy
	g.mu.RUnlock()

	var body string
	switch strategy {
	case StrategyUUIDv7:
		uuidv7, err := uuid.NewV7()
		if err == nil {
			body = uuidv7.String()
			break
		}
		fallthrough
	case StrategyKSUID:
		body = ksuid.New().String()
	default:
		body = ksuid.New().String()
	}

	return fmt.Sprintf("%s-%s", prefix, body)
}

// NewEventID generates a lineage event identifier. Event ids are plain UUIDs
// because they double as event filenames.
func NewEventID() string {
	return uuid.NewString()
}

// NewWorkflowRunID generates a run id of the form wf_<HHMM>_<UUID>.
func NewWorkflowRunID(now time.Time) string {
	return fmt.Sprintf("wf_%s_%s", now.Format("1504"), uuid.NewString())
}

// ShortID returns the first eight characters of id's body, used in
// execution paths. A short type prefix such as "exec-" is stripped first.
func ShortID(id string) string {
	if i := strings.Index(id, "-"); i > 0 && i < 8 {
		id = id[i+1:]
	}
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// IsWorkflowRunID reports whether id has the wf_<HHMM>_<UUID> shape.
func IsWorkflowRunID(id string) bool {
	if !strings.HasPrefix(id, "wf_") {
		return false
	}
	rest := strings.TrimPrefix(id, "wf_")
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || len(parts[0]) != 4 {
		return false
	}
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, err := uuid.Parse(parts[1])
	return err == nil
}
