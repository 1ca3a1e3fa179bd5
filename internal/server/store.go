package server

import (
	"sync"
	"time"
)

// Workflow statuses as reported to clients.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Record tracks one submitted workflow through its lifecycle.
type Record struct {
	ID          string         `json:"workflow_id"`
	Status      string         `json:"status"`
	StoragePath string         `json:"storage_path,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Store keeps workflow records in memory. Records survive only as long as
// the process; lineage files are the durable trail.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{records: map[string]*Record{}}
}

// Create registers a pending workflow.
func (s *Store) Create(id, storagePath string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	rec := &Record{
		ID:          id,
		Status:      StatusPending,
		StoragePath: storagePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.records[id] = rec
	return rec
}

// SetStatus advances a record's status, optionally with error or result.
func (s *Store) SetStatus(id, status string, result map[string]any, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return
	}
	rec.Status = status
	rec.Result = result
	rec.Error = errMsg
	rec.UpdatedAt = time.Now().UTC()
}

// Get returns a copy of the record, or nil when unknown.
func (s *Store) Get(id string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	out := *rec
	return &out
}
