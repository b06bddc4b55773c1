package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrRunNotFound is returned by history stores for unknown run IDs.
var ErrRunNotFound = errors.New("workflow: run not found")

// NodeRecord is the archived form of a TraceEntry.
type NodeRecord struct {
	Step      int           `json:"step"`
	Node      string        `json:"node"`
	Status    NodeStatus    `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// RunRecord is the archived form of a RunResult.
type RunRecord struct {
	RunID      string         `json:"run_id"`
	Graph      string         `json:"graph"`
	Status     RunStatus      `json:"status"`
	Error      string         `json:"error,omitempty"`
	Steps      int            `json:"steps"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   time.Duration  `json:"duration"`
	Nodes      []NodeRecord   `json:"nodes"`
	State      map[string]any `json:"state,omitempty"`
}

// NewRunRecord converts a result into its archived form.
func NewRunRecord(res *RunResult) *RunRecord {
	rec := &RunRecord{
		RunID:      res.RunID,
		Graph:      res.Graph,
		Status:     res.Status,
		Steps:      res.Steps,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Duration:   res.Duration(),
		Nodes:      make([]NodeRecord, 0, len(res.Trace)),
		State:      res.State.Values(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	for _, e := range res.Trace {
		nr := NodeRecord{
			Step:      e.Step,
			Node:      e.Node,
			Status:    e.Status,
			StartedAt: e.StartedAt,
			Duration:  e.Duration,
		}
		if e.Err != nil {
			nr.Error = e.Err.Error()
		}
		rec.Nodes = append(rec.Nodes, nr)
	}
	return rec
}

// HistoryFilter selects archived runs. Zero fields match everything.
type HistoryFilter struct {
	Graph  string
	Status RunStatus
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Match reports whether rec satisfies the filter, ignoring Limit.
func (f HistoryFilter) Match(rec *RunRecord) bool {
	if f.Graph != "" && rec.Graph != f.Graph {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && rec.StartedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.StartedAt.After(f.Until) {
		return false
	}
	return true
}

// HistoryStore archives finished runs for diagnostics.
type HistoryStore interface {
	Save(ctx context.Context, rec *RunRecord) error
	Get(ctx context.Context, runID string) (*RunRecord, error)
	// List returns matching records, newest first.
	List(ctx context.Context, filter HistoryFilter) ([]*RunRecord, error)
}

// MemoryHistoryStore keeps run records in process memory.
type MemoryHistoryStore struct {
	records map[string]*RunRecord
	order   []string
	max     int
	mu      sync.RWMutex
}

// NewMemoryHistoryStore creates a store holding at most max records; zero means unbounded.
func NewMemoryHistoryStore(max int) *MemoryHistoryStore {
	return &MemoryHistoryStore{
		records: make(map[string]*RunRecord),
		max:     max,
	}
}

// Save stores a record, evicting the oldest one when full.
func (s *MemoryHistoryStore) Save(_ context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.RunID]; !exists {
		s.order = append(s.order, rec.RunID)
	}
	s.records[rec.RunID] = rec
	for s.max > 0 && len(s.order) > s.max {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Get retrieves a record by run ID.
func (s *MemoryHistoryStore) Get(_ context.Context, runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return rec, nil
}

// List returns matching records, newest first.
func (s *MemoryHistoryStore) List(_ context.Context, filter HistoryFilter) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RunRecord
	for _, rec := range s.records {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	SortRecords(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SortRecords orders records newest first, breaking ties by run ID.
func SortRecords(recs []*RunRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].StartedAt.Equal(recs[j].StartedAt) {
			return recs[i].StartedAt.After(recs[j].StartedAt)
		}
		return recs[i].RunID < recs[j].RunID
	})
}
