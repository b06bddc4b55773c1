package workflow

import "time"

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	// RunCompleted means the graph reached its terminal nodes.
	RunCompleted RunStatus = "completed"
	// RunBlocked means a designated blocked terminal ran and ended the run.
	RunBlocked RunStatus = "blocked"
	// RunFailed means a critical failure, a fully failed step, or an engine error.
	RunFailed RunStatus = "failed"
	// RunCancelled means the caller cancelled the run.
	RunCancelled RunStatus = "cancelled"
	// RunTimedOut means the run deadline expired.
	RunTimedOut RunStatus = "timed_out"
)

// NodeStatus is the outcome of one node invocation.
type NodeStatus string

const (
	NodeSucceeded NodeStatus = "succeeded"
	NodeFailed    NodeStatus = "failed"
	NodeCancelled NodeStatus = "cancelled"
)

// TraceEntry records one node invocation.
type TraceEntry struct {
	Step      int
	Node      string
	Status    NodeStatus
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// RunResult is the immutable outcome of one run.
type RunResult struct {
	RunID string
	Graph string

	Status RunStatus
	// State is the state as of termination, including everything merged
	// before a failure, cancellation or timeout.
	State Snapshot
	Err   error

	// Trace lists node invocations per step in completion order.
	Trace []TraceEntry
	Steps int

	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the run reached a terminal node without error.
func (r *RunResult) OK() bool {
	return r.Status == RunCompleted || r.Status == RunBlocked
}

// Duration returns the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Visited returns the names of invoked nodes in trace order. Cancelled
// invocations that never started are omitted.
func (r *RunResult) Visited() []string {
	out := make([]string, 0, len(r.Trace))
	for _, e := range r.Trace {
		if e.Status != NodeCancelled {
			out = append(out, e.Node)
		}
	}
	return out
}

// Failures returns the trace entries of failed nodes.
func (r *RunResult) Failures() []TraceEntry {
	var out []TraceEntry
	for _, e := range r.Trace {
		if e.Status == NodeFailed {
			out = append(out, e)
		}
	}
	return out
}

// Invocations counts how many times a node was invoked.
func (r *RunResult) Invocations(node string) int {
	n := 0
	for _, e := range r.Trace {
		if e.Node == node && e.Status != NodeCancelled {
			n++
		}
	}
	return n
}
