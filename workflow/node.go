package workflow

import (
	"context"
	"time"
)

// Task is the unit of work behind a node. It receives a snapshot of state
// taken when the node was dispatched and returns the fields it wants merged.
// A task must not retain or mutate values reachable from the snapshot.
type Task interface {
	Execute(ctx context.Context, snap Snapshot) (Update, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, snap Snapshot) (Update, error)

// Execute implements Task.
func (f TaskFunc) Execute(ctx context.Context, snap Snapshot) (Update, error) {
	return f(ctx, snap)
}

// Node is a named step of a graph.
type Node struct {
	Name string
	Task Task

	// Reads lists the fields the task consumes. It is checked against the
	// schema and used by adapters to project inputs.
	Reads []string
	// Writes lists the fields the task may produce. Updates outside this set
	// abort the run with a *SchemaViolation.
	Writes []string

	// Critical nodes end the run on failure instead of being skipped.
	Critical bool
	// Timeout bounds one invocation and overrides the run's node timeout.
	Timeout time.Duration
}

func (n *Node) writes(field string) bool {
	for _, w := range n.Writes {
		if w == field {
			return true
		}
	}
	return false
}
