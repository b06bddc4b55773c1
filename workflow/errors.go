package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunTimeout is reported when the run deadline expires before the graph terminates.
	ErrRunTimeout = errors.New("workflow: run timed out")
	// ErrRunCancelled is reported when the caller cancels the run context.
	ErrRunCancelled = errors.New("workflow: run cancelled")
)

// GraphDefinitionError reports an invalid graph detected while building it.
type GraphDefinitionError struct {
	Graph  string
	Reason string
}

func (e *GraphDefinitionError) Error() string {
	if e.Graph == "" {
		return "graph definition invalid: " + e.Reason
	}
	return fmt.Sprintf("graph %q definition invalid: %s", e.Graph, e.Reason)
}

func graphError(graph, format string, args ...any) *GraphDefinitionError {
	return &GraphDefinitionError{Graph: graph, Reason: fmt.Sprintf(format, args...)}
}

// SchemaViolation reports an update touching a field the node is not allowed to write.
type SchemaViolation struct {
	Node   string
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("schema violation on field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema violation by node %q on field %q: %s", e.Node, e.Field, e.Reason)
}

// NodeFailure wraps the error a node returned, panicked with, or timed out with.
type NodeFailure struct {
	Node     string
	Step     int
	Critical bool
	Err      error
}

func (e *NodeFailure) Error() string {
	kind := "recoverable"
	if e.Critical {
		kind = "critical"
	}
	return fmt.Sprintf("node %q failed (%s, step %d): %v", e.Node, kind, e.Step, e.Err)
}

func (e *NodeFailure) Unwrap() error { return e.Err }

// FanOutError is returned when every member of a ready set failed.
type FanOutError struct {
	Step     int
	Failures []*NodeFailure
}

func (e *FanOutError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Node
	}
	return fmt.Sprintf("all %d node(s) failed at step %d: %s", len(e.Failures), e.Step, strings.Join(names, ", "))
}

// Unwrap exposes every node failure to errors.Is and errors.As.
func (e *FanOutError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// EngineError reports a condition the scheduler cannot make progress from,
// such as a router returning a target it never declared.
type EngineError struct {
	Node   string
	Reason string
}

func (e *EngineError) Error() string {
	if e.Node == "" {
		return "workflow engine error: " + e.Reason
	}
	return fmt.Sprintf("workflow engine error at node %q: %s", e.Node, e.Reason)
}
