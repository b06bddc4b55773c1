package workflow

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	runTimeout     time.Duration
	nodeTimeout    time.Duration
	deterministic  bool
	maxConcurrency int
	runID          string
	emitter        Emitter
}

// WithRunTimeout bounds the whole run. On expiry the run ends as RunTimedOut
// with the state merged so far.
func WithRunTimeout(d time.Duration) RunOption {
	return func(o *runOptions) { o.runTimeout = d }
}

// WithNodeTimeout bounds each node invocation unless the node sets its own timeout.
func WithNodeTimeout(d time.Duration) RunOption {
	return func(o *runOptions) { o.nodeTimeout = d }
}

// WithDeterministicOrder runs each ready set sequentially in ready-set order,
// making append-field order reproducible.
func WithDeterministicOrder(enabled bool) RunOption {
	return func(o *runOptions) { o.deterministic = enabled }
}

// WithMaxConcurrency limits how many nodes of one ready set run at once. Zero means unlimited.
func WithMaxConcurrency(n int) RunOption {
	return func(o *runOptions) { o.maxConcurrency = n }
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// WithEmitter streams run events to emit.
func WithEmitter(emit Emitter) RunOption {
	return func(o *runOptions) { o.emitter = emit }
}

// Recorder receives run and node measurements.
type Recorder interface {
	RecordRun(graph string, status RunStatus, d time.Duration)
	RecordNode(graph, node string, status NodeStatus, d time.Duration)
}

// MultiRecorder fans measurements out to several recorders.
type MultiRecorder []Recorder

// RecordRun implements Recorder.
func (m MultiRecorder) RecordRun(graph string, status RunStatus, d time.Duration) {
	for _, r := range m {
		r.RecordRun(graph, status, d)
	}
}

// RecordNode implements Recorder.
func (m MultiRecorder) RecordNode(graph, node string, status NodeStatus, d time.Duration) {
	for _, r := range m {
		r.RecordNode(graph, node, status, d)
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, RunStatus, time.Duration)          {}
func (nopRecorder) RecordNode(string, string, NodeStatus, time.Duration) {}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer used for run and node spans.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithHistoryStore archives a record of every finished run.
func WithHistoryStore(store HistoryStore) ExecutorOption {
	return func(e *Executor) { e.history = store }
}

// WithDefaultRunOptions applies opts to every run before the per-run options.
func WithDefaultRunOptions(opts ...RunOption) ExecutorOption {
	return func(e *Executor) { e.defaults = append(e.defaults, opts...) }
}
