package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NisargKadam/mental-wellness-agent/internal/ctxkeys"
)

// InstrumentationName names the tracer and meter of the engine.
const InstrumentationName = "github.com/NisargKadam/mental-wellness-agent/workflow"

// Executor runs graphs. It holds no per-run state, so one Executor can run
// any number of graphs concurrently.
type Executor struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
	history  HistoryStore
	defaults []RunOption
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(InstrumentationName),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "workflow_executor"))
	return e
}

var defaultExecutor = NewExecutor()

// Run executes g with the default executor.
func Run(ctx context.Context, g *Graph, entry string, initial Update, opts ...RunOption) *RunResult {
	return defaultExecutor.Run(ctx, g, entry, initial, opts...)
}

// Run executes g from entry (the graph's default entry when empty) over a
// state seeded with initial. It always returns a result; failures are
// reported through RunResult.Status and RunResult.Err.
func (e *Executor) Run(ctx context.Context, g *Graph, entry string, initial Update, opts ...RunOption) *RunResult {
	var o runOptions
	for _, opt := range e.defaults {
		opt(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.emitter == nil {
		o.emitter, _ = emitterFromContext(ctx)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if entry == "" {
		entry = g.Entry()
	}

	r := &run{
		exec:   e,
		graph:  g,
		opts:   o,
		logger: e.logger.With(zap.String("run_id", o.runID), zap.String("graph", g.Name())),
		result: &RunResult{RunID: o.runID, Graph: g.Name(), StartedAt: time.Now()},
	}

	ctx = ctxkeys.WithRunID(ctx, o.runID)
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.graph", g.Name()),
		attribute.String("workflow.run_id", o.runID),
		attribute.String("workflow.entry", entry),
	))
	defer span.End()

	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	r.logger.Info("starting workflow run", zap.String("entry_node", entry))
	r.emit(Event{Type: EventRunStart, Node: entry})

	status, err := r.start(ctx, entry, initial)
	res := r.finish(status, err)

	span.SetAttributes(
		attribute.String("workflow.status", string(res.Status)),
		attribute.Int("workflow.steps", res.Steps),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	if e.history != nil {
		// The run context may already be cancelled; archiving should still happen.
		if err := e.history.Save(context.WithoutCancel(ctx), NewRunRecord(res)); err != nil {
			r.logger.Warn("failed to archive run", zap.Error(err))
		}
	}
	return res
}

// run is the per-invocation execution frame.
type run struct {
	exec   *Executor
	graph  *Graph
	opts   runOptions
	logger *zap.Logger
	state  *State
	result *RunResult

	mu      sync.Mutex
	blocked bool
	emitMu  sync.Mutex
}

type outcome struct {
	status NodeStatus
	err    error
	fatal  bool
}

func (r *run) start(ctx context.Context, entry string, initial Update) (RunStatus, error) {
	state, err := NewState(r.graph.Schema(), initial)
	if err != nil {
		r.state, _ = NewState(r.graph.Schema(), nil)
		return RunFailed, fmt.Errorf("invalid initial state: %w", err)
	}
	r.state = state
	if !r.graph.isEntry(entry) {
		return RunFailed, &EngineError{Node: entry, Reason: "not a declared entry point"}
	}
	return r.loop(ctx, entry)
}

func (r *run) loop(ctx context.Context, entry string) (RunStatus, error) {
	ready := []string{entry}
	for step := 1; len(ready) > 0; step++ {
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}
		r.result.Steps = step

		outcomes, fatal := r.executeStep(ctx, step, ready)
		if fatal != nil {
			return RunFailed, fatal
		}
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}

		var failures []*NodeFailure
		for _, oc := range outcomes {
			var nf *NodeFailure
			if oc.status == NodeFailed && errors.As(oc.err, &nf) {
				failures = append(failures, nf)
			}
		}
		if len(failures) == len(ready) {
			return RunFailed, &FanOutError{Step: step, Failures: failures}
		}

		next, err := r.nextReadySet(ready, outcomes)
		if err != nil {
			return RunFailed, err
		}
		r.logger.Debug("step complete",
			zap.Int("step", step),
			zap.Strings("ready", ready),
			zap.Strings("next", next),
			zap.Int("failed", len(failures)),
		)
		r.emit(Event{Type: EventStepComplete, Step: step, Next: next})
		ready = next
	}
	if r.blocked {
		return RunBlocked, nil
	}
	return RunCompleted, nil
}

func interrupted(err error) (RunStatus, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return RunTimedOut, ErrRunTimeout
	}
	return RunCancelled, ErrRunCancelled
}

// executeStep runs one ready set to completion and merges every success as
// it arrives. It returns the first fatal error, after which in-flight
// siblings are cancelled.
func (r *run) executeStep(ctx context.Context, step int, ready []string) ([]outcome, error) {
	snap := r.state.Snapshot()
	stepCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	outcomes := make([]outcome, len(ready))
	var (
		fatalOnce sync.Once
		fatal     error
	)
	runOne := func(i int) {
		node := r.graph.nodes[ready[i]]
		oc := r.invoke(stepCtx, step, node, snap)
		outcomes[i] = oc
		if oc.fatal {
			fatalOnce.Do(func() {
				fatal = oc.err
				cancel(oc.err)
			})
		}
	}

	if r.opts.deterministic || len(ready) == 1 {
		for i := range ready {
			runOne(i)
		}
		return outcomes, fatal
	}

	var g errgroup.Group
	if r.opts.maxConcurrency > 0 {
		g.SetLimit(r.opts.maxConcurrency)
	}
	for i := range ready {
		g.Go(func() error {
			runOne(i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, fatal
}

type taskResult struct {
	update Update
	err    error
}

// invoke runs one node, merges its update and records the outcome.
func (r *run) invoke(ctx context.Context, step int, node *Node, snap Snapshot) outcome {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		oc := outcome{status: NodeCancelled, err: context.Cause(ctx)}
		r.record(step, node, started, oc)
		return oc
	}

	timeout := node.Timeout
	if timeout <= 0 {
		timeout = r.opts.nodeTimeout
	}
	nodeCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	nodeCtx, span := r.exec.tracer.Start(nodeCtx, "workflow.node", trace.WithAttributes(
		attribute.String("workflow.node", node.Name),
		attribute.Int("workflow.step", step),
		attribute.Bool("workflow.critical", node.Critical),
	))
	defer span.End()

	r.logger.Debug("node started", zap.String("node", node.Name), zap.Int("step", step))
	r.emit(Event{Type: EventNodeStart, Step: step, Node: node.Name})

	done := make(chan taskResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- taskResult{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		u, err := node.Task.Execute(nodeCtx, snap)
		done <- taskResult{update: u, err: err}
	}()

	var res taskResult
	select {
	case res = <-done:
	case <-nodeCtx.Done():
		select {
		case res = <-done:
		default:
			res = taskResult{err: nodeCtx.Err()}
		}
	}

	var oc outcome
	switch {
	case res.err != nil && ctx.Err() != nil:
		oc = outcome{status: NodeCancelled, err: context.Cause(ctx)}
	case res.err != nil:
		err := res.err
		if errors.Is(err, context.DeadlineExceeded) && nodeCtx.Err() != nil {
			err = fmt.Errorf("node timed out after %s: %w", timeout, err)
		}
		oc = outcome{
			status: NodeFailed,
			err:    &NodeFailure{Node: node.Name, Step: step, Critical: node.Critical, Err: err},
			fatal:  node.Critical,
		}
	default:
		if err := r.merge(node, res.update); err != nil {
			oc = outcome{status: NodeFailed, err: err, fatal: true}
		} else {
			oc = outcome{status: NodeSucceeded}
		}
	}

	if oc.err != nil {
		span.RecordError(oc.err)
		span.SetStatus(codes.Error, oc.err.Error())
	}
	r.record(step, node, started, oc)
	return oc
}

// merge checks an update against the node's write set and applies it.
func (r *run) merge(node *Node, u Update) error {
	for field := range u {
		if !node.writes(field) {
			return &SchemaViolation{Node: node.Name, Field: field, Reason: "field is not in the node's write set"}
		}
	}
	if err := r.state.Merge(u); err != nil {
		var sv *SchemaViolation
		if errors.As(err, &sv) {
			sv.Node = node.Name
		}
		return err
	}
	return nil
}

func (r *run) record(step int, node *Node, started time.Time, oc outcome) {
	d := time.Since(started)
	r.mu.Lock()
	r.result.Trace = append(r.result.Trace, TraceEntry{
		Step:      step,
		Node:      node.Name,
		Status:    oc.status,
		Err:       oc.err,
		StartedAt: started,
		Duration:  d,
	})
	if oc.status == NodeSucceeded && r.graph.IsBlocked(node.Name) {
		r.blocked = true
	}
	r.mu.Unlock()

	r.exec.recorder.RecordNode(r.graph.Name(), node.Name, oc.status, d)

	fields := []zap.Field{zap.String("node", node.Name), zap.Int("step", step), zap.Duration("duration", d)}
	switch oc.status {
	case NodeSucceeded:
		r.logger.Debug("node completed", fields...)
		r.emit(Event{Type: EventNodeComplete, Step: step, Node: node.Name, Duration: d})
	case NodeFailed:
		if oc.fatal {
			r.logger.Error("node failed", append(fields, zap.Bool("fatal", true), zap.Error(oc.err))...)
		} else {
			r.logger.Warn("node failed", append(fields, zap.Error(oc.err))...)
		}
		r.emit(Event{Type: EventNodeError, Step: step, Node: node.Name, Duration: d, Error: oc.err.Error()})
	case NodeCancelled:
		r.logger.Debug("node cancelled", fields...)
		r.emit(Event{Type: EventNodeError, Step: step, Node: node.Name, Duration: d, Error: errString(oc.err)})
	}
}

// nextReadySet evaluates the edges of every successful node against the
// merged state. Static targets come first, then router targets; the union
// keeps first-seen order.
func (r *run) nextReadySet(ready []string, outcomes []outcome) ([]string, error) {
	snap := r.state.Snapshot()
	seen := make(map[string]bool)
	var next []string
	add := func(targets []string) {
		for _, t := range targets {
			if t == End || seen[t] {
				continue
			}
			seen[t] = true
			next = append(next, t)
		}
	}
	for i, name := range ready {
		if outcomes[i].status != NodeSucceeded {
			continue
		}
		add(r.graph.edges[name])
		router, ok := r.graph.routers[name]
		if !ok {
			continue
		}
		route, err := evalRouter(router, snap)
		if err != nil {
			return nil, &EngineError{Node: name, Reason: err.Error()}
		}
		targets, err := router.resolve(name, route)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("router decided", zap.String("node", name), zap.Stringer("route", route))
		add(targets)
	}
	return next, nil
}

func evalRouter(router *Router, snap Snapshot) (route Route, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("router panicked: %v", p)
		}
	}()
	return router.Route(snap), nil
}

func (r *run) finish(status RunStatus, err error) *RunResult {
	res := r.result
	res.Status = status
	res.Err = err
	res.FinishedAt = time.Now()
	if r.state != nil {
		res.State = r.state.Snapshot()
	}

	r.exec.recorder.RecordRun(r.graph.Name(), status, res.Duration())
	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Int("steps", res.Steps),
		zap.Duration("duration", res.Duration()),
	}
	if err != nil {
		r.logger.Warn("workflow run ended with error", append(fields, zap.Error(err))...)
	} else {
		r.logger.Info("workflow run finished", fields...)
	}
	r.emit(Event{Type: EventRunEnd, Status: status, Duration: res.Duration(), Error: errString(err)})
	return res
}

func (r *run) emit(ev Event) {
	if r.opts.emitter == nil {
		return
	}
	ev.RunID = r.opts.runID
	ev.Time = time.Now()
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.opts.emitter(ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
