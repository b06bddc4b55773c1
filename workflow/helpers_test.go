package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Mock helpers
// ---------------------------------------------------------------------------

// mockTask counts invocations and returns a fixed update or error.
type mockTask struct {
	update    Update
	err       error
	delay     time.Duration
	ignoreCtx bool
	calls     atomic.Int32
}

func newMockTask(update Update) *mockTask {
	return &mockTask{update: update}
}

func (m *mockTask) Execute(ctx context.Context, _ Snapshot) (Update, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		if m.ignoreCtx {
			time.Sleep(m.delay)
		} else {
			select {
			case <-time.After(m.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.update, nil
}

// fakeRecorder captures measurements.
type fakeRecorder struct {
	mu    sync.Mutex
	runs  map[RunStatus]int
	nodes map[string]NodeStatus
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{runs: make(map[RunStatus]int), nodes: make(map[string]NodeStatus)}
}

func (f *fakeRecorder) RecordRun(_ string, status RunStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[status]++
}

func (f *fakeRecorder) RecordNode(_ string, node string, status NodeStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[node] = status
}

// fanOutFixture is: start -> router(branches...) -> join.
type fanOutFixture struct {
	graph    *Graph
	start    *mockTask
	branches map[string]*mockTask
	join     *mockTask
}

// buildFanOut wires branch tasks keyed by name. Every branch writes
// "<name>_out" and appends its name to "log".
func buildFanOut(names []string, tasks map[string]*mockTask) *fanOutFixture {
	fields := []Field{Append("log"), Replace("summary")}
	for _, n := range names {
		fields = append(fields, Replace(n+"_out"))
	}
	fx := &fanOutFixture{
		start:    newMockTask(Update{"log": "start"}),
		join:     newMockTask(Update{"summary": "done", "log": "join"}),
		branches: tasks,
	}
	b := NewGraphBuilder("fan-out", MustSchema(fields...)).
		AddNode("start", fx.start).Writes("log").Done().
		AddNode("join", fx.join).Reads("log").Writes("summary", "log").Done().
		AddConditionalEdge("start", Router{
			Targets: names,
			Route:   func(Snapshot) Route { return FanOut(names...) },
		}).
		AddEdge("join", End).
		SetEntry("start")
	for _, n := range names {
		b.AddNode(n, tasks[n]).Writes(n+"_out", "log").Done().AddEdge(n, "join")
	}
	fx.graph = b.MustBuild()
	return fx
}

func branchTask(name string) *mockTask {
	return newMockTask(Update{name + "_out": name + "-result", "log": name})
}
