package wellness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

func TestBuildGraph_Topology(t *testing.T) {
	t.Parallel()

	g, err := BuildGraph(NewOffline(), WithAgentTimeout(5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, GraphName, g.Name())
	assert.Equal(t, NodeSupervisor, g.Entry())
	assert.ElementsMatch(t, []string{
		NodeSupervisor, NodePlanner, NodeEmotion, NodeCoping, NodeResources, NodeAggregator, NodeBlocked,
	}, g.Nodes())

	sup, ok := g.Node(NodeSupervisor)
	require.True(t, ok)
	assert.True(t, sup.Critical)
	assert.Equal(t, 5*time.Second, sup.Timeout)

	gate, ok := g.Router(NodeSupervisor)
	require.True(t, ok)
	assert.True(t, gate.Exclusive)
	assert.Equal(t, RouteSafetyGate, gate.Name)

	fan, ok := g.Router(NodePlanner)
	require.True(t, ok)
	assert.False(t, fan.Exclusive)
	assert.Equal(t, NodeEmotion, fan.Default)

	for _, n := range subAgents {
		assert.Equal(t, []string{NodeAggregator}, g.Edges(n))
	}
	assert.True(t, g.IsBlocked(NodeBlocked))
	assert.False(t, g.IsBlocked(NodeAggregator))
}

func TestRouteFromSupervisor(t *testing.T) {
	t.Parallel()

	allowed := workflow.NewSnapshot(map[string]any{FieldSupervisor: SupervisorOutput{Allowed: true}})
	refused := workflow.NewSnapshot(map[string]any{FieldSupervisor: SupervisorOutput{Allowed: false}})

	assert.Equal(t, workflow.Next(NodePlanner), routeFromSupervisor(allowed))
	assert.Equal(t, workflow.Next(NodeBlocked), routeFromSupervisor(refused))
	assert.Equal(t, workflow.Next(NodePlanner), routeFromSupervisor(workflow.NewSnapshot(nil)),
		"a missing supervisor output is treated as the allowed default")
}

func TestRouteFromPlanner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		agents []string
		want   workflow.Route
	}{
		{name: "canonical order", agents: []string{NodeResources, NodeEmotion}, want: workflow.FanOut(NodeEmotion, NodeResources)},
		{name: "unknown names ignored", agents: []string{"therapist", NodeCoping}, want: workflow.FanOut(NodeCoping)},
		{name: "empty selection", agents: []string{"therapist"}, want: workflow.FanOut()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := workflow.NewSnapshot(map[string]any{FieldPlan: Plan{Agents: tt.agents}})
			assert.Equal(t, tt.want, routeFromPlanner(snap))
		})
	}
}

func TestGraphDefinition_RoundTrip(t *testing.T) {
	t.Parallel()

	g, err := BuildGraph(NewOffline())
	require.NoError(t, err)

	yml, err := g.Definition().ToYAML()
	require.NoError(t, err)
	assert.Contains(t, yml, "route: "+RouteSubAgents)

	def, err := workflow.ParseDefinition([]byte(yml))
	require.NoError(t, err)
	rebuilt, err := def.Build(Registry(NewOffline()))
	require.NoError(t, err)

	assert.Equal(t, g.Nodes(), rebuilt.Nodes())
	assert.Equal(t, g.Definition(), rebuilt.Definition())

	mermaid := def.ToMermaid()
	assert.Contains(t, mermaid, "supervisor -. choice .-> blocked")
	assert.Contains(t, mermaid, "planner -. fan-out .-> coping_strategy")
	assert.Contains(t, mermaid, "aggregator --> __end__((end))")
}
