package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGraphError(t *testing.T, err error, contains string) {
	t.Helper()
	var gde *GraphDefinitionError
	require.ErrorAs(t, err, &gde)
	assert.Contains(t, gde.Error(), contains)
}

func TestGraphBuilder_Validation(t *testing.T) {
	t.Parallel()

	noop := newMockTask(nil)
	tests := []struct {
		name    string
		build   func() (*Graph, error)
		wantErr string
	}{
		{
			name: "no nodes",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).SetEntry("a").Build()
			},
			wantErr: "no nodes",
		},
		{
			name: "entry not set",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).AddNode("a", noop).Done().Build()
			},
			wantErr: "entry node not set",
		},
		{
			name: "entry missing",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).AddNode("a", noop).Done().SetEntry("x").Build()
			},
			wantErr: `entry node "x" does not exist`,
		},
		{
			name: "duplicate node",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().AddNode("a", noop).Done().SetEntry("a").Build()
			},
			wantErr: "registered twice",
		},
		{
			name: "nil task",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).AddNode("a", nil).Done().SetEntry("a").Build()
			},
			wantErr: "has no task",
		},
		{
			name: "reserved name",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).AddNode(End, noop).Done().SetEntry(End).Build()
			},
			wantErr: "reserved",
		},
		{
			name: "dangling static edge",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().AddEdge("a", "ghost").SetEntry("a").Build()
			},
			wantErr: "a -> ghost targets non-existent node",
		},
		{
			name: "edge from unknown node",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().AddEdge("ghost", "a").SetEntry("a").Build()
			},
			wantErr: `edge from non-existent node "ghost"`,
		},
		{
			name: "router undeclared target",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().
					AddConditionalEdge("a", Router{Targets: []string{"ghost"}, Route: func(Snapshot) Route { return UseDefault() }}).
					SetEntry("a").Build()
			},
			wantErr: `non-existent target "ghost"`,
		},
		{
			name: "router without targets",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().
					AddConditionalEdge("a", Router{Route: func(Snapshot) Route { return UseDefault() }}).
					SetEntry("a").Build()
			},
			wantErr: "declares no targets",
		},
		{
			name: "router without function",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().
					AddConditionalEdge("a", Router{Targets: []string{End}}).
					SetEntry("a").Build()
			},
			wantErr: "no route function",
		},
		{
			name: "two routers",
			build: func() (*Graph, error) {
				r := Router{Targets: []string{End}, Route: func(Snapshot) Route { return UseDefault() }}
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().
					AddConditionalEdge("a", r).AddConditionalEdge("a", r).
					SetEntry("a").Build()
			},
			wantErr: "more than one conditional edge",
		},
		{
			name: "undeclared read",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Reads("mood").Done().SetEntry("a").Build()
			},
			wantErr: `reads undeclared field "mood"`,
		},
		{
			name: "undeclared write",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Writes("mood").Done().SetEntry("a").Build()
			},
			wantErr: `writes undeclared field "mood"`,
		},
		{
			name: "cycle",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().AddNode("b", noop).Done().
					AddEdge("a", "b").AddEdge("b", "a").SetEntry("a").Build()
			},
			wantErr: "cycle detected: a -> b -> a",
		},
		{
			name: "cycle through router",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().AddNode("b", noop).Done().
					AddEdge("a", "b").
					AddConditionalEdge("b", Router{Targets: []string{"a", End}, Route: func(Snapshot) Route { return Next(End) }}).
					SetEntry("a").Build()
			},
			wantErr: "cycle detected",
		},
		{
			name: "orphan",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().AddNode("lonely", noop).Done().SetEntry("a").Build()
			},
			wantErr: "orphaned nodes detected",
		},
		{
			name: "unknown blocked terminal",
			build: func() (*Graph, error) {
				return NewGraphBuilder("g", testSchema()).
					AddNode("a", noop).Done().MarkBlocked("ghost").SetEntry("a").Build()
			},
			wantErr: `blocked terminal "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build()
			assert.Nil(t, g)
			requireGraphError(t, err, tt.wantErr)
		})
	}
}

func TestGraphBuilder_FanOutWriteCollision(t *testing.T) {
	t.Parallel()

	noop := newMockTask(nil)
	_, err := NewGraphBuilder("collide", testSchema()).
		AddNode("start", noop).Done().
		AddNode("left", noop).Writes("result").Done().
		AddNode("right", noop).Writes("result").Done().
		AddConditionalEdge("start", Router{
			Targets: []string{"left", "right"},
			Route:   func(Snapshot) Route { return FanOut("left", "right") },
		}).
		SetEntry("start").
		Build()

	requireGraphError(t, err, `both write replace field "result"`)
}

func TestGraphBuilder_StaticFanOutWriteCollision(t *testing.T) {
	t.Parallel()

	noop := newMockTask(nil)
	_, err := NewGraphBuilder("collide", testSchema()).
		AddNode("start", noop).Done().
		AddNode("left", noop).Writes("plan").Done().
		AddNode("right", noop).Writes("plan").Done().
		AddEdge("start", "left").
		AddEdge("start", "right").
		SetEntry("start").
		Build()

	requireGraphError(t, err, `replace field "plan"`)
}

func TestGraphBuilder_CollisionAcrossBranchesOfDifferentLengths(t *testing.T) {
	t.Parallel()

	// start -> {a, b}; a -> c; b -> d. c and d become ready together.
	noop := newMockTask(nil)
	_, err := NewGraphBuilder("skewed", testSchema()).
		AddNode("start", noop).Done().
		AddNode("a", noop).Done().
		AddNode("b", noop).Done().
		AddNode("c", noop).Writes("result").Done().
		AddNode("d", noop).Writes("result").Done().
		AddEdge("start", "a").AddEdge("start", "b").
		AddEdge("a", "c").AddEdge("b", "d").
		SetEntry("start").
		Build()

	requireGraphError(t, err, `"c" and "d"`)
}

func TestGraphBuilder_AppendFieldsMayOverlap(t *testing.T) {
	t.Parallel()

	noop := newMockTask(nil)
	g, err := NewGraphBuilder("append", testSchema()).
		AddNode("start", noop).Done().
		AddNode("left", noop).Writes("messages").Done().
		AddNode("right", noop).Writes("messages").Done().
		AddEdge("start", "left").
		AddEdge("start", "right").
		SetEntry("start").
		Build()

	require.NoError(t, err)
	assert.Equal(t, []string{"start", "left", "right"}, g.Nodes())
}

func TestGraphBuilder_ExclusiveRouterAlternativesMayOverlap(t *testing.T) {
	t.Parallel()

	g, _ := buildGate(true)
	require.NotNil(t, g)

	r, ok := g.Router("supervisor")
	require.True(t, ok)
	assert.True(t, r.Exclusive)
	assert.True(t, g.IsBlocked("blocked"))
	assert.Equal(t, "supervisor", g.Entry())
	assert.Equal(t, []string{End}, g.Edges("aggregator"))
}

func TestGraphBuilder_UsedOnce(t *testing.T) {
	t.Parallel()

	b := NewGraphBuilder("once", testSchema()).AddNode("a", newMockTask(nil)).Done().SetEntry("a")
	_, err := b.Build()
	require.NoError(t, err)
	_, err = b.Build()
	requireGraphError(t, err, "already used")
}

func TestGraphDefinition_ExportAndRebuild(t *testing.T) {
	t.Parallel()

	g, tasks := buildGate(true)
	g.routers["supervisor"].Name = "safety_gate"
	def := g.Definition()

	assert.Equal(t, "gate", def.Name)
	assert.Equal(t, "supervisor", def.Entry)
	require.Len(t, def.Nodes, 5)
	assert.Equal(t, []FieldDefinition{{"messages", "append"}, {"plan", "replace"}, {"result", "replace"}}, def.Fields)

	js, err := def.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, js, `"exclusive": true`)

	yml, err := def.ToYAML()
	require.NoError(t, err)
	assert.Contains(t, yml, "blocked: true")

	mermaid := def.ToMermaid()
	assert.True(t, strings.HasPrefix(mermaid, "flowchart TD\n"))
	assert.Contains(t, mermaid, "supervisor -. choice .-> blocked")
	assert.Contains(t, mermaid, "aggregator --> __end__((end))")

	parsed, err := ParseDefinition([]byte(yml))
	require.NoError(t, err)

	reg := Registry{Tasks: map[string]Task{}, Routes: map[string]RouterFunc{"safety_gate": g.routers["supervisor"].Route}}
	for name, task := range tasks {
		reg.Tasks[name] = task
	}
	rebuilt, err := parsed.Build(reg)
	require.NoError(t, err)
	assert.Equal(t, g.Nodes(), rebuilt.Nodes())
	assert.True(t, rebuilt.IsBlocked("blocked"))
	node, ok := rebuilt.Node("supervisor")
	require.True(t, ok)
	assert.True(t, node.Critical)

	delete(reg.Tasks, "planner")
	_, err = parsed.Build(reg)
	requireGraphError(t, err, `unknown task "planner"`)
}
