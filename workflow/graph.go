package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxReadySetsExplored bounds the build-time search over possible ready sets.
const maxReadySetsExplored = 10000

// Graph is an immutable, validated workflow definition. It is safe to run
// concurrently from many goroutines.
type Graph struct {
	name        string
	description string
	schema      *Schema
	nodes       map[string]*Node
	order       []string
	edges       map[string][]string
	routers     map[string]*Router
	entries     []string
	blocked     map[string]bool
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Description returns the graph description.
func (g *Graph) Description() string { return g.description }

// Schema returns the state schema of the graph.
func (g *Graph) Schema() *Schema { return g.schema }

// Entry returns the default entry node.
func (g *Graph) Entry() string { return g.entries[0] }

// Entries returns every node a run may start from.
func (g *Graph) Entries() []string {
	cp := make([]string, len(g.entries))
	copy(cp, g.entries)
	return cp
}

// Node returns a registered node.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns node names in registration order.
func (g *Graph) Nodes() []string {
	cp := make([]string, len(g.order))
	copy(cp, g.order)
	return cp
}

// Edges returns the static successors of a node.
func (g *Graph) Edges(name string) []string {
	cp := make([]string, len(g.edges[name]))
	copy(cp, g.edges[name])
	return cp
}

// Router returns the conditional edge leaving a node, if any.
func (g *Graph) Router(name string) (*Router, bool) {
	r, ok := g.routers[name]
	return r, ok
}

// IsBlocked reports whether reaching the node ends the run as Blocked.
func (g *Graph) IsBlocked(name string) bool { return g.blocked[name] }

func (g *Graph) isEntry(name string) bool {
	for _, e := range g.entries {
		if e == name {
			return true
		}
	}
	return false
}

// possibleSuccessors returns every node that may follow name, excluding End.
func (g *Graph) possibleSuccessors(name string) []string {
	var out []string
	for _, t := range g.edges[name] {
		if t != End {
			out = append(out, t)
		}
	}
	if r, ok := g.routers[name]; ok {
		for _, t := range r.successors() {
			if t != End {
				out = append(out, t)
			}
		}
	}
	return out
}

// GraphBuilder provides a fluent API for constructing graphs. Errors are
// collected and reported by Build.
type GraphBuilder struct {
	graph  *Graph
	errs   []string
	logger *zap.Logger
}

// NewGraphBuilder creates a builder for a graph over the given schema.
func NewGraphBuilder(name string, schema *Schema) *GraphBuilder {
	return &GraphBuilder{
		graph: &Graph{
			name:    name,
			schema:  schema,
			nodes:   make(map[string]*Node),
			edges:   make(map[string][]string),
			routers: make(map[string]*Router),
			blocked: make(map[string]bool),
		},
		logger: zap.NewNop(),
	}
}

// WithDescription sets the graph description.
func (b *GraphBuilder) WithDescription(desc string) *GraphBuilder {
	b.graph.description = desc
	return b
}

// WithLogger sets a custom logger.
func (b *GraphBuilder) WithLogger(logger *zap.Logger) *GraphBuilder {
	if logger != nil {
		b.logger = logger.With(zap.String("component", "graph_builder"))
	}
	return b
}

func (b *GraphBuilder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Sprintf(format, args...))
}

// Add registers a fully described node.
func (b *GraphBuilder) Add(node Node) *GraphBuilder {
	switch {
	case node.Name == "":
		b.fail("node name is empty")
	case node.Name == End:
		b.fail("node name %q is reserved", End)
	case b.graph.nodes[node.Name] != nil:
		b.fail("node %q registered twice", node.Name)
	case node.Task == nil:
		b.fail("node %q has no task", node.Name)
	default:
		n := node
		n.Reads = append([]string(nil), node.Reads...)
		n.Writes = append([]string(nil), node.Writes...)
		b.graph.nodes[n.Name] = &n
		b.graph.order = append(b.graph.order, n.Name)
	}
	return b
}

// AddNode starts configuring a node with a NodeBuilder.
func (b *GraphBuilder) AddNode(name string, task Task) *NodeBuilder {
	return &NodeBuilder{node: Node{Name: name, Task: task}, parent: b}
}

// AddEdge adds a static edge. Several static edges from one node all fire.
func (b *GraphBuilder) AddEdge(from, to string) *GraphBuilder {
	b.graph.edges[from] = append(b.graph.edges[from], to)
	return b
}

// AddConditionalEdge attaches a router to a node. A node has at most one router.
func (b *GraphBuilder) AddConditionalEdge(from string, router Router) *GraphBuilder {
	if _, dup := b.graph.routers[from]; dup {
		b.fail("node %q has more than one conditional edge", from)
		return b
	}
	if router.Route == nil {
		b.fail("conditional edge from %q has no route function", from)
		return b
	}
	r := router
	r.Targets = append([]string(nil), router.Targets...)
	b.graph.routers[from] = &r
	return b
}

// SetEntry sets the default entry node.
func (b *GraphBuilder) SetEntry(name string) *GraphBuilder {
	if len(b.graph.entries) == 0 {
		b.graph.entries = []string{name}
	} else {
		b.graph.entries[0] = name
	}
	return b
}

// AddEntryPoint declares an additional node a run may start from.
func (b *GraphBuilder) AddEntryPoint(name string) *GraphBuilder {
	if len(b.graph.entries) == 0 {
		b.fail("entry point %q added before SetEntry", name)
		return b
	}
	b.graph.entries = append(b.graph.entries, name)
	return b
}

// MarkBlocked designates a node whose execution ends the run as Blocked.
func (b *GraphBuilder) MarkBlocked(name string) *GraphBuilder {
	b.graph.blocked[name] = true
	return b
}

// Build validates the graph and returns it. Any problem is reported as a
// *GraphDefinitionError.
func (b *GraphBuilder) Build() (*Graph, error) {
	if b.graph == nil {
		return nil, graphError("", "builder already used")
	}
	start := time.Now()
	if err := b.validate(); err != nil {
		b.logger.Warn("graph validation failed", zap.String("graph", b.graph.name), zap.Error(err))
		return nil, err
	}
	g := b.graph
	b.graph = nil
	b.logger.Debug("graph built",
		zap.String("graph", g.name),
		zap.Int("nodes", len(g.nodes)),
		zap.Strings("entries", g.entries),
		zap.Duration("validation", time.Since(start)),
	)
	return g, nil
}

// MustBuild is like Build but panics on error.
func (b *GraphBuilder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *GraphBuilder) validate() error {
	g := b.graph
	if len(b.errs) > 0 {
		return &GraphDefinitionError{Graph: g.name, Reason: strings.Join(b.errs, "; ")}
	}
	if g.schema == nil {
		return graphError(g.name, "no state schema")
	}
	if len(g.nodes) == 0 {
		return graphError(g.name, "graph has no nodes")
	}
	if len(g.entries) == 0 {
		return graphError(g.name, "entry node not set")
	}
	for _, e := range g.entries {
		if _, ok := g.nodes[e]; !ok {
			return graphError(g.name, "entry node %q does not exist", e)
		}
	}
	if err := b.validateEdges(); err != nil {
		return err
	}
	if err := b.validateFields(); err != nil {
		return err
	}
	if err := b.detectCycles(); err != nil {
		return err
	}
	if err := b.detectOrphanedNodes(); err != nil {
		return err
	}
	return b.checkConcurrentWrites()
}

func (b *GraphBuilder) validateEdges() error {
	g := b.graph
	known := func(name string) bool {
		_, ok := g.nodes[name]
		return ok || name == End
	}
	for _, from := range sortedKeys(g.edges) {
		if _, ok := g.nodes[from]; !ok {
			return graphError(g.name, "edge from non-existent node %q", from)
		}
		for _, to := range g.edges[from] {
			if !known(to) {
				return graphError(g.name, "edge %s -> %s targets non-existent node", from, to)
			}
		}
	}
	for _, from := range sortedKeys(g.routers) {
		r := g.routers[from]
		if _, ok := g.nodes[from]; !ok {
			return graphError(g.name, "conditional edge from non-existent node %q", from)
		}
		if len(r.Targets) == 0 && r.Default == "" {
			return graphError(g.name, "router on %q declares no targets and no default", from)
		}
		for _, t := range r.Targets {
			if !known(t) {
				return graphError(g.name, "router on %q declares non-existent target %q", from, t)
			}
		}
		if r.Default != "" && !known(r.Default) {
			return graphError(g.name, "router on %q has non-existent default %q", from, r.Default)
		}
	}
	for _, name := range sortedKeys(g.blocked) {
		if _, ok := g.nodes[name]; !ok {
			return graphError(g.name, "blocked terminal %q does not exist", name)
		}
	}
	return nil
}

func (b *GraphBuilder) validateFields() error {
	g := b.graph
	for _, name := range g.order {
		n := g.nodes[name]
		for _, f := range n.Reads {
			if !g.schema.Has(f) {
				return graphError(g.name, "node %q reads undeclared field %q", name, f)
			}
		}
		seen := make(map[string]bool, len(n.Writes))
		for _, f := range n.Writes {
			if !g.schema.Has(f) {
				return graphError(g.name, "node %q writes undeclared field %q", name, f)
			}
			if seen[f] {
				return graphError(g.name, "node %q lists field %q twice in its write set", name, f)
			}
			seen[f] = true
		}
	}
	return nil
}

// detectCycles rejects graphs with a cycle through static or conditional edges.
func (b *GraphBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	for _, name := range b.graph.order {
		if visited[name] {
			continue
		}
		if path := b.cycleDFS(name, visited, recStack, nil); path != nil {
			return graphError(b.graph.name, "cycle detected: %s", strings.Join(path, " -> "))
		}
	}
	return nil
}

func (b *GraphBuilder) cycleDFS(name string, visited, recStack map[string]bool, path []string) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, next := range b.graph.possibleSuccessors(name) {
		if !visited[next] {
			if cycle := b.cycleDFS(next, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[next] {
			return append(path, next)
		}
	}

	recStack[name] = false
	return nil
}

// detectOrphanedNodes rejects nodes no entry point can reach.
func (b *GraphBuilder) detectOrphanedNodes() error {
	reachable := make(map[string]bool)
	for _, e := range b.graph.entries {
		b.markReachable(e, reachable)
	}
	var orphaned []string
	for _, name := range b.graph.order {
		if !reachable[name] {
			orphaned = append(orphaned, name)
		}
	}
	if len(orphaned) > 0 {
		return graphError(b.graph.name, "orphaned nodes detected (not reachable from entry): %v", orphaned)
	}
	return nil
}

func (b *GraphBuilder) markReachable(name string, reachable map[string]bool) {
	if reachable[name] {
		return
	}
	reachable[name] = true
	for _, next := range b.graph.possibleSuccessors(name) {
		b.markReachable(next, reachable)
	}
}

// checkConcurrentWrites explores every ready set the scheduler can produce
// and rejects the graph if two members of one set write the same replace
// field. Non-exclusive routers contribute all of their targets at once;
// exclusive routers branch the search per alternative.
func (b *GraphBuilder) checkConcurrentWrites() error {
	g := b.graph
	seen := make(map[string]bool)
	var queue [][]string
	for _, e := range g.entries {
		queue = append(queue, []string{e})
	}
	for len(queue) > 0 {
		set := queue[0]
		queue = queue[1:]
		key := strings.Join(set, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		if len(seen) > maxReadySetsExplored {
			return graphError(g.name, "more than %d possible ready sets; cannot verify concurrent writes", maxReadySetsExplored)
		}
		if err := b.checkDisjointWrites(set); err != nil {
			return err
		}
		for _, next := range b.possibleReadySets(set) {
			if len(next) > 0 {
				queue = append(queue, next)
			}
		}
	}
	return nil
}

func (b *GraphBuilder) checkDisjointWrites(set []string) error {
	g := b.graph
	writer := make(map[string]string)
	for _, name := range set {
		for _, f := range g.nodes[name].Writes {
			if p, _ := g.schema.Policy(f); p != MergeReplace {
				continue
			}
			if other, ok := writer[f]; ok {
				return graphError(g.name, "nodes %q and %q may run concurrently and both write replace field %q", other, name, f)
			}
			writer[f] = name
		}
	}
	return nil
}

// possibleReadySets returns the ready sets that may follow set, each sorted and without End.
func (b *GraphBuilder) possibleReadySets(set []string) [][]string {
	combos := [][]string{nil}
	for _, name := range set {
		var next [][]string
		for _, combo := range combos {
			for _, opt := range b.successorOptions(name) {
				merged := make([]string, 0, len(combo)+len(opt))
				merged = append(merged, combo...)
				merged = append(merged, opt...)
				next = append(next, merged)
			}
		}
		combos = next
	}
	out := make([][]string, 0, len(combos))
	for _, c := range combos {
		out = append(out, normalizeSet(c))
	}
	return out
}

// successorOptions lists the alternative successor sets of one node.
func (b *GraphBuilder) successorOptions(name string) [][]string {
	g := b.graph
	base := g.edges[name]
	r, ok := g.routers[name]
	if !ok {
		return [][]string{base}
	}
	if !r.Exclusive {
		opt := append(append([]string(nil), base...), r.successors()...)
		return [][]string{opt}
	}
	var opts [][]string
	for _, t := range r.successors() {
		opts = append(opts, append(append([]string(nil), base...), t))
	}
	return opts
}

func normalizeSet(names []string) []string {
	uniq := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == End || uniq[n] {
			continue
		}
		uniq[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NodeBuilder provides a fluent API for configuring a single node.
type NodeBuilder struct {
	node   Node
	parent *GraphBuilder
}

// Reads declares the fields the node consumes.
func (nb *NodeBuilder) Reads(fields ...string) *NodeBuilder {
	nb.node.Reads = append(nb.node.Reads, fields...)
	return nb
}

// Writes declares the fields the node may produce.
func (nb *NodeBuilder) Writes(fields ...string) *NodeBuilder {
	nb.node.Writes = append(nb.node.Writes, fields...)
	return nb
}

// Critical makes a failure of this node end the run.
func (nb *NodeBuilder) Critical() *NodeBuilder {
	nb.node.Critical = true
	return nb
}

// WithTimeout bounds a single invocation of the node.
func (nb *NodeBuilder) WithTimeout(d time.Duration) *NodeBuilder {
	nb.node.Timeout = d
	return nb
}

// Done registers the node and returns to the graph builder.
func (nb *NodeBuilder) Done() *GraphBuilder {
	return nb.parent.Add(nb.node)
}
