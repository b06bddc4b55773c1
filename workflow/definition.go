package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GraphDefinition is the serializable description of a graph topology.
type GraphDefinition struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Entry       string            `json:"entry" yaml:"entry"`
	EntryPoints []string          `json:"entry_points,omitempty" yaml:"entry_points,omitempty"`
	Fields      []FieldDefinition `json:"fields" yaml:"fields"`
	Nodes       []NodeDefinition  `json:"nodes" yaml:"nodes"`
	Metadata    map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// FieldDefinition describes a state field.
type FieldDefinition struct {
	Name   string `json:"name" yaml:"name"`
	Policy string `json:"policy" yaml:"policy"`
}

// NodeDefinition describes a node and its outgoing edges.
type NodeDefinition struct {
	Name     string            `json:"name" yaml:"name"`
	Task     string            `json:"task,omitempty" yaml:"task,omitempty"`
	Reads    []string          `json:"reads,omitempty" yaml:"reads,omitempty"`
	Writes   []string          `json:"writes,omitempty" yaml:"writes,omitempty"`
	Critical bool              `json:"critical,omitempty" yaml:"critical,omitempty"`
	Blocked  bool              `json:"blocked,omitempty" yaml:"blocked,omitempty"`
	Timeout  string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Next     []string          `json:"next,omitempty" yaml:"next,omitempty"`
	Router   *RouterDefinition `json:"router,omitempty" yaml:"router,omitempty"`
}

// RouterDefinition describes a conditional edge.
type RouterDefinition struct {
	Route     string   `json:"route,omitempty" yaml:"route,omitempty"`
	Targets   []string `json:"targets" yaml:"targets"`
	Default   string   `json:"default,omitempty" yaml:"default,omitempty"`
	Exclusive bool     `json:"exclusive,omitempty" yaml:"exclusive,omitempty"`
}

// Definition describes the graph. Nodes are named after themselves as
// tasks and routers after their Router.Name.
func (g *Graph) Definition() *GraphDefinition {
	def := &GraphDefinition{
		Name:        g.name,
		Description: g.description,
		Entry:       g.Entry(),
	}
	if len(g.entries) > 1 {
		def.EntryPoints = append([]string(nil), g.entries[1:]...)
	}
	for _, f := range g.schema.Fields() {
		def.Fields = append(def.Fields, FieldDefinition{Name: f.Name, Policy: f.Policy.String()})
	}
	for _, name := range g.order {
		n := g.nodes[name]
		nd := NodeDefinition{
			Name:     name,
			Reads:    append([]string(nil), n.Reads...),
			Writes:   append([]string(nil), n.Writes...),
			Critical: n.Critical,
			Blocked:  g.blocked[name],
			Next:     append([]string(nil), g.edges[name]...),
		}
		if n.Timeout > 0 {
			nd.Timeout = n.Timeout.String()
		}
		if r, ok := g.routers[name]; ok {
			nd.Router = &RouterDefinition{
				Route:     r.Name,
				Targets:   append([]string(nil), r.Targets...),
				Default:   r.Default,
				Exclusive: r.Exclusive,
			}
		}
		def.Nodes = append(def.Nodes, nd)
	}
	return def
}

// ToJSON converts the definition to indented JSON.
func (d *GraphDefinition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML converts the definition to YAML.
func (d *GraphDefinition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return string(data), nil
}

// ToMermaid renders the topology as a Mermaid flowchart. Conditional edges
// are dotted and labelled with their kind.
func (d *GraphDefinition) ToMermaid() string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	fmt.Fprintf(&sb, "    __start__((start)) --> %s\n", d.Entry)
	for _, e := range d.EntryPoints {
		fmt.Fprintf(&sb, "    __start__((start)) -.-> %s\n", e)
	}
	for _, n := range d.Nodes {
		for _, next := range n.Next {
			fmt.Fprintf(&sb, "    %s --> %s\n", n.Name, mermaidID(next))
		}
		if n.Router == nil {
			continue
		}
		label := "fan-out"
		if n.Router.Exclusive {
			label = "choice"
		}
		for _, t := range n.Router.Targets {
			fmt.Fprintf(&sb, "    %s -. %s .-> %s\n", n.Name, label, mermaidID(t))
		}
		if n.Router.Default != "" {
			fmt.Fprintf(&sb, "    %s -. default .-> %s\n", n.Name, mermaidID(n.Router.Default))
		}
	}
	return sb.String()
}

func mermaidID(name string) string {
	if name == End {
		return "__end__((end))"
	}
	return name
}

// ParseDefinition decodes a definition from YAML or JSON.
func ParseDefinition(data []byte) (*GraphDefinition, error) {
	var def GraphDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph definition: %w", err)
	}
	return &def, nil
}

// Registry resolves the task and route names used in a definition.
type Registry struct {
	Tasks  map[string]Task
	Routes map[string]RouterFunc
}

// Build turns the definition into a validated graph using tasks and routes
// from reg. A node without a task name uses its own name as the task name.
func (d *GraphDefinition) Build(reg Registry) (*Graph, error) {
	fields := make([]Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		p, err := ParseMergePolicy(f.Policy)
		if err != nil {
			return nil, graphError(d.Name, "field %q: %v", f.Name, err)
		}
		fields = append(fields, Field{Name: f.Name, Policy: p})
	}
	schema, err := NewSchema(fields...)
	if err != nil {
		return nil, err
	}

	b := NewGraphBuilder(d.Name, schema).WithDescription(d.Description)
	for _, nd := range d.Nodes {
		taskName := nd.Task
		if taskName == "" {
			taskName = nd.Name
		}
		task, ok := reg.Tasks[taskName]
		if !ok {
			return nil, graphError(d.Name, "node %q uses unknown task %q (known: %s)", nd.Name, taskName, strings.Join(sortedKeys(reg.Tasks), ", "))
		}
		node := Node{Name: nd.Name, Task: task, Reads: nd.Reads, Writes: nd.Writes, Critical: nd.Critical}
		if nd.Timeout != "" {
			if node.Timeout, err = time.ParseDuration(nd.Timeout); err != nil {
				return nil, graphError(d.Name, "node %q: %v", nd.Name, err)
			}
		}
		b.Add(node)
		for _, next := range nd.Next {
			b.AddEdge(nd.Name, next)
		}
		if nd.Blocked {
			b.MarkBlocked(nd.Name)
		}
		if nd.Router != nil {
			route, ok := reg.Routes[nd.Router.Route]
			if !ok {
				return nil, graphError(d.Name, "node %q uses unknown route %q", nd.Name, nd.Router.Route)
			}
			b.AddConditionalEdge(nd.Name, Router{
				Name:      nd.Router.Route,
				Targets:   nd.Router.Targets,
				Default:   nd.Router.Default,
				Exclusive: nd.Router.Exclusive,
				Route:     route,
			})
		}
	}
	b.SetEntry(d.Entry)
	for _, e := range d.EntryPoints {
		b.AddEntryPoint(e)
	}
	return b.Build()
}
