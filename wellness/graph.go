package wellness

import (
	"time"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// GraphName is the name of the wellness graph.
const GraphName = "mental-wellness"

// Route names used in the exported graph definition.
const (
	RouteSafetyGate = "safety_gate"
	RouteSubAgents  = "sub_agents"
)

// subAgents are the planner's fan-out targets in their canonical order.
var subAgents = []string{NodeEmotion, NodeCoping, NodeResources}

// GraphOption configures BuildGraph.
type GraphOption func(*graphConfig)

type graphConfig struct {
	logger      *zap.Logger
	nodeTimeout time.Duration
}

func newGraphConfig(opts []GraphOption) graphConfig {
	cfg := graphConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithGraphLogger sets the logger used by the builder and the agents.
func WithGraphLogger(logger *zap.Logger) GraphOption {
	return func(c *graphConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAgentTimeout bounds every LLM-backed node.
func WithAgentTimeout(d time.Duration) GraphOption {
	return func(c *graphConfig) { c.nodeTimeout = d }
}

// BuildGraph wires the supervisor, planner, sub-agents, aggregator and the
// blocked terminal around model.
//
//	supervisor -(allowed)-> planner -(plan)-> {emotion_reflection, coping_strategy, resource_agent} -> aggregator
//	supervisor -(refused)-> blocked
func BuildGraph(model ChatModel, opts ...GraphOption) (*workflow.Graph, error) {
	cfg := newGraphConfig(opts)
	agents := agentOptions{logger: cfg.logger}

	b := workflow.NewGraphBuilder(GraphName, NewSchema()).
		WithDescription("Supervisor, planner, parallel sub-agents and aggregator for non-clinical wellness support").
		WithLogger(cfg.logger)

	for _, a := range []*workflow.Adapter{
		agents.supervisor(model),
		agents.planner(model),
		agents.emotionReflection(model),
		agents.copingStrategy(model),
		agents.resourceAgent(model),
		agents.aggregator(model),
	} {
		node := a.Node()
		if cfg.nodeTimeout > 0 {
			node.Timeout = cfg.nodeTimeout
		}
		b.Add(node)
	}
	b.AddNode(NodeBlocked, workflow.TaskFunc(blockedTask)).
		Reads(FieldSupervisor).
		Writes(FieldFinal, FieldMessages).
		Done()

	b.AddConditionalEdge(NodeSupervisor, workflow.Router{
		Name:      RouteSafetyGate,
		Targets:   []string{NodePlanner, NodeBlocked},
		Exclusive: true,
		Route:     routeFromSupervisor,
	})
	b.AddConditionalEdge(NodePlanner, workflow.Router{
		Name:    RouteSubAgents,
		Targets: subAgents,
		Default: NodeEmotion,
		Route:   routeFromPlanner,
	})
	for _, n := range subAgents {
		b.AddEdge(n, NodeAggregator)
	}
	b.AddEdge(NodeAggregator, workflow.End).
		AddEdge(NodeBlocked, workflow.End).
		MarkBlocked(NodeBlocked).
		SetEntry(NodeSupervisor)

	return b.Build()
}

// Registry returns the tasks and routes of the wellness graph by name, for
// rebuilding it from an exported definition.
func Registry(model ChatModel, opts ...GraphOption) workflow.Registry {
	agents := agentOptions{logger: newGraphConfig(opts).logger}
	tasks := map[string]workflow.Task{
		NodeBlocked: workflow.TaskFunc(blockedTask),
	}
	for _, a := range []*workflow.Adapter{
		agents.supervisor(model),
		agents.planner(model),
		agents.emotionReflection(model),
		agents.copingStrategy(model),
		agents.resourceAgent(model),
		agents.aggregator(model),
	} {
		tasks[a.Name()] = a
	}
	return workflow.Registry{Tasks: tasks, Routes: Routes()}
}

// Routes returns the route functions by the names used in the graph
// definition.
func Routes() map[string]workflow.RouterFunc {
	return map[string]workflow.RouterFunc{
		RouteSafetyGate: routeFromSupervisor,
		RouteSubAgents:  routeFromPlanner,
	}
}

// routeFromSupervisor sends refused requests to the blocked terminal.
func routeFromSupervisor(snap workflow.Snapshot) workflow.Route {
	sup := workflow.ValueOr(snap, FieldSupervisor, defaultSupervisorOutput())
	if !sup.Allowed {
		return workflow.Next(NodeBlocked)
	}
	return workflow.Next(NodePlanner)
}

// routeFromPlanner fans out to the planned sub-agents in canonical order.
// Unknown names are ignored; an empty selection falls back to the default.
func routeFromPlanner(snap workflow.Snapshot) workflow.Route {
	plan := workflow.ValueOr(snap, FieldPlan, defaultPlan())
	var selected []string
	for _, n := range subAgents {
		if plan.Includes(n) {
			selected = append(selected, n)
		}
	}
	return workflow.FanOut(selected...)
}
