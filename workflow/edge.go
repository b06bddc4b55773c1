package workflow

import "fmt"

// End is the pseudo node marking the end of a branch.
const End = "__end__"

// RouteKind tags the variant held by a Route.
type RouteKind int

const (
	// RouteDefault selects the router's default target.
	RouteDefault RouteKind = iota
	// RouteNext selects exactly one successor.
	RouteNext
	// RouteFanOut selects several successors that run concurrently.
	RouteFanOut
)

func (k RouteKind) String() string {
	switch k {
	case RouteDefault:
		return "default"
	case RouteNext:
		return "next"
	case RouteFanOut:
		return "fan_out"
	default:
		return fmt.Sprintf("RouteKind(%d)", int(k))
	}
}

// Route is a router decision.
type Route struct {
	kind    RouteKind
	targets []string
}

// Next routes to a single successor.
func Next(target string) Route {
	return Route{kind: RouteNext, targets: []string{target}}
}

// FanOut routes to several successors. With no targets it behaves like UseDefault.
func FanOut(targets ...string) Route {
	if len(targets) == 0 {
		return UseDefault()
	}
	cp := make([]string, len(targets))
	copy(cp, targets)
	return Route{kind: RouteFanOut, targets: cp}
}

// UseDefault routes to the router's default target.
func UseDefault() Route {
	return Route{kind: RouteDefault}
}

// Kind returns the variant of the route.
func (r Route) Kind() RouteKind { return r.kind }

// Targets returns the chosen successors; empty for RouteDefault.
func (r Route) Targets() []string {
	cp := make([]string, len(r.targets))
	copy(cp, r.targets)
	return cp
}

func (r Route) String() string {
	if r.kind == RouteDefault {
		return "default"
	}
	return fmt.Sprintf("%s%v", r.kind, r.targets)
}

// RouterFunc decides the successors of a node from the state after the node
// and its siblings were merged. It must be total and only name declared targets.
type RouterFunc func(snap Snapshot) Route

// Router is a conditional edge.
type Router struct {
	// Name identifies the route function in serialized definitions.
	Name string
	// Targets is every node the router may choose. Results outside it abort the run.
	Targets []string
	// Default is taken on UseDefault. Empty means End.
	Default string
	// Exclusive routers pick one alternative at a time and may not fan out,
	// so their targets are never checked for overlapping writes.
	Exclusive bool
	Route     RouterFunc
}

func (r *Router) declares(target string) bool {
	if target == "" {
		return false
	}
	if target == r.Default || target == End {
		return true
	}
	for _, t := range r.Targets {
		if t == target {
			return true
		}
	}
	return false
}

// resolve turns a route into concrete successors and checks them against the declaration.
func (r *Router) resolve(source string, route Route) ([]string, error) {
	switch route.kind {
	case RouteDefault:
		if r.Default == "" {
			return []string{End}, nil
		}
		return []string{r.Default}, nil
	case RouteNext, RouteFanOut:
		if r.Exclusive && len(route.targets) > 1 {
			return nil, &EngineError{Node: source, Reason: fmt.Sprintf("exclusive router fanned out to %v", route.targets)}
		}
		for _, t := range route.targets {
			if t == "" {
				return nil, &EngineError{Node: source, Reason: "router chose an empty target"}
			}
			if !r.declares(t) {
				return nil, &EngineError{Node: source, Reason: fmt.Sprintf("router chose undeclared target %q", t)}
			}
		}
		return route.targets, nil
	default:
		return nil, &EngineError{Node: source, Reason: fmt.Sprintf("router returned unknown route kind %v", route.kind)}
	}
}

// successors returns every node the router may ever select.
func (r *Router) successors() []string {
	out := make([]string, 0, len(r.Targets)+1)
	out = append(out, r.Targets...)
	if r.Default != "" {
		out = append(out, r.Default)
	} else {
		out = append(out, End)
	}
	return out
}
