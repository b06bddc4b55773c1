package workflow

import (
	"context"
	"time"
)

// EventType identifies a run event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventNodeStart    EventType = "node_start"
	EventNodeComplete EventType = "node_complete"
	EventNodeError    EventType = "node_error"
	EventStepComplete EventType = "step_complete"
	EventRunEnd       EventType = "run_end"
)

// Event carries progress information about a run.
type Event struct {
	Type     EventType     `json:"type"`
	RunID    string        `json:"run_id"`
	Step     int           `json:"step,omitempty"`
	Node     string        `json:"node,omitempty"`
	Next     []string      `json:"next,omitempty"`
	Status   RunStatus     `json:"status,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
	Time     time.Time     `json:"time"`
}

// Emitter receives run events. Calls for one run are serialized.
type Emitter func(Event)

type emitterKey struct{}

// ContextWithEmitter stores an Emitter in the context. Runs started with the
// context use it unless WithEmitter overrides it.
func ContextWithEmitter(ctx context.Context, emit Emitter) context.Context {
	if emit == nil {
		return ctx
	}
	return context.WithValue(ctx, emitterKey{}, emit)
}

func emitterFromContext(ctx context.Context) (Emitter, bool) {
	if ctx == nil {
		return nil, false
	}
	emit, ok := ctx.Value(emitterKey{}).(Emitter)
	return emit, ok && emit != nil
}
