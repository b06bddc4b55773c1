package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func adapterSchema() *Schema {
	return MustSchema(Append("messages"), Replace("mood"), Replace("intensity"), Replace("plan"))
}

func nonEmptyString(v any) error {
	s, ok := v.(string)
	if !ok || s == "" {
		return fmt.Errorf("expected non-empty string, got %T", v)
	}
	return nil
}

func TestAdapter_ProjectsReadSet(t *testing.T) {
	t.Parallel()

	var seen map[string]any
	collab := CollaboratorFunc(func(_ context.Context, in map[string]any) (map[string]any, error) {
		seen = in
		return map[string]any{"mood": "calm"}, nil
	})
	a := NewAdapter("emotion", collab, WithReads("messages"), WithWrites("mood"))

	snap := NewSnapshot(map[string]any{"messages": []any{"hi"}, "plan": "secret"})
	u, err := a.Execute(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"messages": []any{"hi"}}, seen)
	assert.Equal(t, Update{"mood": "calm"}, u)
}

func TestAdapter_DefaultsForMissingAndInvalidFields(t *testing.T) {
	t.Parallel()

	collab := CollaboratorFunc(func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"mood": "", "extra": "dropped"}, nil
	})
	a := NewAdapter("emotion", collab,
		WithDefault("mood", "neutral"),
		WithDefault("intensity", 5),
		WithValidator("mood", nonEmptyString),
	)

	u, err := a.Execute(context.Background(), NewSnapshot(nil))
	require.NoError(t, err)
	assert.Equal(t, Update{"mood": "neutral", "intensity": 5}, u)
}

func TestAdapter_ParseErrorYieldsDefaults(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	collab := CollaboratorFunc(func(context.Context, map[string]any) (map[string]any, error) {
		return nil, &ParseError{Raw: "not json", Err: errors.New("invalid character")}
	})
	a := NewAdapter("planner", collab,
		WithDefault("plan", []string{"coping"}),
		WithAdapterLogger(zap.New(core)),
	)

	u, err := a.Execute(context.Background(), NewSnapshot(nil))
	require.NoError(t, err)
	assert.Equal(t, Update{"plan": []string{"coping"}}, u)
	assert.Equal(t, 1, logs.FilterMessage("collaborator output unparsable, using defaults").Len())
}

func TestAdapter_OtherErrorsFailTheNode(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream unavailable")
	collab := CollaboratorFunc(func(context.Context, map[string]any) (map[string]any, error) {
		return nil, boom
	})
	a := NewAdapter("planner", collab, WithDefault("plan", "fallback"))

	_, err := a.Execute(context.Background(), NewSnapshot(nil))
	assert.ErrorIs(t, err, boom)
}

func TestAdapter_FieldWithoutDefaultIsOmitted(t *testing.T) {
	t.Parallel()

	collab := CollaboratorFunc(func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	a := NewAdapter("emotion", collab, WithWrites("mood"), WithDefault("intensity", 3))

	u, err := a.Execute(context.Background(), NewSnapshot(nil))
	require.NoError(t, err)
	assert.Equal(t, Update{"intensity": 3}, u)
}

func TestAdapter_Node(t *testing.T) {
	t.Parallel()

	a := NewAdapter("supervisor", CollaboratorFunc(nil),
		WithReads("messages"),
		WithWrites("plan"),
		WithDefault("plan", "x"),
		AsCritical(),
		WithAdapterTimeout(2*time.Second),
	)
	n := a.Node()

	assert.Equal(t, "supervisor", a.Name())
	assert.Equal(t, "supervisor", n.Name)
	assert.Equal(t, []string{"messages"}, n.Reads)
	assert.Equal(t, []string{"plan"}, n.Writes, "default on a declared field does not duplicate it")
	assert.True(t, n.Critical)
	assert.Equal(t, 2*time.Second, n.Timeout)
	assert.Same(t, a, n.Task)
}

func TestAdapter_InGraph(t *testing.T) {
	t.Parallel()

	emotion := NewAdapter("emotion",
		CollaboratorFunc(func(context.Context, map[string]any) (map[string]any, error) {
			return nil, &ParseError{Raw: "???", Err: errors.New("no json")}
		}),
		WithReads("messages"),
		WithDefault("mood", "neutral"),
		WithDefault("intensity", 5),
	)
	planner := NewAdapter("planner",
		CollaboratorFunc(func(_ context.Context, in map[string]any) (map[string]any, error) {
			return map[string]any{"plan": fmt.Sprintf("for %v", in["mood"])}, nil
		}),
		WithReads("mood"),
		WithWrites("plan"),
	)

	g, err := NewGraphBuilder("adapters", adapterSchema()).
		Add(emotion.Node()).
		Add(planner.Node()).
		AddEdge("emotion", "planner").
		AddEdge("planner", End).
		SetEntry("emotion").
		Build()
	require.NoError(t, err)

	res := Run(context.Background(), g, "", Update{"messages": "I feel stuck"})
	require.NoError(t, res.Err)
	assert.Equal(t, "for neutral", ValueOr(res.State, "plan", ""))
	assert.Equal(t, 5, ValueOr(res.State, "intensity", 0))
}
