package wellness

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/types"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// ChatModel completes a conversation for one agent and returns the raw text.
// agent names the caller so implementations can label metrics or, in the
// offline model, pick a canned behaviour.
type ChatModel interface {
	Complete(ctx context.Context, agent string, msgs []types.Message) (string, error)
}

// llmAgent is a Collaborator that prompts a ChatModel and decodes its JSON
// reply into one state field.
type llmAgent struct {
	name   string
	model  ChatModel
	system string
	// request renders the user prompt from the projected inputs.
	request func(in map[string]any) string
	// decode parses the reply; it returns the field value and a one-line
	// summary for the conversation log.
	decode func(raw string) (any, string, error)
	output string
}

// Invoke implements workflow.Collaborator.
func (a *llmAgent) Invoke(ctx context.Context, in map[string]any) (map[string]any, error) {
	msgs := []types.Message{
		types.NewSystemMessage(a.system),
		types.NewUserMessage(a.request(in)),
	}
	raw, err := a.model.Complete(ctx, a.name, msgs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	value, summary, err := a.decode(raw)
	if err != nil {
		return nil, &workflow.ParseError{Raw: truncate(raw, 200), Err: err}
	}
	return map[string]any{
		a.output:       value,
		FieldMessages: types.NewAgentMessage(a.name, summary),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// typed rejects values that are not a T.
func typed[T any]() workflow.Validator {
	return func(v any) error {
		if _, ok := v.(T); !ok {
			var zero T
			return fmt.Errorf("expected %T, got %T", zero, v)
		}
		return nil
	}
}

func inputString(in map[string]any, field string) string {
	s, _ := in[field].(string)
	return s
}

func supervisorFrom(in map[string]any) SupervisorOutput {
	if sup, ok := in[FieldSupervisor].(SupervisorOutput); ok {
		return sup
	}
	return defaultSupervisorOutput()
}

func fallbackMessage(agent string) types.Message {
	return types.Message{Role: types.RoleAssistant, Name: agent, Content: "used default output"}
}

// agentOptions are shared by every LLM-backed node.
type agentOptions struct {
	logger *zap.Logger
}

func (o agentOptions) adapter(a *llmAgent, opts ...workflow.AdapterOption) *workflow.Adapter {
	opts = append([]workflow.AdapterOption{workflow.WithWrites(a.output, FieldMessages)}, opts...)
	opts = append(opts,
		workflow.WithDefault(FieldMessages, fallbackMessage(a.name)),
		workflow.WithAdapterLogger(o.logger),
	)
	return workflow.NewAdapter(a.name, a, opts...)
}

// supervisor returns the safety gate. It is critical: if it cannot run,
// nothing downstream may run either.
func (o agentOptions) supervisor(model ChatModel) *workflow.Adapter {
	a := &llmAgent{
		name:    NodeSupervisor,
		model:   model,
		system:  supervisorPrompt,
		output:  FieldSupervisor,
		request: func(in map[string]any) string { return supervisorRequest(inputString(in, FieldUserInput)) },
		decode: func(raw string) (any, string, error) {
			out := defaultSupervisorOutput()
			if err := decodeInto(raw, &out); err != nil {
				return nil, "", err
			}
			summary := fmt.Sprintf("intent=%s emotional_state=%s allowed=%t", out.Intent, out.EmotionalState, out.Allowed)
			return out, summary, nil
		},
	}
	return o.adapter(a,
		workflow.WithReads(FieldUserInput),
		workflow.WithDefault(FieldSupervisor, defaultSupervisorOutput()),
		workflow.WithValidator(FieldSupervisor, typed[SupervisorOutput]()),
		workflow.AsCritical(),
	)
}

// planner returns the agent that picks which sub-agents run.
func (o agentOptions) planner(model ChatModel) *workflow.Adapter {
	a := &llmAgent{
		name:    NodePlanner,
		model:   model,
		system:  plannerPrompt,
		output:  FieldPlan,
		request: func(in map[string]any) string { return plannerRequest(supervisorFrom(in)) },
		decode: func(raw string) (any, string, error) {
			out := defaultPlan()
			if err := decodeInto(raw, &out); err != nil {
				return nil, "", err
			}
			return out, "plan=" + strings.Join(out.Agents, ","), nil
		},
	}
	return o.adapter(a,
		workflow.WithReads(FieldSupervisor),
		workflow.WithDefault(FieldPlan, defaultPlan()),
		workflow.WithValidator(FieldPlan, typed[Plan]()),
	)
}

// emotionReflection returns the empathetic reflection agent.
func (o agentOptions) emotionReflection(model ChatModel) *workflow.Adapter {
	a := &llmAgent{
		name:   NodeEmotion,
		model:  model,
		system: emotionPrompt,
		output: FieldEmotion,
		request: func(in map[string]any) string {
			return emotionRequest(inputString(in, FieldUserInput), supervisorFrom(in))
		},
		decode: func(raw string) (any, string, error) {
			out := defaultEmotionResult()
			if err := decodeInto(raw, &out); err != nil {
				return nil, "", err
			}
			return out, out.Reflection, nil
		},
	}
	return o.adapter(a,
		workflow.WithReads(FieldUserInput, FieldSupervisor),
		workflow.WithDefault(FieldEmotion, defaultEmotionResult()),
		workflow.WithValidator(FieldEmotion, typed[EmotionResult]()),
	)
}

// copingStrategy returns the agent suggesting light wellness techniques.
func (o agentOptions) copingStrategy(model ChatModel) *workflow.Adapter {
	a := &llmAgent{
		name:    NodeCoping,
		model:   model,
		system:  copingPrompt,
		output:  FieldCoping,
		request: func(in map[string]any) string { return copingRequest(supervisorFrom(in)) },
		decode: func(raw string) (any, string, error) {
			out := defaultCopingResult()
			if err := decodeInto(raw, &out); err != nil {
				return nil, "", err
			}
			names := make([]string, 0, len(out.Suggestions))
			for _, s := range out.Suggestions {
				names = append(names, s.Technique)
			}
			return out, "suggested " + strings.Join(names, ", "), nil
		},
	}
	return o.adapter(a,
		workflow.WithReads(FieldSupervisor),
		workflow.WithDefault(FieldCoping, defaultCopingResult()),
		workflow.WithValidator(FieldCoping, typed[CopingResult]()),
	)
}

// resourceAgent returns the agent suggesting public wellness resources.
func (o agentOptions) resourceAgent(model ChatModel) *workflow.Adapter {
	a := &llmAgent{
		name:    NodeResources,
		model:   model,
		system:  resourcePrompt,
		output:  FieldResources,
		request: func(in map[string]any) string { return resourceRequest(supervisorFrom(in)) },
		decode: func(raw string) (any, string, error) {
			out := defaultResourceResult()
			if err := decodeInto(raw, &out); err != nil {
				return nil, "", err
			}
			return out, fmt.Sprintf("found %d resources", len(out.Resources)), nil
		},
	}
	return o.adapter(a,
		workflow.WithReads(FieldSupervisor),
		workflow.WithDefault(FieldResources, defaultResourceResult()),
		workflow.WithValidator(FieldResources, typed[ResourceResult]()),
	)
}

// aggregator returns the agent composing the final response.
func (o agentOptions) aggregator(model ChatModel) *workflow.Adapter {
	a := &llmAgent{
		name:   NodeAggregator,
		model:  model,
		system: aggregatorPrompt,
		output: FieldFinal,
		request: func(in map[string]any) string {
			return aggregatorRequest(inputString(in, FieldUserInput), in[FieldEmotion], in[FieldCoping], in[FieldResources])
		},
		decode: func(raw string) (any, string, error) {
			out := defaultFinalOutput()
			if err := decodeInto(raw, &out); err != nil {
				return nil, "", err
			}
			return out, out.Empathy, nil
		},
	}
	return o.adapter(a,
		workflow.WithReads(FieldUserInput, FieldEmotion, FieldCoping, FieldResources),
		workflow.WithDefault(FieldFinal, defaultFinalOutput()),
		workflow.WithValidator(FieldFinal, typed[FinalOutput]()),
	)
}

// blockedTask writes the fixed crisis response. It needs no model.
func blockedTask(_ context.Context, snap workflow.Snapshot) (workflow.Update, error) {
	sup := workflow.ValueOr(snap, FieldSupervisor, defaultSupervisorOutput())
	out := blockedOutput(sup.ReasonIfBlocked)
	return workflow.Update{
		FieldFinal:    out,
		FieldMessages: types.NewAgentMessage(NodeBlocked, "request blocked: "+out.BlockedReason),
	}, nil
}
