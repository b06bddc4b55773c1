package wellness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NisargKadam/mental-wellness-agent/types"
)

func completeOffline(t *testing.T, agent, prompt string) string {
	t.Helper()
	raw, err := NewOffline().Complete(context.Background(), agent, []types.Message{
		types.NewSystemMessage("system"),
		types.NewUserMessage(prompt),
	})
	require.NoError(t, err)
	return raw
}

func TestOffline_Supervisor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		allowed bool
		state   string
	}{
		{name: "stress", input: "I'm so stressed about deadlines", allowed: true, state: "stress"},
		{name: "anxiety", input: "I feel anxious before meetings", allowed: true, state: "anxiety"},
		{name: "burnout before stress", input: "I'm exhausted and stressed", allowed: true, state: "burnout"},
		{name: "focus", input: "I can't focus on anything", allowed: true, state: "focus issues"},
		{name: "neutral", input: "Hello there", allowed: true, state: "neutral"},
		{name: "crisis", input: "Sometimes I want to die", allowed: false, state: "distressed"},
		{name: "medical", input: "What dosage of my medication should I take?", allowed: false, state: "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := defaultSupervisorOutput()
			require.NoError(t, decodeInto(completeOffline(t, NodeSupervisor, supervisorRequest(tt.input)), &out))
			assert.Equal(t, tt.allowed, out.Allowed)
			assert.Equal(t, tt.state, out.EmotionalState)
			if !tt.allowed {
				assert.NotEmpty(t, out.ReasonIfBlocked)
			}
		})
	}
}

func TestOffline_Planner(t *testing.T) {
	t.Parallel()

	var plan Plan
	require.NoError(t, decodeInto(completeOffline(t, NodePlanner, plannerRequest(SupervisorOutput{
		Intent: "stress management", EmotionalState: "stress",
	})), &plan))
	assert.Equal(t, []string{NodeEmotion, NodeCoping, NodeResources}, plan.Agents)

	plan = Plan{}
	require.NoError(t, decodeInto(completeOffline(t, NodePlanner, plannerRequest(defaultSupervisorOutput())), &plan))
	assert.Equal(t, []string{NodeEmotion, NodeResources}, plan.Agents)
}

func TestOffline_AggregatorReadsContextLines(t *testing.T) {
	t.Parallel()

	prompt := aggregatorRequest("I can't focus",
		EmotionResult{Reflection: "That's hard.", Normalization: "It's common.", Reframe: "Small steps count."},
		CopingResult{Suggestions: []Suggestion{{Technique: "Pomodoro", Instructions: "Work 25, rest 5"}}},
		ResourceResult{Resources: []Resource{{Title: "Deep Work Habits", Source: "HBR"}}},
	)
	var out FinalOutput
	require.NoError(t, decodeInto(completeOffline(t, NodeAggregator, prompt), &out))

	assert.Equal(t, "That's hard. It's common.", out.Empathy)
	require.Len(t, out.PracticalSteps, 1)
	assert.Equal(t, "Pomodoro", out.PracticalSteps[0].(map[string]any)["technique"])
	require.Len(t, out.OptionalResources, 1)
	assert.Equal(t, "HBR", out.OptionalResources[0].(map[string]any)["source"])
	assert.Equal(t, "Small steps count. Take care of yourself.", out.Closing)
}

func TestOffline_UnknownAgent(t *testing.T) {
	t.Parallel()

	_, err := NewOffline().Complete(context.Background(), "therapist", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}
