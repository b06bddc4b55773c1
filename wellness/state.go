package wellness

import "github.com/NisargKadam/mental-wellness-agent/workflow"

// State fields of the wellness graph.
const (
	FieldMessages   = "messages"
	FieldUserInput  = "user_input"
	FieldSupervisor = "supervisor_output"
	FieldPlan       = "plan"
	FieldEmotion    = "emotion_result"
	FieldCoping     = "coping_result"
	FieldResources  = "resource_result"
	FieldFinal      = "final_output"
)

// Node names of the wellness graph.
const (
	NodeSupervisor = "supervisor"
	NodePlanner    = "planner"
	NodeEmotion    = "emotion_reflection"
	NodeCoping     = "coping_strategy"
	NodeResources  = "resource_agent"
	NodeAggregator = "aggregator"
	NodeBlocked    = "blocked"
)

// NewSchema returns the state schema of the wellness graph. Only the
// conversation log accumulates; every agent result is replaced.
func NewSchema() *workflow.Schema {
	return workflow.MustSchema(
		workflow.Append(FieldMessages),
		workflow.Replace(FieldUserInput),
		workflow.Replace(FieldSupervisor),
		workflow.Replace(FieldPlan),
		workflow.Replace(FieldEmotion),
		workflow.Replace(FieldCoping),
		workflow.Replace(FieldResources),
		workflow.Replace(FieldFinal),
	)
}

// SupervisorOutput is the safety gate's classification of the user input.
type SupervisorOutput struct {
	Intent          string `json:"intent"`
	EmotionalState  string `json:"emotional_state"`
	Allowed         bool   `json:"allowed"`
	ReasonIfBlocked string `json:"reason_if_blocked,omitempty"`
	SafetyNote      string `json:"safety_note"`
}

// Plan lists the sub-agents to run after the planner.
type Plan struct {
	Agents    []string `json:"plan"`
	Reasoning string   `json:"reasoning"`
}

// Includes reports whether the plan names agent.
func (p Plan) Includes(agent string) bool {
	for _, a := range p.Agents {
		if a == agent {
			return true
		}
	}
	return false
}

// EmotionResult is the empathetic reflection of the user's feelings.
type EmotionResult struct {
	Reflection    string `json:"reflection"`
	Normalization string `json:"normalization"`
	Reframe       string `json:"reframe"`
}

// Suggestion is one light wellness technique.
type Suggestion struct {
	Technique    string `json:"technique"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
	Context      string `json:"context"`
}

// CopingResult holds the suggested techniques.
type CopingResult struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Resource is an external wellness resource.
type Resource struct {
	Title       string `json:"title"`
	Type        string `json:"type,omitempty"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
	Free        bool   `json:"free"`
	URL         string `json:"url,omitempty"`
}

// ResourceResult holds suggested resources.
type ResourceResult struct {
	Resources  []Resource `json:"resources"`
	Disclaimer string     `json:"disclaimer"`
}

// FinalOutput is the response shown to the user. Practical steps and
// resources are either plain strings or objects, depending on what the
// aggregator produced.
type FinalOutput struct {
	Empathy           string `json:"empathy"`
	PracticalSteps    []any  `json:"practical_steps"`
	OptionalResources []any  `json:"optional_resources"`
	Closing           string `json:"closing,omitempty"`
	Disclaimer        string `json:"disclaimer"`
	BlockedReason     string `json:"blocked_reason,omitempty"`
}

func defaultSupervisorOutput() SupervisorOutput {
	return SupervisorOutput{
		Intent:         "general wellness",
		EmotionalState: "neutral",
		Allowed:        true,
		SafetyNote:     "This is not medical advice.",
	}
}

func defaultPlan() Plan {
	return Plan{Agents: []string{NodeEmotion}, Reasoning: "Default reflection plan"}
}

func defaultEmotionResult() EmotionResult {
	return EmotionResult{
		Reflection:    "I hear that you're going through something difficult.",
		Normalization: "Many people feel this way.",
		Reframe:       "This moment is temporary.",
	}
}

func defaultCopingResult() CopingResult {
	return CopingResult{Suggestions: []Suggestion{{
		Technique:    "Box Breathing",
		Duration:     "2 minutes",
		Instructions: "Inhale 4 counts, hold, exhale, hold",
		Context:      "Helps regulate nervous system",
	}}}
}

func defaultResourceResult() ResourceResult {
	return ResourceResult{
		Resources:  []Resource{},
		Disclaimer: "Not medical advice. Verify suitability for yourself.",
	}
}

func defaultFinalOutput() FinalOutput {
	return FinalOutput{
		Empathy:           "Thank you for sharing how you're feeling.",
		PracticalSteps:    []any{},
		OptionalResources: []any{},
		Closing:           "Take care of yourself.",
		Disclaimer:        "This is not medical advice. Consult a professional for clinical support.",
	}
}

// blockedOutput is the fixed response for requests the safety gate refuses.
func blockedOutput(reason string) FinalOutput {
	if reason == "" {
		reason = "Safety guardrail triggered"
	}
	return FinalOutput{
		Empathy: "I notice you may be going through something serious.",
		PracticalSteps: []any{
			"Please reach out to a mental health professional",
			"Contact crisis resources if needed",
		},
		OptionalResources: []any{
			"National Suicide Prevention Lifeline: 988",
			"Crisis Text Line: Text HOME to 741741",
		},
		Closing:       "You don't have to go through this alone.",
		Disclaimer:    "This system cannot provide crisis support.",
		BlockedReason: reason,
	}
}

// fallbackOutput is returned when the pipeline itself fails.
func fallbackOutput() FinalOutput {
	return FinalOutput{
		Empathy:           "I apologize, but I encountered a technical issue.",
		PracticalSteps:    []any{"Please try again later"},
		OptionalResources: []any{},
		Disclaimer:        "System error occurred.",
	}
}
