package wellness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NisargKadam/mental-wellness-agent/types"
)

// Offline is a ChatModel that answers every agent from keyword rules and
// canned content. It needs no network access and is deterministic, which
// makes it the model of choice for demos and tests.
type Offline struct{}

// NewOffline returns the offline model.
func NewOffline() *Offline { return &Offline{} }

var (
	crisisKeywords = []string{
		"suicide", "suicidal", "kill myself", "end my life", "want to die",
		"self-harm", "self harm", "hurt myself", "cutting myself",
	}
	medicalKeywords = []string{
		"diagnose", "diagnosis", "medication", "prescription", "prescribe",
		"dosage", "antidepressant", "which pills",
	}
)

// emotionRule maps keywords to an emotional state and intent.
type emotionRule struct {
	keywords []string
	state    string
	intent   string
}

var emotionRules = []emotionRule{
	{[]string{"burnout", "burned out", "burnt out", "exhausted", "drained"}, "burnout", "burnout recovery"},
	{[]string{"anxious", "anxiety", "worried", "worry", "nervous", "panic"}, "anxiety", "anxiety support"},
	{[]string{"stress", "overwhelm", "pressure", "deadline"}, "stress", "stress management"},
	{[]string{"focus", "concentrate", "distracted", "procrastinat"}, "focus issues", "focus improvement"},
	{[]string{"sad", "lonely", "down", "unmotivated"}, "low mood", "emotional support"},
}

var techniques = map[string][]Suggestion{
	"burnout": {
		{Technique: "Energy Audit", Duration: "10 minutes", Instructions: "List today's tasks and mark which drain or restore you", Context: "Makes hidden drains visible"},
		{Technique: "Micro-breaks", Duration: "5 minutes", Instructions: "Step away from the screen every hour and stretch", Context: "Prevents fatigue from building up"},
	},
	"anxiety": {
		{Technique: "5-4-3-2-1 Grounding", Duration: "3 minutes", Instructions: "Name 5 things you see, 4 you hear, 3 you feel, 2 you smell, 1 you taste", Context: "Brings attention back to the present"},
		{Technique: "Box Breathing", Duration: "2 minutes", Instructions: "Inhale 4 counts, hold, exhale, hold", Context: "Helps regulate nervous system"},
	},
	"stress": {
		{Technique: "Box Breathing", Duration: "2 minutes", Instructions: "Inhale 4 counts, hold, exhale, hold", Context: "Helps regulate nervous system"},
		{Technique: "Brain Dump", Duration: "5 minutes", Instructions: "Write down everything on your mind, then circle one next step", Context: "Reduces mental load"},
	},
	"focus issues": {
		{Technique: "Pomodoro", Duration: "25 minutes", Instructions: "Work on one task for 25 minutes, then rest for 5", Context: "Short sprints make starting easier"},
		{Technique: "Single-tasking", Duration: "15 minutes", Instructions: "Close unrelated tabs and silence notifications", Context: "Removes competing demands"},
	},
	"low mood": {
		{Technique: "Gentle Walk", Duration: "10 minutes", Instructions: "Walk outside at an easy pace and notice your surroundings", Context: "Light movement can lift mood"},
		{Technique: "Reach Out", Duration: "5 minutes", Instructions: "Send a short message to someone you trust", Context: "Connection eases isolation"},
	},
}

var resources = map[string][]Resource{
	"burnout": {
		{Title: "Burnout Prevention and Treatment", Type: "article", Source: "HelpGuide", Description: "Signs of burnout and steps to recover", Free: true, URL: "https://www.helpguide.org/mental-health/stress/burnout-prevention-and-recovery"},
	},
	"anxiety": {
		{Title: "Anxiety: Self-help Tips", Type: "article", Source: "NHS Every Mind Matters", Description: "Practical ways to manage worry", Free: true, URL: "https://www.nhs.uk/every-mind-matters/mental-health-issues/anxiety/"},
	},
	"stress": {
		{Title: "Stress Management", Type: "article", Source: "Mayo Clinic", Description: "Everyday strategies to handle stress", Free: true, URL: "https://www.mayoclinic.org/healthy-lifestyle/stress-management/basics/stress-basics/hlv-20049495"},
	},
	"focus issues": {
		{Title: "Deep Work Habits", Type: "article", Source: "Harvard Business Review", Description: "Building routines for sustained focus", Free: true},
	},
}

// Complete implements ChatModel.
func (o *Offline) Complete(_ context.Context, agent string, msgs []types.Message) (string, error) {
	prompt := lastUserContent(msgs)
	var out any
	switch agent {
	case NodeSupervisor:
		out = o.supervise(strings.TrimPrefix(prompt, "Analyze this user input: "))
	case NodePlanner:
		out = o.plan(lineValue(prompt, "Intent: "), lineValue(prompt, "Emotional State: "))
	case NodeEmotion:
		out = o.reflect(lineValue(prompt, "Detected emotion: "))
	case NodeCoping:
		out = CopingResult{Suggestions: lookupOr(techniques, lineValue(prompt, "Emotional state: "), "stress")}
	case NodeResources:
		out = ResourceResult{
			Resources:  lookupOr(resources, lineValue(prompt, "Emotional state: "), "stress"),
			Disclaimer: "Not medical advice. Verify suitability for yourself.",
		}
	case NodeAggregator:
		out = o.aggregate(prompt)
	default:
		return "", types.NewError(types.ErrInvalidRequest, fmt.Sprintf("offline model has no behaviour for agent %q", agent))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(data) + "\n```", nil
}

func (o *Offline) supervise(input string) SupervisorOutput {
	text := strings.ToLower(input)
	if containsAny(text, crisisKeywords) {
		return SupervisorOutput{
			Intent:          "crisis",
			EmotionalState:  "distressed",
			Allowed:         false,
			ReasonIfBlocked: "Crisis indicators detected. Please contact crisis support.",
			SafetyNote:      "This is not medical advice.",
		}
	}
	if containsAny(text, medicalKeywords) {
		return SupervisorOutput{
			Intent:          "medical advice",
			EmotionalState:  "neutral",
			Allowed:         false,
			ReasonIfBlocked: "Medical diagnosis or medication advice is outside this system's scope.",
			SafetyNote:      "This is not medical advice.",
		}
	}
	out := defaultSupervisorOutput()
	for _, r := range emotionRules {
		if containsAny(text, r.keywords) {
			out.EmotionalState = r.state
			out.Intent = r.intent
			break
		}
	}
	return out
}

func (o *Offline) plan(intent, state string) Plan {
	if state == "" || state == "neutral" {
		return Plan{
			Agents:    []string{NodeEmotion, NodeResources},
			Reasoning: "General " + orDefault(intent, "wellness") + " request: reflect and share resources",
		}
	}
	return Plan{
		Agents:    []string{NodeEmotion, NodeCoping, NodeResources},
		Reasoning: "User reports " + state + ": reflect, suggest techniques and share resources",
	}
}

func (o *Offline) reflect(state string) EmotionResult {
	out := defaultEmotionResult()
	if state != "" && state != "neutral" {
		out.Reflection = "It sounds like you're dealing with " + state + " right now."
		out.Normalization = "Feeling " + state + " is a common response to demanding situations."
	}
	return out
}

func (o *Offline) aggregate(prompt string) FinalOutput {
	out := defaultFinalOutput()

	reflection := defaultEmotionResult()
	_ = json.Unmarshal([]byte(lineValue(prompt, ctxReflection)), &reflection)
	var strategies CopingResult
	_ = json.Unmarshal([]byte(lineValue(prompt, ctxStrategies)), &strategies)
	var found ResourceResult
	_ = json.Unmarshal([]byte(lineValue(prompt, ctxResources)), &found)

	out.Empathy = strings.TrimSpace(reflection.Reflection + " " + reflection.Normalization)
	for _, s := range strategies.Suggestions {
		out.PracticalSteps = append(out.PracticalSteps, map[string]any{
			"technique":    s.Technique,
			"duration":     s.Duration,
			"instructions": s.Instructions,
		})
	}
	for _, r := range found.Resources {
		res := map[string]any{"title": r.Title, "source": r.Source}
		if r.URL != "" {
			res["url"] = r.URL
		}
		out.OptionalResources = append(out.OptionalResources, res)
	}
	if reflection.Reframe != "" {
		out.Closing = reflection.Reframe + " Take care of yourself."
	}
	return out
}

func lastUserContent(msgs []types.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// lineValue returns the rest of the first line of text starting with prefix.
func lineValue(text, prefix string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func lookupOr[T any](m map[string][]T, key, fallback string) []T {
	if v, ok := m[key]; ok {
		return v
	}
	return m[fallback]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
