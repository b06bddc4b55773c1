// =============================================================================
// 📦 测试数据工厂 - Agent 模型回复
// =============================================================================
// 提供各 wellness Agent 的预定义模型回复，用于测试
// =============================================================================
package fixtures

import "fmt"

// =============================================================================
// 🎯 Supervisor 回复
// =============================================================================

// SupervisorAllowed 返回放行的 Supervisor 回复
func SupervisorAllowed(intent, state string) string {
	return fmt.Sprintf(`{"intent": %q, "emotional_state": %q, "allowed": true, "safety_note": "This is not medical advice."}`, intent, state)
}

// SupervisorBlocked 返回拦截的 Supervisor 回复
func SupervisorBlocked(reason string) string {
	return fmt.Sprintf(`{"intent": "crisis", "emotional_state": "distressed", "allowed": false, "reason_if_blocked": %q, "safety_note": "This is not medical advice."}`, reason)
}

// =============================================================================
// 🗺️ Planner 回复
// =============================================================================

// PlannerReply 返回选择给定 Agent 的 Planner 回复
func PlannerReply(agents ...string) string {
	quoted := "["
	for i, a := range agents {
		if i > 0 {
			quoted += ", "
		}
		quoted += fmt.Sprintf("%q", a)
	}
	quoted += "]"
	return fmt.Sprintf(`{"plan": %s, "reasoning": "fixture plan"}`, quoted)
}

// =============================================================================
// 🧩 子 Agent 与聚合回复
// =============================================================================

// EmotionReply 是围栏包裹的情绪反思回复
const EmotionReply = "```json\n" + `{"reflection": "That sounds heavy.", "normalization": "Many people feel this.", "reframe": "You are taking a step."}` + "\n```"

// CopingReply 是单条建议的应对策略回复
const CopingReply = `{"suggestions": [{"technique": "Pomodoro", "duration": "25 minutes", "instructions": "Work 25, rest 5", "context": "Focus"}]}`

// ResourceReply 是单条资源的资源回复
const ResourceReply = `{"resources": [{"title": "Stress Basics", "type": "article", "source": "Mayo Clinic", "free": true}], "disclaimer": "Not medical advice."}`

// AggregatorReply 是最终回复
const AggregatorReply = `{"empathy": "I hear you.", "practical_steps": [{"technique": "Pomodoro", "instructions": "Work 25, rest 5"}], "optional_resources": ["Stress Basics"], "closing": "Be kind to yourself.", "disclaimer": "Not medical advice."}`

// Unparsable 是无法解析的模型回复
const Unparsable = "I'm sorry, I can only answer in prose today."
