package api

import (
	"time"

	"github.com/NisargKadam/mental-wellness-agent/wellness"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// =============================================================================
// 💬 Wellness 请求与响应
// =============================================================================

// RespondRequest 一次 wellness 请求
// @Description wellness 请求结构
type RespondRequest struct {
	// 用户输入
	Input string `json:"input" example:"I'm stressed about my deadlines" binding:"required"`
	// 用户标识（JWT 认证时由 token 覆盖）
	UserID string `json:"user_id,omitempty" example:"user-1"`
	// 本次请求使用的模型，覆盖服务端配置
	Model string `json:"model,omitempty" example:"gpt-4o-mini"`
	// 运行超时，如 "30s"
	Timeout string `json:"timeout,omitempty" example:"30s"`
	// 是否在响应中包含最终状态
	IncludeState bool `json:"include_state,omitempty"`
}

// RespondResponse 一次 wellness 请求的结果
// @Description wellness 响应结构
type RespondResponse struct {
	RunID       string               `json:"run_id"`
	Status      workflow.RunStatus   `json:"status"`
	Blocked     bool                 `json:"blocked"`
	FinalOutput wellness.FinalOutput `json:"final_output"`
	Text        string               `json:"text"`
	Error       string               `json:"error,omitempty"`
	DurationMS  int64                `json:"duration_ms"`
	Trace       []TraceEntry         `json:"trace,omitempty"`
	State       map[string]any       `json:"state,omitempty"`
}

// TraceEntry 单个节点的执行记录
type TraceEntry struct {
	Step       int                 `json:"step"`
	Node       string              `json:"node"`
	Status     workflow.NodeStatus `json:"status"`
	Error      string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMS int64               `json:"duration_ms"`
}

// NewRespondResponse 由服务响应构建 API 响应
func NewRespondResponse(resp *wellness.Response, includeState bool) *RespondResponse {
	out := &RespondResponse{
		RunID:       resp.RunID,
		Status:      resp.Status,
		Blocked:     resp.Blocked(),
		FinalOutput: resp.FinalOutput,
		Text:        wellness.Format(resp.FinalOutput),
		Error:       resp.Error,
		DurationMS:  resp.Duration.Milliseconds(),
		Trace:       make([]TraceEntry, 0, len(resp.Trace)),
	}
	for _, e := range resp.Trace {
		te := TraceEntry{
			Step:       e.Step,
			Node:       e.Node,
			Status:     e.Status,
			StartedAt:  e.StartedAt,
			DurationMS: e.Duration.Milliseconds(),
		}
		if e.Err != nil {
			te.Error = e.Err.Error()
		}
		out.Trace = append(out.Trace, te)
	}
	if includeState {
		out.State = resp.State
	}
	return out
}

// =============================================================================
// 📜 运行历史
// =============================================================================

// RunListResponse 运行记录列表
type RunListResponse struct {
	Runs  []*workflow.RunRecord `json:"runs"`
	Count int                   `json:"count"`
}
