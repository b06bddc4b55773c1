package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/api"
	"github.com/NisargKadam/mental-wellness-agent/internal/ctxkeys"
	"github.com/NisargKadam/mental-wellness-agent/types"
	"github.com/NisargKadam/mental-wellness-agent/wellness"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// =============================================================================
// 💬 Wellness Handler
// =============================================================================

// Responder 运行 wellness 流水线
type Responder interface {
	Respond(ctx context.Context, input string, opts ...workflow.RunOption) (*wellness.Response, error)
	Graph() *workflow.Graph
}

// WellnessHandler wellness 请求处理器
type WellnessHandler struct {
	svc    Responder
	logger *zap.Logger
}

// NewWellnessHandler 创建 wellness 请求处理器
func NewWellnessHandler(svc Responder, logger *zap.Logger) *WellnessHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WellnessHandler{
		svc:    svc,
		logger: logger.With(zap.String("handler", "wellness")),
	}
}

// HandleRespond 处理 wellness 请求
// @Summary 获取 wellness 回复
// @Description 运行 supervisor、planner、子 Agent 与 aggregator，返回最终回复
// @Tags wellness
// @Accept json
// @Produce json
// @Param request body api.RespondRequest true "wellness 请求"
// @Success 200 {object} Response{data=api.RespondResponse} "运行结果（含被拦截的请求）"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /v1/respond [post]
func (h *WellnessHandler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	req, ctx, opts, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Respond(ctx, req.Input, opts...)
	if err != nil {
		WriteError(w, toAPIError(err), h.logger)
		return
	}

	WriteSuccess(w, r, api.NewRespondResponse(resp, req.IncludeState))
}

// HandleStream 以 SSE 推送运行事件，最后推送 result 事件
// @Summary 流式 wellness 回复
// @Description 以 text/event-stream 推送节点事件与最终结果
// @Tags wellness
// @Accept json
// @Produce text/event-stream
// @Param request body api.RespondRequest true "wellness 请求"
// @Success 200 {string} string "SSE 事件流"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /v1/respond/stream [post]
func (h *WellnessHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	req, ctx, opts, ok := h.decode(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, types.NewError(types.ErrInternalError, "streaming not supported"), h.logger)
		return
	}

	// 设置 SSE 响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲

	type outcome struct {
		resp *wellness.Response
		err  error
	}
	events := make(chan workflow.Event, 16)
	done := make(chan outcome, 1)

	emit := func(ev workflow.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	go func() {
		resp, err := h.svc.Respond(ctx, req.Input, append(opts, workflow.WithEmitter(emit))...)
		done <- outcome{resp: resp, err: err}
	}()

	for {
		select {
		case ev := <-events:
			if err := writeSSE(w, string(ev.Type), ev); err != nil {
				h.logger.Warn("failed to write event", zap.Error(err))
				return
			}
			flusher.Flush()
		case out := <-done:
			// 运行结束前的事件都已进入通道
			for drained := false; !drained; {
				select {
				case ev := <-events:
					_ = writeSSE(w, string(ev.Type), ev)
				default:
					drained = true
				}
			}
			if out.err != nil {
				apiErr := toAPIError(out.err)
				_ = writeSSE(w, "error", map[string]string{"code": string(apiErr.Code), "error": apiErr.Message})
			} else {
				_ = writeSSE(w, "result", api.NewRespondResponse(out.resp, req.IncludeState))
			}
			_, _ = w.Write([]byte("data: [DONE]\n\n"))
			flusher.Flush()
			return
		}
	}
}

// HandleGraph 导出 wellness 图定义
// @Summary 导出图定义
// @Description 以 json、yaml 或 mermaid 格式导出工作流图
// @Tags wellness
// @Produce json
// @Param format query string false "json | yaml | mermaid"
// @Success 200 {object} Response{data=workflow.GraphDefinition} "图定义"
// @Router /v1/graph [get]
func (h *WellnessHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	def := h.svc.Graph().Definition()

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		WriteSuccess(w, r, def)
	case "yaml":
		out, err := def.ToYAML()
		if err != nil {
			WriteError(w, types.NewError(types.ErrInternalError, "failed to render graph").WithCause(err), h.logger)
			return
		}
		writeText(w, "application/yaml; charset=utf-8", out)
	case "mermaid":
		writeText(w, "text/plain; charset=utf-8", def.ToMermaid())
	default:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			fmt.Sprintf("unsupported format %q (want json, yaml or mermaid)", format), h.logger)
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// decode 解析并校验请求，返回带用户与模型信息的上下文及运行选项
func (h *WellnessHandler) decode(w http.ResponseWriter, r *http.Request) (*api.RespondRequest, context.Context, []workflow.RunOption, bool) {
	if !ValidateContentType(w, r, h.logger) {
		return nil, nil, nil, false
	}

	var req api.RespondRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return nil, nil, nil, false
	}

	req.Input = strings.TrimSpace(req.Input)
	if req.Input == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "input is required", h.logger)
		return nil, nil, nil, false
	}

	var opts []workflow.RunOption
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				fmt.Sprintf("invalid timeout %q", req.Timeout), h.logger)
			return nil, nil, nil, false
		}
		opts = append(opts, workflow.WithRunTimeout(d))
	}

	ctx := r.Context()
	if _, ok := ctxkeys.UserID(ctx); !ok && req.UserID != "" {
		ctx = ctxkeys.WithUserID(ctx, req.UserID)
	}
	if req.Model != "" {
		ctx = ctxkeys.WithLLMModel(ctx, req.Model)
	}
	return &req, ctx, opts, true
}

func toAPIError(err error) *types.Error {
	if e, ok := types.AsError(err); ok {
		return e
	}
	return types.NewError(types.ErrInternalError, "internal error").WithCause(err)
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
