package llmclient

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NisargKadam/mental-wellness-agent/config"
	"github.com/NisargKadam/mental-wellness-agent/internal/ctxkeys"
	"github.com/NisargKadam/mental-wellness-agent/internal/tlsutil"
	"github.com/NisargKadam/mental-wellness-agent/types"
)

const providerName = "openai"

// =============================================================================
// 📡 OpenAI 聊天客户端
// =============================================================================

// UsageObserver 接收每次模型调用的耗时与 Token 用量
type UsageObserver interface {
	RecordLLMRequest(provider, model, agent, status string, duration time.Duration, usage types.TokenUsage)
}

// Client 通过 OpenAI Chat Completions 接口为每个 Agent 生成回复，
// 实现 wellness.ChatModel
type Client struct {
	client      openai.Client
	baseOptions []option.RequestOption
	model       string
	temperature float64
	maxTokens   int
	jsonMode    bool

	limiter  *rate.Limiter
	counter  types.TokenCounter
	observer UsageObserver
	logger   *zap.Logger
}

// Option 配置 Client
type Option func(*Client)

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver 设置用量观察者（通常是 metrics.Collector）
func WithObserver(o UsageObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithTokenCounter 设置上游未返回用量时的 Token 估算器
func WithTokenCounter(counter types.TokenCounter) Option {
	return func(c *Client) {
		if counter != nil {
			c.counter = counter
		}
	}
}

// WithJSONMode 控制是否要求模型输出 JSON 对象。部分兼容服务不支持该参数。
func WithJSONMode(enabled bool) Option {
	return func(c *Client) { c.jsonMode = enabled }
}

// WithRequestOptions 追加底层 SDK 请求选项（测试中用于注入 HTTP 客户端）
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *Client) {
		c.client = openai.NewClient(append(c.baseOptions, opts...)...)
	}
}

// New 根据 LLM 配置创建客户端
func New(cfg config.LLMConfig, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, types.NewError(types.ErrAuthentication, "llm api key is required").WithProvider(providerName)
	}
	if cfg.Model == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "llm model is required").WithProvider(providerName)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithHTTPClient(tlsutil.SecureHTTPClient(0)),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		jsonMode:    true,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      zap.NewNop(),
	}
	c.baseOptions = reqOpts
	c.client = openai.NewClient(reqOpts...)
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = NewTiktokenCounter(cfg.Model)
	}
	c.logger = c.logger.With(zap.String("component", "llm_client"), zap.String("model", c.model))
	return c, nil
}

// Model 返回使用的模型名称
func (c *Client) Model() string { return c.model }

// Complete 实现 wellness.ChatModel
func (c *Client) Complete(ctx context.Context, agent string, msgs []types.Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", types.NewError(types.ErrRateLimited, "llm rate limiter wait aborted").
			WithCause(err).
			WithProvider(providerName)
	}
	model := c.model
	if m, ok := ctxkeys.LLMModel(ctx); ok && m != "" {
		model = m
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(msgs),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	params.Temperature = openai.Float(c.temperature)
	if c.jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		werr := wrapError(err)
		c.observe(model, agent, "error", duration, types.TokenUsage{})
		c.logger.Warn("chat completion failed",
			zap.String("agent", agent),
			zap.Duration("duration", duration),
			zap.Error(werr),
		)
		return "", werr
	}
	if len(resp.Choices) == 0 {
		c.observe(model, agent, "error", duration, types.TokenUsage{})
		return "", types.NewError(types.ErrUpstreamError, "chat completion returned no choices").WithProvider(providerName)
	}

	content := resp.Choices[0].Message.Content
	usage := types.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	if usage.TotalTokens == 0 {
		usage = c.estimateUsage(msgs, content)
	}
	c.observe(model, agent, "success", duration, usage)
	c.logger.Debug("chat completion finished",
		zap.String("agent", agent),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Duration("duration", duration),
	)
	return content, nil
}

func (c *Client) estimateUsage(msgs []types.Message, content string) types.TokenUsage {
	prompt := c.counter.CountMessagesTokens(msgs)
	completion := c.counter.CountTokens(content)
	return types.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func (c *Client) observe(model, agent, status string, d time.Duration, usage types.TokenUsage) {
	if c.observer != nil {
		c.observer.RecordLLMRequest(providerName, model, agent, status, d, usage)
	}
}

func convertMessages(msgs []types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
