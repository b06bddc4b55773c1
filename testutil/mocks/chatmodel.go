// MockChatModel 的聊天模型测试模拟实现。
//
// 支持按 Agent 固定响应、延迟与错误注入场景。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NisargKadam/mental-wellness-agent/types"
)

// --- MockChatModel 结构 ---

// MockChatModel 是 wellness.ChatModel 的模拟实现
type MockChatModel struct {
	mu sync.Mutex

	// 响应配置
	response  string
	responses map[string]string
	errs      map[string]error
	err       error

	// 调用记录
	calls        []MockChatModelCall
	completeFunc func(ctx context.Context, agent string, msgs []types.Message) (string, error)

	// 行为控制
	delay     time.Duration
	delays    map[string]time.Duration
	failAfter int // 在第 N 次调用后失败
	callCount int
}

// MockChatModelCall 记录单次调用
type MockChatModelCall struct {
	Agent    string
	Messages []types.Message
	Response string
	Error    error
}

// ErrFailAfter 在超过 WithFailAfter 设定的调用次数后返回
var ErrFailAfter = errors.New("mock chat model: configured to fail after N calls")

// --- 构造函数和 Builder 方法 ---

// NewMockChatModel 创建新的 MockChatModel
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{
		response:  "{}",
		responses: make(map[string]string),
		errs:      make(map[string]error),
		delays:    make(map[string]time.Duration),
	}
}

// WithResponse 设置所有 Agent 的默认响应
func (m *MockChatModel) WithResponse(response string) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithAgentResponse 设置指定 Agent 的响应
func (m *MockChatModel) WithAgentResponse(agent, response string) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[agent] = response
	return m
}

// WithError 设置所有调用返回错误
func (m *MockChatModel) WithError(err error) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithAgentError 设置指定 Agent 返回错误
func (m *MockChatModel) WithAgentError(agent string, err error) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[agent] = err
	return m
}

// WithDelay 设置所有调用的响应延迟
func (m *MockChatModel) WithDelay(d time.Duration) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithAgentDelay 设置指定 Agent 的响应延迟
func (m *MockChatModel) WithAgentDelay(agent string, d time.Duration) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[agent] = d
	return m
}

// WithFailAfter 设置在第 N 次调用后失败
func (m *MockChatModel) WithFailAfter(n int) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithCompleteFunc 设置自定义 Complete 函数
func (m *MockChatModel) WithCompleteFunc(fn func(ctx context.Context, agent string, msgs []types.Message) (string, error)) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// --- ChatModel 接口实现 ---

// Complete 返回预设响应。延迟期间上下文取消时返回 ctx.Err()。
func (m *MockChatModel) Complete(ctx context.Context, agent string, msgs []types.Message) (string, error) {
	m.mu.Lock()
	m.callCount++
	count := m.callCount
	delay := m.delay
	if d, ok := m.delays[agent]; ok {
		delay = d
	}
	fn := m.completeFunc
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			m.record(agent, msgs, "", ctx.Err())
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if fn != nil {
		resp, err := fn(ctx, agent, msgs)
		m.record(agent, msgs, resp, err)
		return resp, err
	}

	m.mu.Lock()
	resp, err := m.response, m.err
	if r, ok := m.responses[agent]; ok {
		resp = r
	}
	if e, ok := m.errs[agent]; ok {
		err = e
	}
	if m.failAfter > 0 && count > m.failAfter {
		err = ErrFailAfter
	}
	m.mu.Unlock()

	if err != nil {
		m.record(agent, msgs, "", err)
		return "", err
	}
	m.record(agent, msgs, resp, nil)
	return resp, nil
}

func (m *MockChatModel) record(agent string, msgs []types.Message, resp string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockChatModelCall{
		Agent:    agent,
		Messages: append([]types.Message(nil), msgs...),
		Response: resp,
		Error:    err,
	})
}

// --- 查询方法 ---

// Calls 返回所有调用记录
func (m *MockChatModel) Calls() []MockChatModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockChatModelCall(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// AgentCalls 返回指定 Agent 的调用次数
func (m *MockChatModel) AgentCalls(agent string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Agent == agent {
			n++
		}
	}
	return n
}

// Reset 清空调用记录
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
}
