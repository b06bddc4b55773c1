package llmclient

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/types"
)

// modelEncodings 将模型名称前缀映射到 tiktoken 编码
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"gpt-4.1", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5-turbo", "cl100k_base"},
}

// TiktokenCounter 使用 tiktoken 计算 OpenAI 系列模型的 Token 数。
// 编码在首次使用时惰性加载（可能需要下载数据），加载失败时回退到字符估算。
type TiktokenCounter struct {
	encoding string
	fallback *types.EstimateTokenizer
	logger   *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter 为给定模型创建计数器
func NewTiktokenCounter(model string) *TiktokenCounter {
	encoding := "cl100k_base"
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			encoding = m.encoding
			break
		}
	}
	return &TiktokenCounter{
		encoding: encoding,
		fallback: types.NewEstimateTokenizer(),
		logger:   zap.NewNop(),
	}
}

// Encoding 返回使用的编码名称
func (t *TiktokenCounter) Encoding() string { return t.encoding }

func (t *TiktokenCounter) init() *tiktoken.Tiktoken {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.logger.Warn("tiktoken encoding unavailable, estimating tokens",
				zap.String("encoding", t.encoding),
				zap.Error(err),
			)
			return
		}
		t.enc = enc
	})
	return t.enc
}

// CountTokens 实现 types.TokenCounter
func (t *TiktokenCounter) CountTokens(text string) int {
	enc := t.init()
	if enc == nil {
		return t.fallback.CountTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessagesTokens 实现 types.TokenCounter
func (t *TiktokenCounter) CountMessagesTokens(msgs []types.Message) int {
	enc := t.init()
	if enc == nil {
		return t.fallback.CountMessagesTokens(msgs)
	}
	total := 0
	for _, msg := range msgs {
		// <|start|>role\n content<|end|>\n
		total += 4
		total += len(enc.Encode(msg.Content, nil, nil))
		total += len(enc.Encode(string(msg.Role), nil, nil))
	}
	return total + 3
}

var _ types.TokenCounter = (*TiktokenCounter)(nil)
