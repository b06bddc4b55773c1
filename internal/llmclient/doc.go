// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package llmclient 提供基于 OpenAI Chat Completions 的 wellness.ChatModel 实现。

# 核心能力

  - Client: 按 Agent 发起对话补全，支持 JSON 输出模式、令牌桶限流
    （golang.org/x/time/rate）与 SDK 内置重试
  - 错误映射: 上游 HTTP 状态码统一转换为 types.Error，保留 Retry-After 信息
  - 用量统计: 优先使用上游返回的 Token 用量，缺失时由 TiktokenCounter 估算，
    并通过 UsageObserver 上报（通常为 metrics.Collector）
*/
package llmclient
