// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 wellness 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、wellness、
llmclient 与 HTTP 层提供统一的类型契约，避免循环依赖。

# 核心类型

  - Message / Role    — 对话消息，assistant 消息以 Name 标注产生它的 agent
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - TokenUsage        — Token 用量统计
  - TokenCounter      — Token 计数接口，EstimateTokenizer 为字符估算实现

# 主要能力

  - 错误工具链：AsError / GetErrorCode / IsRetryable / HTTPStatusOf
  - 上游状态映射：ErrorFromHTTPStatus
*/
package types
