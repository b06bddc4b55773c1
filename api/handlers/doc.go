// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 wellness HTTP API 的请求处理器实现。

# 核心类型

  - WellnessHandler — POST /v1/respond、POST /v1/respond/stream（SSE）与 GET /v1/graph
  - RunsHandler     — GET /v1/runs 与 GET /v1/runs/{id}，基于 workflow.HistoryStore
  - HealthHandler   — 服务健康检查（/health, /healthz, /ready）
  - Response        — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter  — 包装 http.ResponseWriter 以捕获状态码与响应大小

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - SSE 流式输出：运行事件逐条推送，最后推送 result 事件与 [DONE]
  - 可扩展健康检查：RegisterCheck 注册 PingCheck 等 HealthCheck 实现
*/
package handlers
