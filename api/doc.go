// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package api 定义 wellness HTTP API 的请求与响应结构。

# 核心类型

  - RespondRequest / RespondResponse — POST /v1/respond 的请求与响应
  - TraceEntry                        — 节点执行记录的 API 表示
  - RunListResponse                   — GET /v1/runs 的响应

处理器实现位于 api/handlers 子包。
*/
package api
