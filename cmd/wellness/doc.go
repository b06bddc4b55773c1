// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 Mental Wellness Agent 的命令行与服务端入口。

# 概述

cmd/wellness 装配 wellness 流水线（模型、图、执行器、运行记录存储），
并通过子命令以单次运行、交互对话或 HTTP API 的形式对外提供服务。
配置来自 YAML 文件、.env 文件与 WELLNESS_ 前缀的环境变量，日志使用 zap。

# 核心类型

  - app         — 一次进程生命周期内装配好的组件集合
  - Server      — API 与 Metrics 双端口服务器，ctx 取消时优雅关闭
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：run、chat、serve、graph、health、version
  - API：POST /v1/respond、POST /v1/respond/stream（SSE）、GET /v1/graph、
    GET /v1/runs、GET /v1/runs/{id}
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    RequestLogger、Metrics、CORS、APIKeyAuth、JWTAuth、RateLimiter
  - 就绪探针：运行记录后端（Redis / 数据库）的连通性检查
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
