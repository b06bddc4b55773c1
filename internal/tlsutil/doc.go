// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package tlsutil 提供集中式 TLS 配置，供 LLM 客户端的 HTTP 连接与
// 运行记录的 Redis 连接使用（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
