// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 核心类型

  - Manager：HTTP 服务器管理器，持有 http.Server、net.Listener
    与异步错误通道，提供 Start/Run/Shutdown 等生命周期方法。
  - Config：服务器配置，可由 ConfigFrom 从应用的 ServerConfig 构建；
    API 服务与 metrics 服务各自使用一个 Manager。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在 ctx 结束或服务异常退出时触发优雅关闭。
  - 错误传播：Errors() 返回异步错误通道。
*/
package server
