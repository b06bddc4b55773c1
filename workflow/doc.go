// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供基于有向图的工作流编排与执行引擎。

# 概述

workflow 包以"节点 = 状态到部分更新的函数"为核心抽象：调用方声明
共享状态的字段及其合并策略，注册节点并用静态边或条件路由连接它们，
构建出不可变的 Graph，随后由 Executor 按就绪集（ready set）逐步推进，
同一就绪集内的节点并发执行，全部完成后才评估出边（join barrier）。

# 核心接口与类型

  - Schema / State     — 字段声明与共享状态，MergeReplace / MergeAppend 两种合并策略
  - Snapshot / Update  — 节点读取的只读快照与节点产出的部分更新
  - Node / Task        — 节点描述（读写集、critical、超时）与执行接口
  - Router / Route     — 条件边；Route 为 Next / FanOut / UseDefault 三态
  - GraphBuilder       — Fluent API 构建并校验图（悬空边、环、孤立节点、并发写冲突）
  - Executor           — 执行器（并发就绪集、合并、失败语义、超时与取消）
  - RunResult          — 终态快照、状态、错误与节点轨迹
  - Adapter            — 外部协作者适配器（输入投影、输出过滤、逐字段默认值）
  - HistoryStore       — 运行记录归档接口及内存实现

# 主要能力

  - 构建期校验：所有可能同时就绪的节点对 replace 字段的写集必须互不相交
  - 失败语义：普通节点失败仅记录并跳过其出边，critical 节点失败终止运行，
    一个就绪集全部失败时以 FanOutError 终止
  - 超时与取消：运行级与节点级超时，取消后保留已合并的状态
  - 确定性模式：就绪集按顺序串行执行，append 字段顺序可复现
  - 可观测性：zap 日志、OpenTelemetry span、Recorder 指标接口、事件流
*/
package workflow
