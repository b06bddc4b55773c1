// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package wellness 在 workflow 引擎之上实现非临床心理健康支持流水线。

# 概述

一次请求依次经过 supervisor（安全闸门）、planner（选择子 Agent）、
并发执行的子 Agent（情绪反思 / 应对策略 / 资源推荐）以及 aggregator
（汇总最终回复）。supervisor 拒绝的请求转入 blocked 终止节点，
返回固定的危机支持回复，运行状态为 workflow.RunBlocked。

# 核心接口与类型

  - ChatModel    — 按 Agent 名称完成一次对话，返回模型原始文本
  - Offline      — 基于关键词规则的离线 ChatModel，确定性且无需网络
  - BuildGraph   — 构建并校验 wellness 图；Registry / Routes 用于从导出定义重建
  - Service      — Respond 运行流水线，失败时返回兜底回复而非错误
  - Format       — 以控制台格式渲染 FinalOutput

# 容错

每个 LLM 节点都通过 workflow.Adapter 接入：模型输出无法解析时整体
使用默认值，缺失或类型不符的字段逐项回退为默认值。supervisor 为
critical 节点，其调用失败将终止整个运行。

# 使用示例

	g, err := wellness.BuildGraph(wellness.NewOffline())
	if err != nil {
		return err
	}
	svc := wellness.NewService(g)
	resp, err := svc.Respond(ctx, "I'm stressed about my deadlines")
	fmt.Println(wellness.Format(resp.FinalOutput))
*/
package wellness
