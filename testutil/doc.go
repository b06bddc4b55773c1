// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 wellness 与 workflow 测试的共享工具和辅助函数。

# 概述

testutil 包为项目的单元测试提供统一的辅助能力，避免各包重复实现
相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertJSONEqual / AssertEventuallyTrue
  - 数据工具: MustJSON / MustParseJSON / MessagesFrom / CollectChannel

# 子包

  - testutil/mocks: MockChatModel，支持按 Agent 固定响应、延迟与错误注入
  - testutil/fixtures: 各 Agent 的预置模型回复

# 使用示例

	ctx := testutil.TestContext(t)
	model := mocks.NewMockChatModel().WithAgentResponse("planner", fixtures.PlannerReply("coping_strategy"))
	resp, err := svc.Respond(ctx, "I feel stressed")
	require.NoError(t, err)
*/
package testutil
