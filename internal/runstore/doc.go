// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 runstore 提供 workflow.HistoryStore 的持久化实现。

  - RedisStore：记录以 JSON 保存，按开始时间维护有序集合索引，支持 TTL 与容量裁剪。
  - SQLStore：基于 GORM 的 workflow_runs 表，支持 PostgreSQL、MySQL 与 SQLite。
  - New：按 history.backend（none / memory / redis / sql）创建存储。

所有实现的 List 均按开始时间倒序返回记录，未知运行 ID 返回 workflow.ErrRunNotFound。
*/
package runstore
