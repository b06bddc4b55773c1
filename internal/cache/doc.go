// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的存储管理能力，供运行历史等组件复用。

# 概述

本包封装 go-redis 客户端，为上层提供统一的键值与有序集合索引接口。
Manager 负责连接生命周期管理，包括初始化、健康检查与优雅关闭。

# 核心类型

  - Manager：Redis 管理器，提供 Get/Set/Delete 与 GetJSON/SetJSON，
    以及 IndexAdd/IndexNewest/IndexTrim/IndexRemove 有序集合索引操作。
  - Config：连接配置，可由 ConfigFrom 从应用的 RedisConfig 构建。

# 主要能力

  - 键值读写：支持字符串与 JSON 两种模式，TTL 为 0 时使用默认过期时间。
  - 时间索引：以分数排序的有序集合维护最新记录，并按容量裁剪。
  - 健康检查：后台定时 Ping 检测，异常时通过 zap 日志告警。
  - 错误语义：提供 ErrCacheMiss / ErrClosed 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
