// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库连接池管理，支持 PostgreSQL、
MySQL 与纯 Go SQLite 三种驱动，以及健康检查、统计采集与事务重试。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，可由 PoolConfigFrom 从应用配置构建。
  - StatsObserver：健康检查时接收连接数，通常由 metrics.Collector 实现。

# 主要能力

  - 驱动选择：Open / Dialector 按 DatabaseConfig.Driver 选择方言。
  - 健康检查：后台定时 PingContext 探活，输出连接数与空闲数。
  - 事务管理：WithTransaction 与带指数退避的 WithTransactionRetry。
*/
package database
