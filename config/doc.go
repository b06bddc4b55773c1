// Package config 提供 wellness 服务的配置管理功能。
//
// 配置来源依次为默认值、YAML 文件、.env 文件与 WELLNESS_ 前缀的环境变量，
// 覆盖 HTTP 服务、工作流执行器、LLM、运行记录归档、日志与遥测各部分。
package config
