// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ragcore 命令行程序入口。

# 概述

cmd/ragcore 把检索引擎的各阶段暴露为子命令，便于在本地目录上
验证分块、混合检索、图遍历与回答生成的效果，并提供数据库迁移。
程序支持 YAML 配置文件与 RAGCORE_ 环境变量、结构化日志（zap）、
OpenTelemetry 追踪与 Prometheus 指标。

# 子命令

  - chunk         — 读取文件并按文档类型或指定策略分块
  - index-search  — 目录入库后执行混合检索，--answer 时生成回答
  - graph         — 从 YAML 载入实体与关系并执行有界遍历
  - migrate       — 数据库迁移（up / down / steps / goto / force / status / reset）
  - version       — 版本信息，Version、BuildTime、GitCommit 通过 ldflags 设置

命令结果写到 stdout，日志写到 stderr；加 --json 输出机器可读结果。
*/
package main
