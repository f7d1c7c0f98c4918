// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的检索引擎指标采集能力。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制。所有指标按 namespace 隔离；Collector 的记录方法对 nil
接收者安全，关闭指标时调用方无需判空。

# 主要能力

  - 检索指标：请求总数与耗时（按 pipeline/status）、阶段耗时、
    阶段降级次数（按 stage/reason）、每路召回的候选数。
  - 索引指标：按分块策略统计的块数、索引耗时、已发布的代数。
  - 图遍历指标：每次遍历的路径数、被路径上限截断的次数。
  - 模型调用指标：向量化、生成与重排序 API 的请求数、耗时与 Token 用量。
  - 缓存与数据库指标：向量缓存命中/未命中、连接池 Gauge、查询耗时。
*/
package metrics
