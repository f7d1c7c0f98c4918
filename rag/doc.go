// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供面向业务文档的检索与排序引擎。

该包覆盖从文档入库到回答生成的全部阶段：按文档类型分块、稠密与稀疏
双路召回、Min-Max 归一化加权融合、交叉编码器精排、HyDE 查询扩展、
知识图谱多跳遍历，以及把上述阶段串起来的编排器。每个可选阶段失败时
降级而不是中断，执行情况记录在 SignalReport 中。

# 核心接口/类型

  - Embedder / Generator / CrossEncoder — 外部模型能力
  - DenseIndex / SparseIndex / ChunkStore — 索引与块原文存储
  - GraphStore — 实体关系存储（InMemoryGraph / SQLGraphStore）
  - DocumentChunker — 五种分块策略（固定、递归、层级、表格感知、邮件线程）
  - CandidateRetriever — 双路召回，单路失败时降级
  - Fuse — 融合，默认权重 0.7 / 0.3，同分按块 ID 升序
  - RerankStage — 精排，失败时透传融合顺序
  - QueryExpander — HyDE，按文档类型选择模板
  - GraphTraverser — 有界广度优先遍历
  - Indexer / GenerationRegistry — 原子切换的索引代
  - Pipeline — 编排器：HybridSearch / GraphRAG / Answer / Health

# 后端

  - 稠密索引：InMemory / Qdrant / pgvector
  - 稀疏索引：BM25
  - 图存储：内存 / GORM（PostgreSQL、MySQL、SQLite）
  - 向量缓存：进程内 LRU + 可选 Redis 二级缓存

NewRuntimeFromConfig 根据全局配置一次性装配上述组件。
*/
package rag
