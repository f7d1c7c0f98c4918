// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供检索引擎的全局共享错误体系。

# 概述

types 是最底层的公共包，不依赖任何内部包。rag、llm 及命令行工具都通过
这里的 Error / ErrorCode 表达失败，调用方按错误码区分处理路径。

# 错误码

  - ErrConfiguration         — 配置缺失或取值非法，调用方应修正配置
  - ErrCapabilityUnavailable — 检索信号、重排或生成能力暂不可用
  - ErrMalformedDocument     — 文档无法解析
  - ErrNotFound              — 实体或文档不存在
  - ErrInvalidRequest 等     — 上游模型服务返回的错误，按 HTTP 状态码映射

# 主要能力

  - 构造：NewError / Errorf / ConfigError / Unavailable
  - 判定：IsCode / GetErrorCode / IsRetryable
  - 映射：FromHTTPStatus 把上游状态码转换为结构化错误
*/
package types
