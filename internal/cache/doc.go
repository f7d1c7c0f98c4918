// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的二级向量缓存。

# 概述

Manager 封装 go-redis 客户端，负责连接生命周期、健康检查与优雅关闭。
rag.CachedEmbedder 在进程内 LRU 之后使用它保存查询与块的向量，
多个进程共享同一份向量结果。

# 核心类型

  - Manager：Get/Set/Delete 字符串读写，GetVector/SetVector 向量读写，
    所有键自动加 KeyPrefix 前缀。
  - Config：地址、密码、键前缀、默认 TTL、连接池与健康检查间隔。
  - Stats：从 INFO 中解析的命中、未命中与内存占用。

# 错误语义

  - ErrCacheMiss / IsCacheMiss：键不存在或已过期。
  - ErrClosed：Close 之后的任何调用。
*/
package cache
