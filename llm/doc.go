// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 是检索引擎访问外部模型服务的接入层。

# 子包

  - embedding：文本向量化（OpenAI 兼容 /v1/embeddings）。
  - rerank：精排模型（Cohere、Jina）。
  - completion：单轮文本生成（OpenAI 兼容 Chat Completions），用于 HyDE 与回答。
  - tokenizer：分块阶段的 token 计数（tiktoken 与估算器）。

# 公共客户端

Client 封装了各子包共用的 HTTP 行为：

  - 基于 golang.org/x/time/rate 的客户端限流；
  - Bearer 鉴权与自定义请求头；
  - HTTP 状态码统一映射为 types.Error（带 Provider 与可重试标记）；
  - 每次调用上报 Prometheus 请求数、耗时与 token 用量。
*/
package llm
