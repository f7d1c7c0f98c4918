// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 rerank 提供精排模型的统一接入层，供检索管线在融合之后对候选块重新打分。

# 核心接口

  - Provider：Rerank、RerankSimple、Name 与 MaxDocuments。
  - APIProvider：Cohere（/v2/rerank）与 Jina（/v1/rerank）的共用实现。
  - RerankResult：原始索引与相关性分数。

请求经 llm.Client 发出，HTTP 错误统一映射为 types.Error。
*/
package rerank
