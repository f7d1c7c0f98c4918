// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供文本向量化的提供者接口与 OpenAI 兼容实现，
供索引与稠密召回把块和查询转换为向量。

# 核心接口

  - Provider：Embed、EmbedQuery、EmbedDocuments。
  - OpenAIProvider：调用 /v1/embeddings，自动分批并按 index 恢复输入顺序。

请求经 llm.Client 发出，统一处理限流、错误映射与指标。

# 使用方式

	cfg := embedding.DefaultOpenAIConfig()
	cfg.APIKey = "sk-..."
	provider := embedding.NewOpenAIProvider(cfg, collector, logger)

	vec, err := provider.EmbedQuery(ctx, "shipment delay")
*/
package embedding
