// Package tokenizer 提供分块阶段使用的 token 计数：
// tiktoken 精确计数与不依赖外部数据的 CJK 感知估算器。
package tokenizer
