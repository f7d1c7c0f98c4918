// Package config 提供 ragcore 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序加载，
// 覆盖分块、召回融合、重排序、HyDE、图遍历以及各外部能力的连接参数。
package config
