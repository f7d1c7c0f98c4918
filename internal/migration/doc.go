// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理图存储与 pgvector 表的 Schema 版本，基于 golang-migrate。

SQL 文件按方言内嵌在 migrations/postgres 与 migrations/mysql 下：
graph_entities、graph_relationships（source_id, rel_type, target_id 唯一）
以及 PostgreSQL 独有的 chunk_embeddings（需要 vector 扩展）。
sqlite 仅用于测试，由 GORM AutoMigrate 建表。

CLI 提供 up/down/steps/goto/force/version/status 子命令的终端输出，
供 ragcore migrate 使用。
*/
package migration
