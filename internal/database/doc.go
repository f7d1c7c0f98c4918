// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开图存储与 pgvector 所用的 GORM 连接，并管理连接池。

Open 按 config.DatabaseConfig 的驱动选择 postgres、mysql 或纯 Go 的
sqlite（glebarez）方言。PoolManager 在其上设置连接池参数，Start 后
定时探活并通过 metrics.Collector 上报打开/空闲连接数。

WithTransactionRetry 对死锁、序列化失败与 sqlite 的 database is locked
按指数退避重试，其余错误立即返回。
*/
package database
