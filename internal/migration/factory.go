package migration

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	appconfig "github.com/BaSui01/ragcore/config"
)

// NewMigratorFromDatabaseConfig 按全局数据库配置创建迁移器。
// sqlite 只用于测试与单机场景，表结构由 GORM 自动建立，不走迁移。
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig, logger *zap.Logger) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  DatabaseURL(dbCfg),
		TableName:    "schema_migrations",
	}, logger)
}

// DatabaseURL database/sql 可直接打开的连接串；mysql 去掉 scheme 前缀
func DatabaseURL(dbCfg appconfig.DatabaseConfig) string {
	return strings.TrimPrefix(dbCfg.URL(), "mysql://")
}
