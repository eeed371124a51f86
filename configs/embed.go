// Package configs 内嵌各运行环境的默认配置文件
package configs

import (
	_ "embed"
	"fmt"
)

//go:embed development/config.json
var developmentConfig []byte

//go:embed production/config.json
var productionConfig []byte

// GetDevelopmentConfig 获取开发环境配置
func GetDevelopmentConfig() []byte {
	return developmentConfig
}

// GetProductionConfig 获取生产环境配置
func GetProductionConfig() []byte {
	return productionConfig
}

// Get 按环境名称获取内嵌配置（dev | prod）
func Get(env string) ([]byte, error) {
	switch env {
	case "dev", "development":
		return developmentConfig, nil
	case "prod", "production":
		return productionConfig, nil
	default:
		return nil, fmt.Errorf("没有内嵌的 %q 环境配置（可选 dev|prod）", env)
	}
}
