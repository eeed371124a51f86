// Package config provides configuration provider interfaces.
package config

import (
	apiconfig "github.com/weisyn/subproof/internal/config/api"
	clockconfig "github.com/weisyn/subproof/internal/config/clock"
	logconfig "github.com/weisyn/subproof/internal/config/log"
	subproofconfig "github.com/weisyn/subproof/internal/config/subproof"
)

// Provider 配置提供者接口
type Provider interface {
	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetClock 获取时钟配置
	GetClock() *clockconfig.ClockOptions

	// GetSubproof 获取订阅证明引擎配置
	GetSubproof() *subproofconfig.SubproofOptions

	// GetAPI 获取API服务配置
	GetAPI() *apiconfig.APIOptions

	// GetAppName 获取应用名称
	GetAppName() string

	// GetEnvironment 获取运行环境
	GetEnvironment() string
}
