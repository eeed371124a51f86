package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/weisyn/subproof/internal/config/api"
	"github.com/weisyn/subproof/internal/config/clock"
	"github.com/weisyn/subproof/internal/config/log"
	"github.com/weisyn/subproof/internal/config/subproof"
	"github.com/weisyn/subproof/pkg/interfaces/config"
	"github.com/weisyn/subproof/pkg/types"
)

const defaultAppName = "subproof"

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *types.AppConfig
}

// NewProvider 创建配置提供者
func NewProvider(appConfig *types.AppConfig) config.Provider {
	return &Provider{
		appConfig: appConfig,
	}
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *log.LogOptions {
	// 直接传递用户日志配置给log.New，让它处理默认值和转换
	var userLogConfig *types.UserLogConfig
	if p.appConfig != nil && p.appConfig.Log != nil {
		userLogConfig = p.appConfig.Log
	}
	return log.New(userLogConfig).GetOptions()
}

// GetClock 获取时钟配置
func (p *Provider) GetClock() *clock.ClockOptions {
	var userClockConfig *types.UserClockConfig
	if p.appConfig != nil && p.appConfig.Clock != nil {
		userClockConfig = p.appConfig.Clock
	}
	return clock.New(userClockConfig).GetOptions()
}

// GetSubproof 获取订阅证明引擎配置
func (p *Provider) GetSubproof() *subproof.SubproofOptions {
	var userSubproofConfig *types.UserSubproofConfig
	if p.appConfig != nil && p.appConfig.Subproof != nil {
		userSubproofConfig = p.appConfig.Subproof
	}
	return subproof.New(userSubproofConfig).GetOptions()
}

// GetAPI 获取API服务配置
func (p *Provider) GetAPI() *api.APIOptions {
	var userAPIConfig *types.UserAPIConfig
	if p.appConfig != nil && p.appConfig.API != nil {
		userAPIConfig = p.appConfig.API
	}
	return api.New(userAPIConfig).GetOptions()
}

// GetAppName 获取应用名称
func (p *Provider) GetAppName() string {
	if p.appConfig != nil && p.appConfig.AppName != nil && *p.appConfig.AppName != "" {
		return *p.appConfig.AppName
	}
	return defaultAppName
}

// GetEnvironment 获取运行环境
//
// 只接受 dev | test | prod；未配置或无效值一律视为 prod（安全优先）
func (p *Provider) GetEnvironment() string {
	if p.appConfig == nil || p.appConfig.Environment == nil {
		return "prod"
	}
	switch env := strings.ToLower(strings.TrimSpace(*p.appConfig.Environment)); env {
	case "dev", "test", "prod":
		return env
	default:
		return "prod"
	}
}

// ============================================================================
//                              配置文件加载
// ============================================================================

// LoadAppConfig 从 JSON 文件加载应用配置
//
// 空路径返回空配置（全部使用默认值）；未知字段视为错误，避免拼写错误被静默忽略。
func LoadAppConfig(path string) (*types.AppConfig, error) {
	if path == "" {
		return &types.AppConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return ParseAppConfig(data, path)
}

// ParseAppConfig 解析 JSON 配置内容（文件或内嵌配置），source 只用于错误信息
func ParseAppConfig(data []byte, source string) (*types.AppConfig, error) {
	var appConfig types.AppConfig
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&appConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败 %s: %w", source, err)
	}

	if err := ValidateMandatoryConfig(&appConfig); err != nil {
		return nil, err
	}
	return &appConfig, nil
}
