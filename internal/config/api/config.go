package api

import (
	"time"

	"github.com/weisyn/subproof/pkg/types"
)

// APIOptions API服务配置选项
type APIOptions struct {
	// HTTP API配置
	HTTP HTTPConfig `json:"http"`
}

// HTTPConfig HTTP API配置
type HTTPConfig struct {
	// 基础配置
	Enabled bool   `json:"enabled"` // 是否启用HTTP服务（总开关）
	Host    string `json:"host"`    // 监听地址
	Port    int    `json:"port"`    // 监听端口，0 表示由系统分配

	// 超时配置
	ReadTimeout  time.Duration `json:"read_timeout"`  // 读取超时时间
	WriteTimeout time.Duration `json:"write_timeout"` // 写入超时时间（需覆盖证明生成耗时）

	// 限流和安全
	RateLimitRequestsPerMinute int   `json:"rate_limit_requests_per_minute"` // 每个客户端每分钟最大请求数，0 表示不限流
	MaxRequestSize             int64 `json:"max_request_size"`               // 最大请求大小(字节)
}

// Config API配置实现
type Config struct {
	options *APIOptions
}

// New 创建API配置实现
func New(userConfig *types.UserAPIConfig) *Config {
	// 1. 先创建完整的默认配置
	defaultOptions := createDefaultAPIOptions()

	// 2. 如果有用户配置，则转换并覆盖默认配置
	if userConfig != nil {
		convertAndMergeUserConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// GetOptions 获取完整的API配置选项
func (c *Config) GetOptions() *APIOptions {
	return c.options
}

// createDefaultAPIOptions 创建默认API配置
func createDefaultAPIOptions() *APIOptions {
	return &APIOptions{
		HTTP: HTTPConfig{
			Enabled:                    defaultHTTPEnabled,
			Host:                       defaultHTTPHost,
			Port:                       defaultHTTPPort,
			ReadTimeout:                defaultHTTPReadTimeout,
			WriteTimeout:               defaultHTTPWriteTimeout,
			RateLimitRequestsPerMinute: defaultRateLimitRPM,
			MaxRequestSize:             defaultMaxRequestSize,
		},
	}
}

// convertAndMergeUserConfig 将用户配置转换并合并到默认配置中
// 使用指针类型来准确区分"未设置"和"设置为零值"
func convertAndMergeUserConfig(defaultOpts *APIOptions, userConfig *types.UserAPIConfig) {
	if userConfig.HTTPEnabled != nil {
		defaultOpts.HTTP.Enabled = *userConfig.HTTPEnabled
	}
	if userConfig.HTTPHost != nil {
		defaultOpts.HTTP.Host = *userConfig.HTTPHost
	}
	if userConfig.HTTPPort != nil && *userConfig.HTTPPort >= 0 {
		defaultOpts.HTTP.Port = *userConfig.HTTPPort
	}
	if userConfig.WriteTimeoutMs != nil && *userConfig.WriteTimeoutMs > 0 {
		defaultOpts.HTTP.WriteTimeout = time.Duration(*userConfig.WriteTimeoutMs) * time.Millisecond
	}
	if userConfig.RateLimitRequestsPerMinute != nil && *userConfig.RateLimitRequestsPerMinute >= 0 {
		defaultOpts.HTTP.RateLimitRequestsPerMinute = *userConfig.RateLimitRequestsPerMinute
	}
	if userConfig.MaxRequestSize != nil && *userConfig.MaxRequestSize > 0 {
		defaultOpts.HTTP.MaxRequestSize = *userConfig.MaxRequestSize
	}
}
