package app

import (
	"fmt"
	"net"
	"strconv"

	"github.com/weisyn/subproof/pkg/interfaces/config"
	"github.com/weisyn/subproof/pkg/types"
)

// Option 应用程序选项函数类型
type Option func(*options)

// options 应用程序选项
// 实现config.AppOptions接口
type options struct {
	// 配置文件路径（为空则全部使用默认值）
	configFilePath string

	// 直接注入的配置（优先级高于configFilePath）
	appConfig *types.AppConfig

	// 命令行覆盖的日志级别
	logLevel string

	// 命令行覆盖的可信设置目录
	trustedSetupPath string

	// 命令行指定的HTTP监听地址（非空即启用HTTP API）
	httpListen string

	// 是否启动后台清理循环
	enableCleanup bool
}

// 编译时校验options是否实现了config.AppOptions接口
var _ config.AppOptions = (*options)(nil)

// WithConfigFile 设置配置文件路径
func WithConfigFile(configPath string) Option {
	return func(o *options) {
		o.configFilePath = configPath
	}
}

// WithAppConfig 直接注入已解析的配置（测试和嵌入场景）
func WithAppConfig(appConfig *types.AppConfig) Option {
	return func(o *options) {
		o.appConfig = appConfig
	}
}

// WithLogLevel 覆盖配置文件中的日志级别
func WithLogLevel(level string) Option {
	return func(o *options) {
		o.logLevel = level
	}
}

// WithTrustedSetupPath 覆盖可信设置目录
func WithTrustedSetupPath(dir string) Option {
	return func(o *options) {
		o.trustedSetupPath = dir
	}
}

// WithHTTPListen 启用HTTP API并指定监听地址（host:port）
func WithHTTPListen(addr string) Option {
	return func(o *options) {
		o.httpListen = addr
	}
}

// WithoutCleanup 禁用后台过期清理（一次性命令使用）
func WithoutCleanup() Option {
	return func(o *options) {
		o.enableCleanup = false
	}
}

// newOptions 创建选项
func newOptions(opts ...Option) *options {
	options := &options{
		enableCleanup: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// GetAppConfig 返回应用程序配置
func (o *options) GetAppConfig() *types.AppConfig {
	return o.appConfig
}

// resolve 加载配置文件并应用命令行覆盖
func (o *options) resolve(load func(string) (*types.AppConfig, error)) error {
	if o.appConfig == nil {
		appConfig, err := load(o.configFilePath)
		if err != nil {
			return err
		}
		o.appConfig = appConfig
	}

	if o.logLevel != "" {
		if o.appConfig.Log == nil {
			o.appConfig.Log = &types.UserLogConfig{}
		}
		o.appConfig.Log.Level = types.StringPtr(o.logLevel)
	}

	if o.trustedSetupPath != "" || !o.enableCleanup {
		if o.appConfig.Subproof == nil {
			o.appConfig.Subproof = &types.UserSubproofConfig{}
		}
	}
	if o.trustedSetupPath != "" {
		o.appConfig.Subproof.TrustedSetupPath = types.StringPtr(o.trustedSetupPath)
	}
	if !o.enableCleanup {
		o.appConfig.Subproof.CleanupIntervalMs = types.Int64Ptr(0)
	}
	if o.httpListen != "" {
		host, portStr, err := net.SplitHostPort(o.httpListen)
		if err != nil {
			return fmt.Errorf("无效的HTTP监听地址 %q: %w", o.httpListen, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("无效的HTTP端口 %q: %w", portStr, err)
		}
		if o.appConfig.API == nil {
			o.appConfig.API = &types.UserAPIConfig{}
		}
		o.appConfig.API.HTTPEnabled = types.BoolPtr(true)
		o.appConfig.API.HTTPPort = types.IntPtr(port)
		if host != "" {
			o.appConfig.API.HTTPHost = types.StringPtr(host)
		}
	}
	return nil
}
