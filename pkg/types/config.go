// Package types provides configuration type definitions.
package types

// AppConfig 应用程序根配置
// 只包含JSON配置文件解析所需的结构，不包含任何内部字段
// 默认值和完整配置结构在 internal/config/*/defaults.go 和 internal/config/*/config.go 中定义
type AppConfig struct {
	// 应用程序基本信息
	AppName *string `json:"app_name,omitempty"` // 应用名称
	DataDir *string `json:"data_dir,omitempty"` // 数据目录路径

	// Environment 运行环境：dev | test | prod
	Environment *string `json:"environment,omitempty"`

	// 日志配置
	Log *UserLogConfig `json:"log,omitempty"`

	// 时钟配置
	Clock *UserClockConfig `json:"clock,omitempty"`

	// 订阅证明引擎配置
	Subproof *UserSubproofConfig `json:"subproof,omitempty"`

	// API服务配置
	API *UserAPIConfig `json:"api,omitempty"`
}

// UserLogConfig 用户日志配置
// 只包含JSON配置文件中实际出现的字段
type UserLogConfig struct {
	Level    *string `json:"level,omitempty"`     // 日志级别：debug, info, warn, error, fatal
	FilePath *string `json:"file_path,omitempty"` // 日志文件路径
}

// UserClockConfig 用户时钟配置
type UserClockConfig struct {
	Type              *string `json:"type,omitempty"`                // system | ntp
	NTPServer         *string `json:"ntp_server,omitempty"`          // 如 time.google.com
	SyncIntervalMs    *int64  `json:"sync_interval_ms,omitempty"`    // NTP 同步间隔
	OffsetThresholdMs *int64  `json:"offset_threshold_ms,omitempty"` // 判定不健康的偏移阈值
}

// UserSubproofConfig 用户订阅证明引擎配置
type UserSubproofConfig struct {
	StoreShards          *int    `json:"store_shards,omitempty"`           // 订阅存储分片数
	ProofWorkers         *int    `json:"proof_workers,omitempty"`          // 证明生成工作线程数（0 表示按 CPU 核数）
	ProofQueueSize       *int    `json:"proof_queue_size,omitempty"`       // 证明任务队列长度
	ProofValiditySeconds *int64  `json:"proof_validity_seconds,omitempty"` // 证明有效期
	ClockSkewSeconds     *int64  `json:"clock_skew_seconds,omitempty"`     // 验证时容忍的时钟偏差
	VerifyCacheLifeMs    *int64  `json:"verify_cache_life_ms,omitempty"`   // 验证结果缓存生命周期
	VerifyCacheMaxMB     *int    `json:"verify_cache_max_mb,omitempty"`    // 验证结果缓存上限
	TrustedSetupPath     *string `json:"trusted_setup_path,omitempty"`     // 可信设置目录（为空则每次启动重新生成）
	CleanupIntervalMs    *int64  `json:"cleanup_interval_ms,omitempty"`    // 过期订阅清理周期（0 表示不启动）
}

// UserAPIConfig 用户API配置
type UserAPIConfig struct {
	HTTPEnabled                *bool   `json:"http_enabled,omitempty"`                   // 是否启用HTTP API
	HTTPHost                   *string `json:"http_host,omitempty"`                      // 监听地址
	HTTPPort                   *int    `json:"http_port,omitempty"`                      // 监听端口
	WriteTimeoutMs             *int64  `json:"write_timeout_ms,omitempty"`               // 写入超时
	RateLimitRequestsPerMinute *int    `json:"rate_limit_requests_per_minute,omitempty"` // 每客户端每分钟请求数
	MaxRequestSize             *int64  `json:"max_request_size,omitempty"`               // 最大请求体字节数
}

// BoolPtr 创建bool指针
func BoolPtr(v bool) *bool {
	return &v
}

// IntPtr 创建int指针，用于明确表示用户设置了该值
func IntPtr(v int) *int {
	return &v
}

// Int64Ptr 创建int64指针
func Int64Ptr(v int64) *int64 {
	return &v
}

// StringPtr 创建string指针，用于明确表示用户设置了该值
func StringPtr(v string) *string {
	return &v
}
