package subproof

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pbnjay/memory"
	"github.com/weisyn/subproof/pkg/types"
)

// SubproofOptions 订阅证明引擎配置选项
type SubproofOptions struct {
	// === 存储 ===
	StoreShards int `json:"store_shards"` // 订阅存储分片数（必须 > 0）

	// === 证明生成 ===
	ProofWorkers   int           `json:"proof_workers"`    // 工作线程数
	ProofQueueSize int           `json:"proof_queue_size"` // 任务队列长度，满时提交方阻塞
	ProofValidity  time.Duration `json:"proof_validity"`   // 证明有效期上限

	// === 验证 ===
	ClockSkew        time.Duration `json:"clock_skew"`          // 允许的证明时间戳超前量
	VerifyCacheLife  time.Duration `json:"verify_cache_life"`   // 0 表示禁用验证缓存
	VerifyCacheMaxMB int           `json:"verify_cache_max_mb"` // 缓存硬上限

	// === 可信设置 ===
	TrustedSetupPath string `json:"trusted_setup_path"` // 为空则启动时重新执行 Setup

	// === 生命周期 ===
	CleanupInterval time.Duration `json:"cleanup_interval"` // 0 表示不启动后台清理
}

// Config 订阅证明配置实现
type Config struct {
	options *SubproofOptions
}

// New 创建配置：默认值 → 用户配置 → 环境变量覆盖
// 环境变量：
//
//	SUBPROOF_PROOF_WORKERS
//	SUBPROOF_TRUSTED_SETUP_PATH
func New(userConfig *types.UserSubproofConfig) *Config {
	options := createDefaultSubproofOptions()
	applyUserSubproofConfig(options, userConfig)
	applyEnvOverrides(options)
	normalize(options)
	return &Config{options: options}
}

// GetOptions 获取完整的配置选项
func (c *Config) GetOptions() *SubproofOptions {
	return c.options
}

func createDefaultSubproofOptions() *SubproofOptions {
	workers := runtime.NumCPU()
	return &SubproofOptions{
		StoreShards:      defaultStoreShards,
		ProofWorkers:     workers,
		ProofQueueSize:   workers * defaultProofQueueMultiplier,
		ProofValidity:    defaultProofValidity,
		ClockSkew:        defaultClockSkew,
		VerifyCacheLife:  defaultVerifyCacheLife,
		VerifyCacheMaxMB: defaultVerifyCacheMaxMB,
		CleanupInterval:  defaultCleanupInterval,
	}
}

// applyUserSubproofConfig 只处理JSON配置文件中实际出现的字段
func applyUserSubproofConfig(options *SubproofOptions, userConfig *types.UserSubproofConfig) {
	if userConfig == nil {
		return
	}
	if userConfig.StoreShards != nil {
		options.StoreShards = *userConfig.StoreShards
	}
	if userConfig.ProofWorkers != nil && *userConfig.ProofWorkers > 0 {
		options.ProofWorkers = *userConfig.ProofWorkers
		options.ProofQueueSize = options.ProofWorkers * defaultProofQueueMultiplier
	}
	if userConfig.ProofQueueSize != nil {
		options.ProofQueueSize = *userConfig.ProofQueueSize
	}
	if userConfig.ProofValiditySeconds != nil {
		options.ProofValidity = time.Duration(*userConfig.ProofValiditySeconds) * time.Second
	}
	if userConfig.ClockSkewSeconds != nil {
		options.ClockSkew = time.Duration(*userConfig.ClockSkewSeconds) * time.Second
	}
	if userConfig.VerifyCacheLifeMs != nil {
		options.VerifyCacheLife = time.Duration(*userConfig.VerifyCacheLifeMs) * time.Millisecond
	}
	if userConfig.VerifyCacheMaxMB != nil {
		options.VerifyCacheMaxMB = *userConfig.VerifyCacheMaxMB
	}
	if userConfig.TrustedSetupPath != nil {
		options.TrustedSetupPath = *userConfig.TrustedSetupPath
	}
	if userConfig.CleanupIntervalMs != nil {
		options.CleanupInterval = time.Duration(*userConfig.CleanupIntervalMs) * time.Millisecond
	}
}

func applyEnvOverrides(options *SubproofOptions) {
	if v := os.Getenv("SUBPROOF_PROOF_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			options.ProofWorkers = n
		}
	}
	if v := os.Getenv("SUBPROOF_TRUSTED_SETUP_PATH"); v != "" {
		options.TrustedSetupPath = v
	}
}

// normalize 把非法值收敛到可用范围
func normalize(options *SubproofOptions) {
	if options.StoreShards <= 0 {
		options.StoreShards = defaultStoreShards
	}
	if options.ProofWorkers <= 0 {
		options.ProofWorkers = runtime.NumCPU()
	}
	if options.ProofQueueSize < 0 {
		options.ProofQueueSize = 0
	}
	if options.ProofValidity <= 0 {
		options.ProofValidity = defaultProofValidity
	}
	if options.ClockSkew < 0 {
		options.ClockSkew = 0
	}
	if options.VerifyCacheLife < 0 {
		options.VerifyCacheLife = 0
	}
	if options.CleanupInterval < 0 {
		options.CleanupInterval = 0
	}
	options.VerifyCacheMaxMB = capCacheMB(options.VerifyCacheMaxMB)
}

// capCacheMB 按系统总内存限制缓存大小
func capCacheMB(requested int) int {
	if requested <= 0 {
		requested = defaultVerifyCacheMaxMB
	}
	total := memory.TotalMemory()
	if total == 0 {
		return requested
	}
	limit := int(total / (1024 * 1024) / defaultVerifyCacheMemoryFraction)
	if limit < 1 {
		limit = 1
	}
	if requested > limit {
		return limit
	}
	return requested
}
