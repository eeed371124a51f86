package clock

import (
	"os"
	"strconv"
	"time"

	"github.com/weisyn/subproof/pkg/types"
)

// ClockOptions 时钟配置
type ClockOptions struct {
	Type            string        `json:"type"` // system | ntp
	NTPServer       string        `json:"ntp_server"`
	SyncInterval    time.Duration `json:"sync_interval"`
	OffsetThreshold time.Duration `json:"offset_threshold"` // 判定不健康的偏移阈值

	// 回退与重试
	BackoffInitial time.Duration `json:"backoff_initial"`
	BackoffMax     time.Duration `json:"backoff_max"`
}

// Config 提供访问选项
type Config struct {
	options *ClockOptions
}

// New 创建配置：默认值 → 用户配置 → 环境变量覆盖
// 环境变量：
//
//	CLOCK_TYPE (system|ntp)
//	CLOCK_NTP_SERVER (如 time.google.com)
//	CLOCK_SYNC_INTERVAL_MS
//	CLOCK_OFFSET_THRESHOLD_MS
//	CLOCK_BACKOFF_INITIAL_MS
//	CLOCK_BACKOFF_MAX_MS
func New(userConfig *types.UserClockConfig) *Config {
	opts := &ClockOptions{
		Type:            defaultType,
		NTPServer:       defaultNTPServer,
		SyncInterval:    defaultSyncInterval,
		OffsetThreshold: defaultOffsetThreshold,
		BackoffInitial:  defaultBackoffInitial,
		BackoffMax:      defaultBackoffMax,
	}

	if userConfig != nil {
		if userConfig.Type != nil {
			opts.Type = *userConfig.Type
		}
		if userConfig.NTPServer != nil {
			opts.NTPServer = *userConfig.NTPServer
		}
		if userConfig.SyncIntervalMs != nil && *userConfig.SyncIntervalMs > 0 {
			opts.SyncInterval = time.Duration(*userConfig.SyncIntervalMs) * time.Millisecond
		}
		if userConfig.OffsetThresholdMs != nil && *userConfig.OffsetThresholdMs > 0 {
			opts.OffsetThreshold = time.Duration(*userConfig.OffsetThresholdMs) * time.Millisecond
		}
	}

	if v := os.Getenv("CLOCK_TYPE"); v != "" {
		opts.Type = v
	}
	if v := os.Getenv("CLOCK_NTP_SERVER"); v != "" {
		opts.NTPServer = v
	}
	envMillis("CLOCK_SYNC_INTERVAL_MS", &opts.SyncInterval)
	envMillis("CLOCK_OFFSET_THRESHOLD_MS", &opts.OffsetThreshold)
	envMillis("CLOCK_BACKOFF_INITIAL_MS", &opts.BackoffInitial)
	envMillis("CLOCK_BACKOFF_MAX_MS", &opts.BackoffMax)

	return &Config{options: opts}
}

func envMillis(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Millisecond
	}
}

func (c *Config) GetOptions() *ClockOptions { return c.options }
