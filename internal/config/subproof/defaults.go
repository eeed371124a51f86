// Package subproof 提供订阅证明引擎的配置与默认值
package subproof

import "time"

// 订阅证明引擎配置默认值
const (
	// defaultStoreShards 订阅存储分片数
	// 原因：64 个分片足以让不同订阅之间几乎不发生锁竞争
	defaultStoreShards = 64

	// defaultProofQueueMultiplier 任务队列长度 = 工作线程数 × 倍数
	defaultProofQueueMultiplier = 4

	// defaultVerifyCacheMaxMB 验证结果缓存上限（MB）
	defaultVerifyCacheMaxMB = 64

	// defaultVerifyCacheMemoryFraction 缓存最多占用系统内存的比例（1/N）
	defaultVerifyCacheMemoryFraction = 64
)

var (
	// defaultProofValidity 证明有效期
	// 原因：1 小时内验证方可以重复接受同一证明，超过后必须重新生成
	defaultProofValidity = time.Hour

	// defaultClockSkew 验证时容忍证明方时钟超前的幅度
	defaultClockSkew = 30 * time.Second

	// defaultVerifyCacheLife 验证结果缓存生命周期
	defaultVerifyCacheLife = 5 * time.Minute

	// defaultCleanupInterval 过期订阅清理周期
	defaultCleanupInterval = time.Minute
)
