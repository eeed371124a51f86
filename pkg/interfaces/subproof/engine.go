// Package subproof 定义隐私保护订阅证明引擎的公共接口
//
// 调用方（计费网关、API 层、验证服务）只依赖本接口，
// 具体实现位于 internal/core/subproof。
package subproof

import (
	"context"
	"time"

	"github.com/weisyn/subproof/pkg/types"
)

// Engine 订阅证明引擎
//
// 📋 **调用约定**：
//   - 策略性失败（过期、等级不足、证明无效）在 VerificationResult 中表达，不返回错误
//   - 返回的错误只携带订阅 ID 和原因，不含等级、金额、DID 或秘密
//   - 所有方法并发安全
type Engine interface {
	// CreateAnonymousSubscription 在支付完成后创建匿名订阅
	CreateAnonymousSubscription(did, externalBillingID string, tier types.SubscriptionTier, amount types.Amount, expiresAt time.Time) (*types.AnonymousSubscription, error)

	// GenerateSubscriptionProof 为订阅生成不低于 minTier 的证明
	// proofContext 只用于日志记账，不与证明绑定
	GenerateSubscriptionProof(ctx context.Context, subscriptionID string, minTier types.SubscriptionTier, proofContext string) (*types.SubscriptionProof, error)

	// GenerateSubscriptionProofAs 与 GenerateSubscriptionProof 相同，但同时断言调用方的 DID
	GenerateSubscriptionProofAs(ctx context.Context, subscriptionID, did string, minTier types.SubscriptionTier, proofContext string) (*types.SubscriptionProof, error)

	// VerifySubscriptionProof 验证证明；不访问订阅存储
	VerifySubscriptionProof(ctx context.Context, req *types.VerificationRequest) (*types.VerificationResult, error)

	// RotateDID 用不透明的授权材料轮换订阅 DID
	RotateDID(ctx context.Context, subscriptionID, oldDID, newDID string, rotationProof []byte) error

	// CleanupExpiredSubscriptions 删除所有已过期订阅，返回删除数量
	CleanupExpiredSubscriptions() int
}

// Lifecycle 引擎的附加管理能力
type Lifecycle interface {
	// RotationHistory 返回订阅的 DID 轮换记录
	RotationHistory(subscriptionID string) []types.RotationRecord

	// Revoke 显式删除订阅
	Revoke(subscriptionID string) error

	// StartCleanupLoop 启动周期清理，ctx 取消或引擎停止时退出
	StartCleanupLoop(ctx context.Context, interval time.Duration)

	// Stop 停止引擎
	Stop(ctx context.Context) error
}
