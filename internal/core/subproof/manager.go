package subproof

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	subproofconfig "github.com/weisyn/subproof/internal/config/subproof"
	logimpl "github.com/weisyn/subproof/internal/core/infrastructure/log"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	subproofInterface "github.com/weisyn/subproof/pkg/interfaces/subproof"
	"github.com/weisyn/subproof/pkg/types"
)

// Engine 订阅证明引擎门面
//
// 🎯 **核心职责**：
// - 组合存储、证明生成、验证、DID 轮换与清理
// - 证明生成在有界工作池上执行，验证在调用方协程执行
// - 所有时间都来自注入的 Clock
type Engine struct {
	opts      *subproofconfig.SubproofOptions
	km        *KeyMaterial
	store     *SubscriptionStore
	prover    *Prover
	validator *Validator
	rotator   *DIDRotator
	pool      *ProofWorkerPool
	cache     *verifyCache

	clock  clock.Clock
	bus    event.EventBus
	logger log.Logger

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	loops    sync.WaitGroup
}

// NewEngine 创建引擎
//
// km 不能为 nil；bus 可以为 nil；logger 为 nil 时使用空日志器。
func NewEngine(
	km *KeyMaterial,
	opts *subproofconfig.SubproofOptions,
	clk clock.Clock,
	bus event.EventBus,
	logger log.Logger,
) (*Engine, error) {
	if km == nil {
		return nil, errKeyMaterialMissing
	}
	if logger == nil {
		logger = logimpl.NewNop()
	}

	cache, err := newVerifyCache(opts.VerifyCacheLife, opts.VerifyCacheMaxMB)
	if err != nil {
		return nil, err
	}

	commitments := NewCommitmentEngine(km.Generators())
	store := NewSubscriptionStore(opts.StoreShards)

	e := &Engine{
		opts:      opts,
		km:        km,
		store:     store,
		prover:    NewProver(km, commitments, opts.ProofValidity, logger),
		validator: NewValidator(km, commitments, cache, opts.ProofValidity, opts.ClockSkew, logger),
		rotator:   NewDIDRotator(store),
		pool:      NewProofWorkerPool(opts.ProofWorkers, opts.ProofQueueSize, logger),
		cache:     cache,
		clock:     clk,
		bus:       bus,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	logger.Infof("订阅证明引擎已初始化: constraints=%d, workers=%d, queue=%d, shards=%d",
		km.NbConstraints(), opts.ProofWorkers, opts.ProofQueueSize, opts.StoreShards)
	return e, nil
}

// ============================================================================
//                               订阅生命周期
// ============================================================================

// CreateAnonymousSubscription 创建匿名订阅
func (e *Engine) CreateAnonymousSubscription(
	did, externalBillingID string,
	tier types.SubscriptionTier,
	amount types.Amount,
	expiresAt time.Time,
) (*types.AnonymousSubscription, error) {
	return e.CreateSubscription(CreateParams{
		DID:               did,
		ExternalBillingID: externalBillingID,
		Tier:              tier,
		Amount:            amount,
		ExpiresAt:         expiresAt,
	})
}

// CreateSubscription 以完整参数创建订阅（可携带支付方式指纹）
func (e *Engine) CreateSubscription(params CreateParams) (*types.AnonymousSubscription, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	sub, err := e.store.Create(params, e.clock.Now())
	if err != nil {
		return nil, err
	}
	activeSubscriptions.Set(float64(e.store.Len()))
	e.logger.Debugf("订阅已创建: id=%s", sub.ID)
	e.publish(event.EventTypeSubscriptionCreated, sub.ID)
	return sub, nil
}

// Revoke 显式删除订阅
func (e *Engine) Revoke(subscriptionID string) error {
	if err := e.store.Revoke(subscriptionID); err != nil {
		return err
	}
	e.rotator.Forget(subscriptionID)
	activeSubscriptions.Set(float64(e.store.Len()))
	e.publish(event.EventTypeSubscriptionPurged, []string{subscriptionID})
	return nil
}

// ============================================================================
//                                 证明生成
// ============================================================================

// GenerateSubscriptionProof 生成订阅证明
func (e *Engine) GenerateSubscriptionProof(
	ctx context.Context,
	subscriptionID string,
	minTier types.SubscriptionTier,
	proofContext string,
) (*types.SubscriptionProof, error) {
	return e.generate(ctx, subscriptionID, "", false, minTier, proofContext)
}

// GenerateSubscriptionProofAs 生成证明并断言调用方 DID 与存储一致
//
// DID 轮换后持有旧 DID 的调用方在此处以 ErrDIDMismatch 失败。
func (e *Engine) GenerateSubscriptionProofAs(
	ctx context.Context,
	subscriptionID, did string,
	minTier types.SubscriptionTier,
	proofContext string,
) (*types.SubscriptionProof, error) {
	return e.generate(ctx, subscriptionID, did, true, minTier, proofContext)
}

func (e *Engine) generate(
	ctx context.Context,
	subscriptionID, did string,
	checkDID bool,
	minTier types.SubscriptionTier,
	proofContext string,
) (proof *types.SubscriptionProof, err error) {
	start := time.Now()
	defer func() { observeGeneration(start, err) }()

	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if err := ctxError(ctx, "generate"); err != nil {
		return nil, err
	}

	sub, err := e.store.Get(subscriptionID)
	if err != nil {
		return nil, err
	}
	if checkDID && sub.DID != did {
		return nil, WrapDIDMismatchError(subscriptionID)
	}
	now := e.clock.Now()
	if sub.IsExpiredAt(now) {
		return nil, WrapSubscriptionExpiredError(subscriptionID)
	}

	proof, err = e.pool.Submit(ctx, func() (*types.SubscriptionProof, error) {
		return e.prover.Prove(sub, minTier, now)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debugf("订阅证明已生成: id=%s, context=%s, elapsed=%s", subscriptionID, proofContext, time.Since(start))
	e.publish(event.EventTypeProofGenerated, subscriptionID, minTier)
	return proof, nil
}

// ============================================================================
//                                 证明验证
// ============================================================================

// VerifySubscriptionProof 验证订阅证明
func (e *Engine) VerifySubscriptionProof(ctx context.Context, req *types.VerificationRequest) (*types.VerificationResult, error) {
	start := time.Now()
	if err := ctxError(ctx, "verify"); err != nil {
		observeVerification(start, ErrorCode(err))
		return nil, err
	}

	result, err := e.validator.Verify(req, e.clock.Now())
	if err != nil {
		observeVerification(start, ErrorCode(err))
		return nil, err
	}

	observeVerification(start, verificationOutcome(result))
	if req.Context != "" {
		e.logger.Debugf("订阅证明已验证: context=%s, valid=%t, sufficient=%t", req.Context, result.IsValid, result.TierSufficient)
	}
	e.publish(event.EventTypeProofVerified, result.IsValid, result.TierSufficient)
	return result, nil
}

func verificationOutcome(r *types.VerificationResult) string {
	switch {
	case r.Metadata[MetaError] == ReasonProofExpired:
		return "expired"
	case !r.IsValid:
		return "invalid"
	case !r.TierSufficient:
		return "insufficient_tier"
	default:
		return "valid"
	}
}

// ============================================================================
//                                 DID 轮换
// ============================================================================

// RotateDID 轮换订阅 DID
func (e *Engine) RotateDID(ctx context.Context, subscriptionID, oldDID, newDID string, rotationProof []byte) error {
	if err := ctxError(ctx, "rotate_did"); err != nil {
		return err
	}
	if err := e.rotator.Rotate(subscriptionID, oldDID, newDID, rotationProof, e.clock.Now()); err != nil {
		return err
	}
	e.logger.Infof("订阅DID已轮换: id=%s", subscriptionID)
	e.publish(event.EventTypeSubscriptionRotated, subscriptionID)
	return nil
}

// RotationHistory 返回订阅的轮换记录
func (e *Engine) RotationHistory(subscriptionID string) []types.RotationRecord {
	return e.rotator.History(subscriptionID)
}

// ============================================================================
//                                  清理
// ============================================================================

// CleanupExpiredSubscriptions 删除所有已过期订阅
func (e *Engine) CleanupExpiredSubscriptions() int {
	purged := e.store.CleanupExpired(e.clock.Now())
	if len(purged) == 0 {
		return 0
	}
	e.rotator.Forget(purged...)
	recordPurged(len(purged))
	activeSubscriptions.Set(float64(e.store.Len()))
	e.logger.Infof("已清理过期订阅: count=%d", len(purged))
	e.publish(event.EventTypeSubscriptionPurged, purged)
	return len(purged)
}

// StartCleanupLoop 启动周期清理协程
//
// ctx 取消或引擎停止时退出；interval <= 0 时不启动。
func (e *Engine) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 || e.stopped.Load() {
		return
	}
	e.loops.Add(1)
	go func() {
		defer e.loops.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.CleanupExpiredSubscriptions()
			}
		}
	}()
}

// ============================================================================
//                                  状态
// ============================================================================

// Stop 停止引擎：拒绝新的生成请求，等待执行中的证明完成
func (e *Engine) Stop(ctx context.Context) error {
	var stopErr error
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		close(e.stopCh)
		stopErr = e.pool.Stop(ctx)
		e.loops.Wait()
		if err := e.cache.close(); err != nil && stopErr == nil {
			stopErr = err
		}
		stats := e.pool.GetStats()
		e.logger.Infof("订阅证明引擎已停止: processed=%v, errors=%v, timeouts=%v",
			stats["processed_count"], stats["error_count"], stats["timeout_count"])
	})
	return stopErr
}

// SubscriptionCount 当前存储中的订阅数
func (e *Engine) SubscriptionCount() int {
	return e.store.Len()
}

// KeyMaterial 返回共享的密钥材料（验证方可据此构造独立验证器）
func (e *Engine) KeyMaterial() *KeyMaterial {
	return e.km
}

// GetStats 获取引擎统计信息
func (e *Engine) GetStats() map[string]interface{} {
	stats := e.pool.GetStats()
	stats["subscriptions"] = e.store.Len()
	stats["verify_cache_entries"] = e.cache.len()
	stats["verifying_key"] = e.km.VerifyingKeyHash()
	return stats
}

var (
	_ subproofInterface.Engine    = (*Engine)(nil)
	_ subproofInterface.Lifecycle = (*Engine)(nil)
)
