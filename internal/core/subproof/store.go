package subproof

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weisyn/subproof/pkg/types"
)

// SubscriptionStore 分片的内存订阅注册表
//
// 分片由 UUID 的首个随机字节决定，不同订阅几乎不会竞争同一把锁。
// 记录只在分片锁内修改；Get 返回深拷贝，调用方可以在锁外自由使用。
type SubscriptionStore struct {
	shards []*storeShard
}

type storeShard struct {
	mu   sync.RWMutex
	subs map[string]*types.AnonymousSubscription
}

// NewSubscriptionStore 创建分片存储
func NewSubscriptionStore(shardCount int) *SubscriptionStore {
	if shardCount <= 0 {
		shardCount = 64
	}
	s := &SubscriptionStore{shards: make([]*storeShard, shardCount)}
	for i := range s.shards {
		s.shards[i] = &storeShard{subs: make(map[string]*types.AnonymousSubscription)}
	}
	return s
}

// shardFor 返回 id 所在分片；非法 id 返回 nil
func (s *SubscriptionStore) shardFor(id string) *storeShard {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return s.shards[int(u[0])%len(s.shards)]
}

// CreateParams 创建订阅参数
type CreateParams struct {
	DID                      string
	ExternalBillingID        string
	PaymentMethodFingerprint string
	Tier                     types.SubscriptionTier
	Amount                   types.Amount
	ExpiresAt                time.Time
}

// Create 校验参数、生成秘密并插入新订阅
func (s *SubscriptionStore) Create(params CreateParams, now time.Time) (*types.AnonymousSubscription, error) {
	if err := validateCreateParams(params, now); err != nil {
		return nil, err
	}

	secrets, err := newProofSecrets()
	if err != nil {
		return nil, err
	}

	createdAt := time.Unix(now.Unix(), 0).UTC()
	sub := &types.AnonymousSubscription{
		ID:        uuid.NewString(),
		DID:       params.DID,
		Tier:      params.Tier,
		Amount:    params.Amount,
		Status:    types.PaymentStatusCompleted,
		CreatedAt: createdAt,
		ExpiresAt: time.Unix(params.ExpiresAt.Unix(), 0).UTC(),
		Private: types.PrivateSubscriptionData{
			ExternalBillingID:        params.ExternalBillingID,
			PaymentMethodFingerprint: params.PaymentMethodFingerprint,
			Secrets:                  secrets,
		},
	}

	shard := s.shardFor(sub.ID)
	shard.mu.Lock()
	shard.subs[sub.ID] = sub
	shard.mu.Unlock()

	return sub.Clone(), nil
}

// Get 返回订阅深拷贝
func (s *SubscriptionStore) Get(id string) (*types.AnonymousSubscription, error) {
	shard := s.shardFor(id)
	if shard == nil {
		return nil, WrapSubscriptionNotFoundError(id)
	}
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	sub, ok := shard.subs[id]
	if !ok {
		return nil, WrapSubscriptionNotFoundError(id)
	}
	return sub.Clone(), nil
}

// UpdateDID 在分片写锁内完成 DID 比较与替换
//
// onSwapped 非空时在替换成功后、释放分片锁之前调用，
// 同一订阅的多次替换因此按提交顺序观察到。
func (s *SubscriptionStore) UpdateDID(id, oldDID, newDID string, onSwapped func()) error {
	shard := s.shardFor(id)
	if shard == nil {
		return WrapSubscriptionNotFoundError(id)
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()

	sub, ok := shard.subs[id]
	if !ok {
		return WrapSubscriptionNotFoundError(id)
	}
	if sub.DID != oldDID {
		return WrapDIDMismatchError(id)
	}
	sub.DID = newDID
	if onSwapped != nil {
		onSwapped()
	}
	return nil
}

// Revoke 显式删除订阅
func (s *SubscriptionStore) Revoke(id string) error {
	shard := s.shardFor(id)
	if shard == nil {
		return WrapSubscriptionNotFoundError(id)
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.subs[id]; !ok {
		return WrapSubscriptionNotFoundError(id)
	}
	delete(shard.subs, id)
	return nil
}

// CleanupExpired 逐分片删除 ExpiresAt <= now 的记录，返回删除的 ID
func (s *SubscriptionStore) CleanupExpired(now time.Time) []string {
	var purged []string
	nowUnix := now.Unix()
	for _, shard := range s.shards {
		shard.mu.Lock()
		for id, sub := range shard.subs {
			if sub.ExpiresAt.Unix() <= nowUnix {
				delete(shard.subs, id)
				purged = append(purged, id)
			}
		}
		shard.mu.Unlock()
	}
	return purged
}

// Len 当前订阅总数
func (s *SubscriptionStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.subs)
		shard.mu.RUnlock()
	}
	return total
}

// ============================================================================
//                              内部辅助
// ============================================================================

func validateCreateParams(p CreateParams, now time.Time) error {
	switch {
	case strings.TrimSpace(p.DID) == "":
		return WrapInvalidSubscriptionError("empty did")
	case strings.TrimSpace(p.ExternalBillingID) == "":
		return WrapInvalidSubscriptionError("empty external billing id")
	case !p.Tier.IsValid():
		return WrapInvalidSubscriptionError(fmt.Sprintf("unknown tier %d", uint8(p.Tier)))
	case !p.Amount.IsPositive():
		return WrapInvalidSubscriptionError("amount must be positive")
	case p.ExpiresAt.Unix() <= now.Unix():
		return WrapInvalidSubscriptionError("expires_at must be in the future")
	}
	return nil
}

func newProofSecrets() (types.ProofSecrets, error) {
	secrets := types.ProofSecrets{
		BlindingFactor: make([]byte, types.BlindingFactorSize),
		Witness:        make([]byte, types.ProofWitnessSize),
		DIDKey:         make([]byte, types.DIDKeySize),
	}
	for _, buf := range [][]byte{secrets.BlindingFactor, secrets.Witness, secrets.DIDKey} {
		if _, err := rand.Read(buf); err != nil {
			return types.ProofSecrets{}, fmt.Errorf("生成证明秘密失败: %w", err)
		}
	}
	// 盲化因子约化后必须非零（概率可忽略，但要保证）
	if _, err := blindingScalar(secrets.BlindingFactor); err != nil {
		return newProofSecrets()
	}
	return secrets, nil
}
