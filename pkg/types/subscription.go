package types

import (
	"fmt"
	"strings"
	"time"
)

// SubscriptionTier 订阅等级
//
// 全序：Free < Basic < Premium < Pro < Enterprise。
// 数值同时作为 SNARK 见证和范围证明的承诺值使用，必须保持在 8 位以内。
type SubscriptionTier uint8

const (
	TierFree       SubscriptionTier = 0
	TierBasic      SubscriptionTier = 1
	TierPremium    SubscriptionTier = 2
	TierPro        SubscriptionTier = 3
	TierEnterprise SubscriptionTier = 4
)

// AllTiers 按升序排列的全部等级
var AllTiers = []SubscriptionTier{TierFree, TierBasic, TierPremium, TierPro, TierEnterprise}

var tierNames = map[SubscriptionTier]string{
	TierFree:       "free",
	TierBasic:      "basic",
	TierPremium:    "premium",
	TierPro:        "pro",
	TierEnterprise: "enterprise",
}

// String 返回等级名称
func (t SubscriptionTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// IsValid 验证等级是否为已知枚举值
func (t SubscriptionTier) IsValid() bool {
	return t <= TierEnterprise
}

// AtLeast 判断等级是否不低于 min
func (t SubscriptionTier) AtLeast(min SubscriptionTier) bool {
	return t >= min
}

// ParseSubscriptionTier 从名称解析等级（大小写不敏感）
func ParseSubscriptionTier(s string) (SubscriptionTier, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == needle {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown subscription tier %q", s)
}

// MarshalText 实现 encoding.TextMarshaler
func (t SubscriptionTier) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("unknown subscription tier %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (t *SubscriptionTier) UnmarshalText(data []byte) error {
	parsed, err := ParseSubscriptionTier(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ============================================================================
//                               订阅记录
// ============================================================================

// 证明秘密长度
const (
	BlindingFactorSize = 32
	ProofWitnessSize   = 64
	DIDKeySize         = 32
)

// ProofSecrets 证明秘密
//
// 订阅创建时一次性从 crypto/rand 生成，此后不再重新计算。
// 盲化因子同时用于等级承诺、DID 承诺和无效化值。
type ProofSecrets struct {
	BlindingFactor []byte `json:"-"`
	Witness        []byte `json:"-"`
	DIDKey         []byte `json:"-"`
}

// Clone 深拷贝
func (s ProofSecrets) Clone() ProofSecrets {
	return ProofSecrets{
		BlindingFactor: append([]byte(nil), s.BlindingFactor...),
		Witness:        append([]byte(nil), s.Witness...),
		DIDKey:         append([]byte(nil), s.DIDKey...),
	}
}

// String 永不输出秘密内容
func (s ProofSecrets) String() string {
	return "ProofSecrets{redacted}"
}

// GoString 永不输出秘密内容（%#v）
func (s ProofSecrets) GoString() string {
	return s.String()
}

// PrivateSubscriptionData 订阅私有数据
//
// ⚠️ 外部计费标识只用于内部对账，不会进入任何证明或序列化输出。
type PrivateSubscriptionData struct {
	ExternalBillingID        string       `json:"-"`
	PaymentMethodFingerprint string       `json:"-"`
	Secrets                  ProofSecrets `json:"-"`
}

// Clone 深拷贝
func (p PrivateSubscriptionData) Clone() PrivateSubscriptionData {
	return PrivateSubscriptionData{
		ExternalBillingID:        p.ExternalBillingID,
		PaymentMethodFingerprint: p.PaymentMethodFingerprint,
		Secrets:                  p.Secrets.Clone(),
	}
}

// String 永不输出私有内容
func (p PrivateSubscriptionData) String() string {
	return "PrivateSubscriptionData{redacted}"
}

// GoString 永不输出私有内容（%#v）
func (p PrivateSubscriptionData) GoString() string {
	return p.String()
}

// AnonymousSubscription 匿名订阅
//
// 📋 **不变量**：
//   - ExpiresAt > CreatedAt（秒级精度）
//   - ID 随机生成，与外部计费标识统计独立
//   - 创建后只有 DID 可以通过轮换修改
type AnonymousSubscription struct {
	ID        string                  `json:"id"`
	DID       string                  `json:"did"`
	Tier      SubscriptionTier        `json:"tier"`
	Amount    Amount                  `json:"amount"`
	Status    PaymentStatus           `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	ExpiresAt time.Time               `json:"expires_at"`
	Private   PrivateSubscriptionData `json:"-"`
}

// Clone 深拷贝，供存储层在锁外返回
func (s *AnonymousSubscription) Clone() *AnonymousSubscription {
	if s == nil {
		return nil
	}
	c := *s
	c.Private = s.Private.Clone()
	return &c
}

// IsExpiredAt 以秒级精度判断订阅在 now 时是否已过期（now >= expires_at）
func (s *AnonymousSubscription) IsExpiredAt(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt.Unix()
}

// IsActiveAt 订阅在 now 时是否有效
func (s *AnonymousSubscription) IsActiveAt(now time.Time) bool {
	return s.Status.IsActive() && !s.IsExpiredAt(now)
}

// RotationRecord DID 轮换记录
type RotationRecord struct {
	OldDID    string    `json:"old_did"`
	NewDID    string    `json:"new_did"`
	RotatedAt time.Time `json:"rotated_at"`
}
