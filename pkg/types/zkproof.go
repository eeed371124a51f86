// Package types provides zero-knowledge proof type definitions.
package types

import (
	"time"

	"github.com/mr-tron/base58"
)

// CommitmentSize 压缩 secp256k1 点的字节长度
const CommitmentSize = 33

// ProofCommitments 证明承诺三元组
//
// 每个字段都是压缩的 secp256k1 曲线点，不含任何明文。
type ProofCommitments struct {
	TierCommitment []byte `json:"tier_commitment"`
	DIDCommitment  []byte `json:"did_commitment"`
	Nullifier      []byte `json:"nullifier"`
}

// Clone 深拷贝
func (c ProofCommitments) Clone() ProofCommitments {
	return ProofCommitments{
		TierCommitment: append([]byte(nil), c.TierCommitment...),
		DIDCommitment:  append([]byte(nil), c.DIDCommitment...),
		Nullifier:      append([]byte(nil), c.Nullifier...),
	}
}

// NullifierKey 返回无效化值的 base58 编码
//
// 引擎本身不记录已使用的无效化值，外部注册表可直接以此作为键。
func (c ProofCommitments) NullifierKey() string {
	return base58.Encode(c.Nullifier)
}

// SubscriptionProof 订阅证明
//
// 📋 **字段说明**：
//   - ValidityProof: Groth16 证明（gnark 规范压缩编码）
//   - TierProof: 等级范围证明（Bulletproofs，secp256k1）
//   - Timestamp: 生成时间，即电路公开输入 current_time（秒级）
//   - ExpiresAt: min(订阅到期时间, Timestamp + 证明有效期)
//   - MinTier: 证明所声明的最低等级
type SubscriptionProof struct {
	ValidityProof []byte           `json:"validity_proof"`
	TierProof     []byte           `json:"tier_proof"`
	Timestamp     time.Time        `json:"timestamp"`
	ExpiresAt     time.Time        `json:"expires_at"`
	MinTier       SubscriptionTier `json:"min_tier"`
	Commitments   ProofCommitments `json:"commitments"`
}

// Clone 深拷贝
func (p *SubscriptionProof) Clone() *SubscriptionProof {
	if p == nil {
		return nil
	}
	c := *p
	c.ValidityProof = append([]byte(nil), p.ValidityProof...)
	c.TierProof = append([]byte(nil), p.TierProof...)
	c.Commitments = p.Commitments.Clone()
	return &c
}

// VerificationRequest 验证请求
//
// Context 仅用于调用方记账，不与证明做密码学绑定。
type VerificationRequest struct {
	Proof    *SubscriptionProof `json:"proof"`
	MinTier  SubscriptionTier   `json:"min_tier"`
	Features []string           `json:"features,omitempty"`
	Context  string             `json:"context,omitempty"`
}

// VerificationResult 验证结果
//
// IsValid 与 TierSufficient 相互独立：为较低等级生成的有效证明，
// 在更高等级要求下返回 IsValid=true、TierSufficient=false。
type VerificationResult struct {
	IsValid         bool              `json:"is_valid"`
	TierSufficient  bool              `json:"tier_sufficient"`
	ExpiresAt       time.Time         `json:"expires_at"`
	AllowedFeatures []string          `json:"allowed_features"`
	Metadata        map[string]string `json:"metadata"`
}

// 功能标识
const (
	FeatureBasicAccess        = "basic_access"
	FeaturePrioritySupport    = "priority_support"
	FeatureAdvancedFeatures   = "advanced_features"
	FeatureAPIAccess          = "api_access"
	FeatureEnterpriseFeatures = "enterprise_features"
	FeatureCustomIntegrations = "custom_integrations"
)

// tierFeatures 每个等级新增的功能
var tierFeatures = map[SubscriptionTier][]string{
	TierFree:       {FeatureBasicAccess},
	TierBasic:      {FeaturePrioritySupport, FeatureAdvancedFeatures},
	TierPro:        {FeatureAPIAccess},
	TierEnterprise: {FeatureEnterpriseFeatures, FeatureCustomIntegrations},
}

// FeaturesForTier 返回某等级可用的全部功能（累积低等级功能）；
// 未知等级返回空列表
func FeaturesForTier(tier SubscriptionTier) []string {
	features := make([]string, 0, 8)
	if !tier.IsValid() {
		return features
	}
	for _, t := range AllTiers {
		if t > tier {
			break
		}
		features = append(features, tierFeatures[t]...)
	}
	return features
}
