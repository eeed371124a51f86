package subproof

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/weisyn/subproof/internal/core/subproof/circuits"
	"github.com/weisyn/subproof/internal/core/subproof/rangeproof"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/subproof/pkg/types"
)

// 验证结果元数据键
const (
	MetaError          = "error"
	MetaDeniedFeatures = "denied_features"
	MetaCache          = "cache"
	MetaVerifyingKey   = "vk"
)

// 验证失败原因
const (
	ReasonProofExpired     = "proof_expired"
	ReasonValidityWindow   = "validity_window"
	ReasonInvalidValidity  = "invalid_validity_proof"
	ReasonInvalidTierProof = "invalid_tier_proof"
	ReasonInsufficientTier = "insufficient_tier"
)

// Validator 订阅证明验证器
//
// 🎯 **专门职责**：Groth16 验证、等级范围证明验证、过期与等级判断、功能表。
// 不访问订阅存储，验证方只需要 KeyMaterial。
type Validator struct {
	km            *KeyMaterial
	commitments   *CommitmentEngine
	cache         *verifyCache
	proofValidity time.Duration
	clockSkew     time.Duration
	logger        log.Logger
}

// NewValidator 创建验证器
func NewValidator(
	km *KeyMaterial,
	commitments *CommitmentEngine,
	cache *verifyCache,
	proofValidity, clockSkew time.Duration,
	logger log.Logger,
) *Validator {
	return &Validator{
		km:            km,
		commitments:   commitments,
		cache:         cache,
		proofValidity: proofValidity,
		clockSkew:     clockSkew,
		logger:        logger,
	}
}

// Verify 验证请求
//
// 策略失败（过期、等级不足、证明无效）通过结果表达；只有请求为空或
// Groth16 证明字节无法解析时返回错误。
func (v *Validator) Verify(req *types.VerificationRequest, now time.Time) (*types.VerificationResult, error) {
	if req == nil || req.Proof == nil {
		return nil, WrapInvalidProofError("missing proof")
	}
	if !req.MinTier.IsValid() {
		return nil, WrapInvalidProofError(fmt.Sprintf("unknown min tier %s", req.MinTier))
	}
	proof := req.Proof

	allowed := types.FeaturesForTier(req.MinTier)
	result := &types.VerificationResult{
		ExpiresAt:       proof.ExpiresAt,
		AllowedFeatures: allowed,
		Metadata: map[string]string{
			MetaVerifyingKey: v.km.vkHash[:16],
		},
	}
	if denied := deniedFeatures(req.Features, allowed); denied != "" {
		result.Metadata[MetaDeniedFeatures] = denied
	}

	nowUnix := now.Unix()
	if proof.ExpiresAt.Unix() < nowUnix {
		result.Metadata[MetaError] = ReasonProofExpired
		return result, nil
	}
	window := proof.ExpiresAt.Unix() - proof.Timestamp.Unix()
	if window <= 0 || window > int64(v.proofValidity/time.Second) ||
		proof.Timestamp.Unix() > nowUnix+int64(v.clockSkew/time.Second) {
		result.Metadata[MetaError] = ReasonValidityWindow
		return result, nil
	}

	outcome, hit, err := v.cache.resolve(proofCacheKey(proof), func() (cryptoOutcome, error) {
		return v.verifyCrypto(proof)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		result.Metadata[MetaCache] = "hit"
	} else {
		result.Metadata[MetaCache] = "miss"
	}

	result.IsValid = outcome.snarkOK && outcome.rangeOK
	result.TierSufficient = outcome.rangeOK && proof.MinTier >= req.MinTier

	switch {
	case !outcome.snarkOK:
		result.Metadata[MetaError] = ReasonInvalidValidity
	case !outcome.rangeOK:
		result.Metadata[MetaError] = ReasonInvalidTierProof
	case !result.TierSufficient:
		result.Metadata[MetaError] = ReasonInsufficientTier
	}
	return result, nil
}

// verifyCrypto 执行两项密码学校验
func (v *Validator) verifyCrypto(proof *types.SubscriptionProof) (cryptoOutcome, error) {
	snarkOK, err := v.verifyValidity(proof)
	if err != nil {
		return cryptoOutcome{}, err
	}
	return cryptoOutcome{
		snarkOK: snarkOK,
		rangeOK: v.verifyTier(proof),
	}, nil
}

// verifyValidity 反序列化失败返回错误，配对校验失败返回 false
func (v *Validator) verifyValidity(proof *types.SubscriptionProof) (bool, error) {
	if !proof.MinTier.IsValid() {
		return false, nil
	}

	snark := groth16.NewProof(ecc.BN254)
	if _, err := snark.ReadFrom(bytes.NewReader(proof.ValidityProof)); err != nil {
		return false, WrapZKProofError("decode_validity_proof", err)
	}

	assignment := circuits.SubscriptionCircuit{
		CurrentTime:      proof.Timestamp.Unix(),
		MinTier:          uint64(proof.MinTier),
		ProofExpiry:      proof.ExpiresAt.Unix(),
		CommitmentDigest: fieldToBig(CommitmentDigest(proof.Commitments)),
	}
	publicWitness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, nil
	}

	if err := groth16.Verify(snark, v.km.vk, publicWitness); err != nil {
		v.logger.Debugf("Groth16 校验失败: %v", err)
		return false, nil
	}
	return true, nil
}

// verifyTier 对 C - MinTier·G 校验范围证明；任何解析失败都视为 false
func (v *Validator) verifyTier(proof *types.SubscriptionProof) bool {
	tierC, err := rangeproof.DecodePoint(proof.Commitments.TierCommitment)
	if err != nil {
		return false
	}
	rp, err := rangeproof.ParseRangeProof(proof.TierProof, RangeBits)
	if err != nil {
		return false
	}
	shifted := v.commitments.ShiftTierCommitment(tierC, proof.MinTier)
	if rangeproof.IsInfinity(&shifted) {
		return false
	}
	if err := rangeproof.Verify(v.km.gens, &shifted, rp); err != nil {
		v.logger.Debugf("等级范围证明校验失败: %v", err)
		return false
	}
	return true
}

// deniedFeatures 请求中不在允许列表内的功能（排序后逗号分隔）
func deniedFeatures(requested, allowed []string) string {
	if len(requested) == 0 {
		return ""
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = struct{}{}
	}
	var denied []string
	seen := make(map[string]struct{})
	for _, f := range requested {
		if _, ok := allowedSet[f]; ok {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		denied = append(denied, f)
	}
	sort.Strings(denied)
	return strings.Join(denied, ",")
}
