package subproof

import (
	"bytes"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/weisyn/subproof/internal/core/subproof/circuits"
	"github.com/weisyn/subproof/internal/core/subproof/rangeproof"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/subproof/pkg/types"
)

// Prover 订阅证明生成器
//
// 🎯 **专门职责**：见证组装、Groth16 证明、等级范围证明与承诺计算。
// 不访问存储，调用方传入订阅快照。
type Prover struct {
	km            *KeyMaterial
	commitments   *CommitmentEngine
	proofValidity time.Duration
	logger        log.Logger
}

// NewProver 创建证明生成器
func NewProver(km *KeyMaterial, commitments *CommitmentEngine, proofValidity time.Duration, logger log.Logger) *Prover {
	return &Prover{
		km:            km,
		commitments:   commitments,
		proofValidity: proofValidity,
		logger:        logger,
	}
}

// Prove 为订阅生成不低于 minTier 的证明
//
// 失败原因只通过错误类型表达，不携带等级、金额等私有值。
func (p *Prover) Prove(sub *types.AnonymousSubscription, minTier types.SubscriptionTier, now time.Time) (*types.SubscriptionProof, error) {
	if sub.IsExpiredAt(now) {
		return nil, WrapSubscriptionExpiredError(sub.ID)
	}
	if !minTier.IsValid() {
		return nil, WrapZKProofError("min_tier", nil)
	}
	// 提前拒绝不可满足的见证，避免一次注定失败的 Groth16 求解
	if !sub.Tier.AtLeast(minTier) || !sub.Amount.IsPositive() {
		return nil, WrapZKProofError("witness", nil)
	}

	commitments, opening, err := p.commitments.Commit(sub)
	if err != nil {
		return nil, err
	}

	nowUnix := now.Unix()
	expiry := nowUnix + int64(p.proofValidity/time.Second)
	if subExpiry := sub.ExpiresAt.Unix(); subExpiry < expiry {
		expiry = subExpiry
	}

	validityProof, err := p.proveValidity(sub, minTier, nowUnix, expiry, commitments)
	if err != nil {
		return nil, err
	}

	tierProof, err := p.proveTier(opening, minTier)
	if err != nil {
		return nil, err
	}

	p.logger.Debugf("证明生成完成: id=%s, snark=%dB, range=%dB", sub.ID, len(validityProof), len(tierProof))

	return &types.SubscriptionProof{
		ValidityProof: validityProof,
		TierProof:     tierProof,
		Timestamp:     time.Unix(nowUnix, 0).UTC(),
		ExpiresAt:     time.Unix(expiry, 0).UTC(),
		MinTier:       minTier,
		Commitments:   commitments,
	}, nil
}

// proveValidity 组装见证并生成压缩编码的 Groth16 证明
func (p *Prover) proveValidity(
	sub *types.AnonymousSubscription,
	minTier types.SubscriptionTier,
	nowUnix, expiry int64,
	commitments types.ProofCommitments,
) ([]byte, error) {
	didHash := DIDField(sub.DID)
	extHash := ExternalIDField(sub.Private.ExternalBillingID)
	digest := CommitmentDigest(commitments)
	binding, err := circuits.ComputeBinding(didHash, extHash, digest)
	if err != nil {
		return nil, WrapZKProofError("binding", err)
	}

	assignment := circuits.SubscriptionCircuit{
		CurrentTime:      nowUnix,
		MinTier:          uint64(minTier),
		ProofExpiry:      expiry,
		CommitmentDigest: fieldToBig(digest),
		Amount:           sub.Amount.Mantissa,
		Tier:             uint64(sub.Tier),
		Expiry:           sub.ExpiresAt.Unix(),
		DIDHash:          fieldToBig(didHash),
		ExternalIDHash:   fieldToBig(extHash),
		Binding:          fieldToBig(binding),
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, WrapZKProofError("witness", nil)
	}

	proof, err := groth16.Prove(p.km.cs, p.km.pk, witness)
	if err != nil {
		// gnark 的错误文本可能包含见证值，不向外传递
		return nil, WrapZKProofError("prove", nil)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, WrapZKProofError("encode_validity_proof", err)
	}
	return buf.Bytes(), nil
}

// proveTier 对承诺 C - minTier·G 证明 tier - minTier ∈ [0, 2^8)
func (p *Prover) proveTier(opening *tierOpening, minTier types.SubscriptionTier) ([]byte, error) {
	proof, err := rangeproof.Prove(p.km.gens, opening.tier-uint64(minTier), &opening.blinding)
	if err != nil {
		return nil, WrapZKProofError("range_proof", nil)
	}
	raw, err := proof.Bytes()
	if err != nil {
		return nil, WrapZKProofError("encode_range_proof", err)
	}
	return raw, nil
}
