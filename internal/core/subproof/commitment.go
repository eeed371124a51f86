package subproof

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/weisyn/subproof/internal/core/subproof/rangeproof"
	"github.com/weisyn/subproof/pkg/types"
)

// CommitmentEngine 计算等级承诺、DID 承诺与无效化值
//
// 📋 **公式**（G 为基点，H 为 Pedersen 盲化基点，b 为订阅盲化因子）：
//   - tierC     = tier·G + b·H
//   - didC      = d·G + b·H，d = FieldToScalar(HashToField(DID))
//   - nullifier = (d + tier + b)·G
//
// 对固定的订阅与秘密，三者完全确定；DID 轮换会改变 d，从而改变无效化值。
type CommitmentEngine struct {
	gens *rangeproof.Generators
}

// NewCommitmentEngine 创建承诺引擎
func NewCommitmentEngine(gens *rangeproof.Generators) *CommitmentEngine {
	return &CommitmentEngine{gens: gens}
}

// tierOpening 等级承诺的打开值，仅在证明生成期间存在于内存中
type tierOpening struct {
	tier     uint64
	blinding secp256k1.ModNScalar
	point    secp256k1.JacobianPoint
}

// Commit 计算订阅的三个承诺
func (e *CommitmentEngine) Commit(sub *types.AnonymousSubscription) (types.ProofCommitments, *tierOpening, error) {
	b, err := blindingScalar(sub.Private.Secrets.BlindingFactor)
	if err != nil {
		return types.ProofCommitments{}, nil, err
	}

	tier := rangeproof.ScalarFromUint64(uint64(sub.Tier))
	d := FieldToScalar(DIDField(sub.DID))

	tierC := e.gens.Commit(&tier, &b)
	didC := e.gens.Commit(&d, &b)

	var nk secp256k1.ModNScalar
	nk.Add2(&d, &tier).Add(&b)
	nullifier := rangeproof.BaseMul(&nk)

	out := types.ProofCommitments{}
	if out.TierCommitment, err = rangeproof.EncodePoint(&tierC); err != nil {
		return types.ProofCommitments{}, nil, WrapZKProofError("tier_commitment", err)
	}
	if out.DIDCommitment, err = rangeproof.EncodePoint(&didC); err != nil {
		return types.ProofCommitments{}, nil, WrapZKProofError("did_commitment", err)
	}
	if out.Nullifier, err = rangeproof.EncodePoint(&nullifier); err != nil {
		return types.ProofCommitments{}, nil, WrapZKProofError("nullifier", err)
	}

	return out, &tierOpening{tier: uint64(sub.Tier), blinding: b, point: tierC}, nil
}

// ShiftTierCommitment 计算 C - minTier·G，即承诺值 tier - minTier
func (e *CommitmentEngine) ShiftTierCommitment(tierC secp256k1.JacobianPoint, minTier types.SubscriptionTier) secp256k1.JacobianPoint {
	if minTier == 0 {
		return tierC
	}
	m := rangeproof.ScalarFromUint64(uint64(minTier))
	mG := rangeproof.BaseMul(&m)
	return rangeproof.Sub(&tierC, &mG)
}

// blindingScalar 把 32 字节盲化因子约化为非零标量
func blindingScalar(raw []byte) (secp256k1.ModNScalar, error) {
	var b secp256k1.ModNScalar
	if len(raw) != types.BlindingFactorSize {
		return b, WrapZKProofError("blinding_factor", nil)
	}
	b.SetByteSlice(raw)
	if b.IsZero() {
		return b, WrapZKProofError("blinding_factor", nil)
	}
	return b, nil
}
