// Package circuits 定义订阅证明使用的 gnark 电路
package circuits

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	nativemimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// 位宽约束
const (
	TimeBits   = 64 // unix 秒
	AmountBits = 64 // 金额尾数
	TierBits   = 8  // 订阅等级
)

// SubscriptionCircuit 订阅有效性电路
//
// 🎯 **验证目标**：证明者持有一个在 CurrentTime 仍有效、等级不低于 MinTier、
// 金额为正的订阅，且该订阅与三个承诺（摘要为 CommitmentDigest）绑定。
//
// 📋 **公开输入**：CurrentTime, MinTier, ProofExpiry, CommitmentDigest
// 📋 **私有输入**：Amount, Tier, Expiry, DIDHash, ExternalIDHash, Binding
type SubscriptionCircuit struct {
	// 公开输入
	CurrentTime      frontend.Variable `gnark:",public"`
	MinTier          frontend.Variable `gnark:",public"`
	ProofExpiry      frontend.Variable `gnark:",public"`
	CommitmentDigest frontend.Variable `gnark:",public"`

	// 私有输入
	Amount         frontend.Variable
	Tier           frontend.Variable
	Expiry         frontend.Variable
	DIDHash        frontend.Variable
	ExternalIDHash frontend.Variable
	Binding        frontend.Variable
}

// Define 定义电路约束
//
// 比较统一写成"差值落在 n 位内"：差值为负时在域上回绕成巨大元素，位分解失败。
func (c *SubscriptionCircuit) Define(api frontend.API) error {
	// 约束1: 位宽
	api.ToBinary(c.CurrentTime, TimeBits)
	api.ToBinary(c.ProofExpiry, TimeBits)
	api.ToBinary(c.Expiry, TimeBits)
	api.ToBinary(c.Amount, AmountBits)
	api.ToBinary(c.Tier, TierBits)
	api.ToBinary(c.MinTier, TierBits)

	// 约束2: Expiry > CurrentTime
	api.ToBinary(api.Sub(c.Expiry, c.CurrentTime, 1), TimeBits)

	// 约束3: CurrentTime < ProofExpiry <= Expiry
	api.ToBinary(api.Sub(c.ProofExpiry, c.CurrentTime, 1), TimeBits)
	api.ToBinary(api.Sub(c.Expiry, c.ProofExpiry), TimeBits)

	// 约束4: Tier >= MinTier
	api.ToBinary(api.Sub(c.Tier, c.MinTier), TierBits)

	// 约束5: Amount > 0
	api.ToBinary(api.Sub(c.Amount, 1), AmountBits)

	// 约束6: 身份绑定 Binding = MiMC(DIDHash, ExternalIDHash, CommitmentDigest)
	api.AssertIsDifferent(c.DIDHash, 0)
	api.AssertIsDifferent(c.ExternalIDHash, 0)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("创建MiMC哈希器失败: %w", err)
	}
	h.Write(c.DIDHash, c.ExternalIDHash, c.CommitmentDigest)
	api.AssertIsEqual(h.Sum(), c.Binding)

	return nil
}

// ComputeBinding 在电路外计算与约束6一致的绑定值
func ComputeBinding(didHash, externalIDHash, commitmentDigest fr.Element) (fr.Element, error) {
	h := nativemimc.NewMiMC()
	for _, e := range []fr.Element{didHash, externalIDHash, commitmentDigest} {
		b := e.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return fr.Element{}, fmt.Errorf("MiMC写入失败: %w", err)
		}
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out, nil
}
