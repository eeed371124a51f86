package subproof

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/weisyn/subproof/pkg/types"
)

// ============================================================================
//                          BN254 Fr ↔ secp256k1 标量
// ============================================================================
//
// SNARK 工作在 BN254 标量域 Fr（r ≈ 2^253.6），承诺工作在 secp256k1 群阶
// n ≈ 2^256 的标量域。r < n，因此 Fr 到 secp256k1 标量的自然嵌入是单射；
// 反方向只接受小于 r 的标量。所有跨域转换都走这里，禁止隐式转换。

// 哈希域分隔标签
const (
	domainDID        = "subproof/did"
	domainExternalID = "subproof/external-id"
	domainDigest     = "subproof/commitment-digest"
)

// ErrScalarNotInField secp256k1 标量超出 BN254 Fr
var ErrScalarNotInField = errors.New("scalar exceeds bn254 field")

// HashToField sha256(domain || 0x00 || data) 后模 r 约化
func HashToField(domain string, data []byte) fr.Element {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0})
	h.Write(data)
	var e fr.Element
	e.SetBytes(h.Sum(nil))
	return e
}

// FieldToScalar Fr 元素按规范大端编码嵌入 secp256k1 标量域
func FieldToScalar(e fr.Element) secp256k1.ModNScalar {
	b := e.Bytes()
	var s secp256k1.ModNScalar
	s.SetBytes(&b)
	return s
}

// ScalarToField secp256k1 标量转回 Fr，要求标量 < r
func ScalarToField(s secp256k1.ModNScalar) (fr.Element, error) {
	b := s.Bytes()
	v := new(big.Int).SetBytes(b[:])
	if v.Cmp(fr.Modulus()) >= 0 {
		return fr.Element{}, ErrScalarNotInField
	}
	var e fr.Element
	e.SetBigInt(v)
	return e, nil
}

// DIDField DID 在两个域中的共同表示
func DIDField(did string) fr.Element {
	return HashToField(domainDID, []byte(did))
}

// ExternalIDField 外部计费标识的 Fr 表示
func ExternalIDField(externalID string) fr.Element {
	return HashToField(domainExternalID, []byte(externalID))
}

// CommitmentDigest 三个承诺的摘要，作为电路公开输入
func CommitmentDigest(c types.ProofCommitments) fr.Element {
	h := sha256.New()
	h.Write([]byte(domainDigest))
	h.Write(c.TierCommitment)
	h.Write(c.DIDCommitment)
	h.Write(c.Nullifier)
	var e fr.Element
	e.SetBytes(h.Sum(nil))
	return e
}

// fieldToBig 供 gnark 见证赋值
func fieldToBig(e fr.Element) *big.Int {
	var b big.Int
	e.BigInt(&b)
	return &b
}
