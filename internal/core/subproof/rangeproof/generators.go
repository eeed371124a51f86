// Package rangeproof 实现 secp256k1 上的 Pedersen 承诺与 Bulletproofs 范围证明
//
// 承诺形式 V = v·G + γ·H，G 为 secp256k1 基点，H 与向量生成元由
// hash-to-curve 派生，任何人都无法得知它们相对 G 的离散对数。
package rangeproof

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// generatorDomain 生成元派生域分隔标签
const generatorDomain = "subproof/pedersen/secp256k1/v1"

// MaxBits 支持的最大位宽
const MaxBits = 64

// ErrInvalidBitSize 位宽必须是 2 的幂且不超过 MaxBits
var ErrInvalidBitSize = errors.New("bit size must be a power of two in [1, 64]")

// Generators 范围证明公共参数
//
// 生成后不可变，可在多个 goroutine 间共享。
type Generators struct {
	N  int
	G  secp256k1.JacobianPoint   // 值基点
	H  secp256k1.JacobianPoint   // 盲化基点
	U  secp256k1.JacobianPoint   // 内积参数基点
	Gi []secp256k1.JacobianPoint // 向量基点
	Hi []secp256k1.JacobianPoint
}

// NewGenerators 派生 n 位范围证明的全部生成元（确定性）
func NewGenerators(n int) (*Generators, error) {
	if n <= 0 || n > MaxBits || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBitSize, n)
	}

	one := ScalarFromUint64(1)
	g := &Generators{
		N:  n,
		G:  BaseMul(&one),
		H:  hashToPoint("H", 0),
		U:  hashToPoint("U", 0),
		Gi: make([]secp256k1.JacobianPoint, n),
		Hi: make([]secp256k1.JacobianPoint, n),
	}
	for i := 0; i < n; i++ {
		g.Gi[i] = hashToPoint("Gi", uint32(i))
		g.Hi[i] = hashToPoint("Hi", uint32(i))
	}
	return g, nil
}

// Commit 计算 Pedersen 承诺 v·G + γ·H
func (g *Generators) Commit(v, gamma *secp256k1.ModNScalar) secp256k1.JacobianPoint {
	vg := Mul(v, &g.G)
	gh := Mul(gamma, &g.H)
	return Add(&vg, &gh)
}

// hashToPoint 尝试-递增法映射到曲线：把 sha256 摘要当作 x 坐标，
// 取偶数 y；不在曲线上时递增计数器重试。
func hashToPoint(label string, index uint32) secp256k1.JacobianPoint {
	var buf [4]byte
	for ctr := uint32(0); ; ctr++ {
		h := sha256.New()
		h.Write([]byte(generatorDomain))
		h.Write([]byte(label))
		binary.BigEndian.PutUint32(buf[:], index)
		h.Write(buf[:])
		binary.BigEndian.PutUint32(buf[:], ctr)
		h.Write(buf[:])

		candidate := append([]byte{secp256k1.PubKeyFormatCompressedEven}, h.Sum(nil)...)
		pk, err := secp256k1.ParsePubKey(candidate)
		if err != nil {
			continue
		}
		var p secp256k1.JacobianPoint
		pk.AsJacobian(&p)
		return p
	}
}
