package rangeproof

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// 编码长度
const (
	PointSize  = 33 // 压缩点
	ScalarSize = 32 // 大端标量
)

var (
	// ErrPointAtInfinity 无穷远点没有压缩编码
	ErrPointAtInfinity = errors.New("point at infinity")
	// ErrMalformedPoint 点编码非法（长度、前缀或不在曲线上）
	ErrMalformedPoint = errors.New("malformed curve point")
	// ErrMalformedScalar 标量编码非法（长度或超出群阶）
	ErrMalformedScalar = errors.New("malformed scalar")
)

// IsInfinity 判断是否为无穷远点
func IsInfinity(p *secp256k1.JacobianPoint) bool {
	z := p.Z
	z.Normalize()
	if z.IsZero() {
		return true
	}
	x, y := p.X, p.Y
	x.Normalize()
	y.Normalize()
	return x.IsZero() && y.IsZero()
}

// EncodePoint 返回 33 字节压缩编码
func EncodePoint(p *secp256k1.JacobianPoint) ([]byte, error) {
	if IsInfinity(p) {
		return nil, ErrPointAtInfinity
	}
	affine := *p
	affine.ToAffine()
	return secp256k1.NewPublicKey(&affine.X, &affine.Y).SerializeCompressed(), nil
}

// DecodePoint 解析 33 字节压缩编码
func DecodePoint(b []byte) (secp256k1.JacobianPoint, error) {
	var p secp256k1.JacobianPoint
	if len(b) != PointSize {
		return p, fmt.Errorf("%w: length %d", ErrMalformedPoint, len(b))
	}
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedPoint, err)
	}
	pk.AsJacobian(&p)
	return p, nil
}

// PointsEqual 比较两个点（与坐标表示无关）
func PointsEqual(a, b *secp256k1.JacobianPoint) bool {
	ai, bi := IsInfinity(a), IsInfinity(b)
	if ai || bi {
		return ai == bi
	}
	pa, pb := *a, *b
	pa.ToAffine()
	pb.ToAffine()
	return pa.X.Equals(&pb.X) && pa.Y.Equals(&pb.Y)
}

// EncodeScalar 返回 32 字节大端编码
func EncodeScalar(s *secp256k1.ModNScalar) []byte {
	b := s.Bytes()
	return b[:]
}

// DecodeScalar 解析 32 字节大端编码，拒绝不小于群阶的值
func DecodeScalar(b []byte) (secp256k1.ModNScalar, error) {
	var s secp256k1.ModNScalar
	if len(b) != ScalarSize {
		return s, fmt.Errorf("%w: length %d", ErrMalformedScalar, len(b))
	}
	if overflow := s.SetByteSlice(b); overflow {
		return s, fmt.Errorf("%w: not reduced", ErrMalformedScalar)
	}
	return s, nil
}

// ScalarFromUint64 把 64 位整数嵌入标量域
func ScalarFromUint64(v uint64) secp256k1.ModNScalar {
	var buf [ScalarSize]byte
	binary.BigEndian.PutUint64(buf[ScalarSize-8:], v)
	var s secp256k1.ModNScalar
	s.SetBytes(&buf)
	return s
}

// RandomScalar 从 crypto/rand 采样非零标量
func RandomScalar() (secp256k1.ModNScalar, error) {
	var buf [ScalarSize]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return secp256k1.ModNScalar{}, fmt.Errorf("读取随机数失败: %w", err)
		}
		var s secp256k1.ModNScalar
		if overflow := s.SetByteSlice(buf[:]); overflow || s.IsZero() {
			continue
		}
		return s, nil
	}
}

// ============================================================================
//                              点运算
// ============================================================================

// Mul 计算 k·P
func Mul(k *secp256k1.ModNScalar, p *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var r secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(k, p, &r)
	return r
}

// BaseMul 计算 k·G
func BaseMul(k *secp256k1.ModNScalar) secp256k1.JacobianPoint {
	var r secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &r)
	return r
}

// Add 计算 P + Q
func Add(p, q *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var r secp256k1.JacobianPoint
	secp256k1.AddNonConst(p, q, &r)
	return r
}

// Sub 计算 P - Q
func Sub(p, q *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	neg := *q
	neg.Y.Normalize()
	neg.Y.Negate(1).Normalize()
	return Add(p, &neg)
}

// multiExp 计算 Σ s_i·P_i
func multiExp(scalars []secp256k1.ModNScalar, points []secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var acc secp256k1.JacobianPoint
	for i := range scalars {
		term := Mul(&scalars[i], &points[i])
		acc = Add(&acc, &term)
	}
	return acc
}
