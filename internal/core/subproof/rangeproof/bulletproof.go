package rangeproof

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrValueOutOfRange 待证明的值不在 [0, 2^n) 内
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrInvalidRangeProof 范围证明校验失败
	ErrInvalidRangeProof = errors.New("invalid range proof")
)

// RangeProof Bulletproofs 范围证明
//
// 序列化布局：A|S|T1|T2|τx|μ|t̂|(L|R)×log2(n)|a|b
type RangeProof struct {
	A, S, T1, T2   secp256k1.JacobianPoint
	TauX, Mu, THat secp256k1.ModNScalar
	L, R           []secp256k1.JacobianPoint
	EndA, EndB     secp256k1.ModNScalar
}

// ProofSize 返回 n 位证明的序列化长度
func ProofSize(n int) int {
	rounds := bits.Len(uint(n)) - 1
	return 4*PointSize + 3*ScalarSize + 2*rounds*PointSize + 2*ScalarSize
}

// ============================================================================
//                              标量向量运算
// ============================================================================

func sAdd(a, b *secp256k1.ModNScalar) secp256k1.ModNScalar {
	var r secp256k1.ModNScalar
	r.Add2(a, b)
	return r
}

func sMul(a, b *secp256k1.ModNScalar) secp256k1.ModNScalar {
	var r secp256k1.ModNScalar
	r.Mul2(a, b)
	return r
}

func sSub(a, b *secp256k1.ModNScalar) secp256k1.ModNScalar {
	var nb secp256k1.ModNScalar
	nb.NegateVal(b)
	return sAdd(a, &nb)
}

func sInv(a *secp256k1.ModNScalar) secp256k1.ModNScalar {
	var r secp256k1.ModNScalar
	r.InverseValNonConst(a)
	return r
}

func innerProduct(a, b []secp256k1.ModNScalar) secp256k1.ModNScalar {
	var acc secp256k1.ModNScalar
	for i := range a {
		term := sMul(&a[i], &b[i])
		acc.Add(&term)
	}
	return acc
}

// powers 返回 [1, x, x², ..., x^(n-1)]
func powers(x *secp256k1.ModNScalar, n int) []secp256k1.ModNScalar {
	out := make([]secp256k1.ModNScalar, n)
	out[0] = ScalarFromUint64(1)
	for i := 1; i < n; i++ {
		out[i] = sMul(&out[i-1], x)
	}
	return out
}

func sumScalars(v []secp256k1.ModNScalar) secp256k1.ModNScalar {
	var acc secp256k1.ModNScalar
	for i := range v {
		acc.Add(&v[i])
	}
	return acc
}

// ============================================================================
//                              证明生成
// ============================================================================

// Prove 证明承诺 v·G + γ·H 中的 v 落在 [0, 2^n)
//
// 内部盲化标量（α, ρ, sL, sR, τ1, τ2）每次调用都重新采样，
// 同一承诺的两次证明不可关联。
func Prove(gens *Generators, v uint64, gamma *secp256k1.ModNScalar) (*RangeProof, error) {
	n := gens.N
	if n < 64 && v>>uint(n) != 0 {
		return nil, fmt.Errorf("%w: %d bits", ErrValueOutOfRange, n)
	}

	vs := ScalarFromUint64(v)
	commitment := gens.Commit(&vs, gamma)

	one := ScalarFromUint64(1)
	aL := make([]secp256k1.ModNScalar, n)
	aR := make([]secp256k1.ModNScalar, n)
	for i := 0; i < n; i++ {
		if (v>>uint(i))&1 == 1 {
			aL[i] = one
		}
		aR[i] = sSub(&aL[i], &one)
	}

	alpha, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	rho, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	sL, err := randomVector(n)
	if err != nil {
		return nil, err
	}
	sR, err := randomVector(n)
	if err != nil {
		return nil, err
	}

	// A = α·H + <aL, Gi> + <aR, Hi>
	A := vectorCommit(gens, &alpha, aL, aR)
	// S = ρ·H + <sL, Gi> + <sR, Hi>
	S := vectorCommit(gens, &rho, sL, sR)

	tr := newTranscript("range")
	tr.appendUint64("n", uint64(n))
	tr.appendPoint("V", &commitment)
	tr.appendPoint("A", &A)
	tr.appendPoint("S", &S)
	y := tr.challenge("y")
	z := tr.challenge("z")

	yn := powers(&y, n)
	two := ScalarFromUint64(2)
	twoN := powers(&two, n)
	zz := sMul(&z, &z)

	// l(X) = (aL - z) + sL·X
	// r(X) = yⁿ∘(aR + z + sR·X) + z²·2ⁿ
	l0 := make([]secp256k1.ModNScalar, n)
	r0 := make([]secp256k1.ModNScalar, n)
	r1 := make([]secp256k1.ModNScalar, n)
	for i := 0; i < n; i++ {
		l0[i] = sSub(&aL[i], &z)
		arz := sAdd(&aR[i], &z)
		yArz := sMul(&yn[i], &arz)
		zz2 := sMul(&zz, &twoN[i])
		r0[i] = sAdd(&yArz, &zz2)
		r1[i] = sMul(&yn[i], &sR[i])
	}

	ip1 := innerProduct(l0, r1)
	ip2 := innerProduct(sL, r0)
	t1 := sAdd(&ip1, &ip2)
	t2 := innerProduct(sL, r1)

	tau1, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	tau2, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	T1 := gens.Commit(&t1, &tau1)
	T2 := gens.Commit(&t2, &tau2)

	tr.appendPoint("T1", &T1)
	tr.appendPoint("T2", &T2)
	x := tr.challenge("x")
	xx := sMul(&x, &x)

	l := make([]secp256k1.ModNScalar, n)
	r := make([]secp256k1.ModNScalar, n)
	for i := 0; i < n; i++ {
		slx := sMul(&sL[i], &x)
		l[i] = sAdd(&l0[i], &slx)
		r1x := sMul(&r1[i], &x)
		r[i] = sAdd(&r0[i], &r1x)
	}
	tHat := innerProduct(l, r)

	// τx = τ2·x² + τ1·x + z²·γ
	tau2xx := sMul(&tau2, &xx)
	tau1x := sMul(&tau1, &x)
	zzGamma := sMul(&zz, gamma)
	taux := sAdd(&tau2xx, &tau1x)
	taux.Add(&zzGamma)

	// μ = α + ρ·x
	rhox := sMul(&rho, &x)
	mu := sAdd(&alpha, &rhox)

	tr.appendScalar("taux", &taux)
	tr.appendScalar("mu", &mu)
	tr.appendScalar("that", &tHat)
	w := tr.challenge("w")
	Q := Mul(&w, &gens.U)

	hPrime := scaledH(gens, &y)
	proof := &RangeProof{
		A: A, S: S, T1: T1, T2: T2,
		TauX: taux, Mu: mu, THat: tHat,
	}
	proof.L, proof.R, proof.EndA, proof.EndB = proveInnerProduct(tr, &Q, cloneVector(gens.Gi), hPrime, l, r)
	return proof, nil
}

// proveInnerProduct 对 P = <a,G> + <b,H> + <a,b>·Q 做对数轮折叠
func proveInnerProduct(
	tr *transcript,
	Q *secp256k1.JacobianPoint,
	G, H []secp256k1.JacobianPoint,
	a, b []secp256k1.ModNScalar,
) (Ls, Rs []secp256k1.JacobianPoint, endA, endB secp256k1.ModNScalar) {
	for len(a) > 1 {
		half := len(a) / 2
		aLo, aHi := a[:half], a[half:]
		bLo, bHi := b[:half], b[half:]
		gLo, gHi := G[:half], G[half:]
		hLo, hHi := H[:half], H[half:]

		cL := innerProduct(aLo, bHi)
		cR := innerProduct(aHi, bLo)

		// L = <a_lo, G_hi> + <b_hi, H_lo> + cL·Q
		L1 := multiExp(aLo, gHi)
		L2 := multiExp(bHi, hLo)
		L3 := Mul(&cL, Q)
		L := Add(&L1, &L2)
		L = Add(&L, &L3)

		// R = <a_hi, G_lo> + <b_lo, H_hi> + cR·Q
		R1 := multiExp(aHi, gLo)
		R2 := multiExp(bLo, hHi)
		R3 := Mul(&cR, Q)
		R := Add(&R1, &R2)
		R = Add(&R, &R3)

		Ls = append(Ls, L)
		Rs = append(Rs, R)
		tr.appendPoint("L", &L)
		tr.appendPoint("R", &R)
		e := tr.challenge("e")
		eInv := sInv(&e)

		nextA := make([]secp256k1.ModNScalar, half)
		nextB := make([]secp256k1.ModNScalar, half)
		for i := 0; i < half; i++ {
			x1 := sMul(&aLo[i], &e)
			x2 := sMul(&aHi[i], &eInv)
			nextA[i] = sAdd(&x1, &x2)
			y1 := sMul(&bLo[i], &eInv)
			y2 := sMul(&bHi[i], &e)
			nextB[i] = sAdd(&y1, &y2)
		}
		G, H = foldGenerators(gLo, gHi, hLo, hHi, &e, &eInv)
		a, b = nextA, nextB
	}
	return Ls, Rs, a[0], b[0]
}

// foldGenerators G' = G_lo·e⁻¹ + G_hi·e，H' = H_lo·e + H_hi·e⁻¹
func foldGenerators(gLo, gHi, hLo, hHi []secp256k1.JacobianPoint, e, eInv *secp256k1.ModNScalar) (G, H []secp256k1.JacobianPoint) {
	half := len(gLo)
	G = make([]secp256k1.JacobianPoint, half)
	H = make([]secp256k1.JacobianPoint, half)
	for i := 0; i < half; i++ {
		g1 := Mul(eInv, &gLo[i])
		g2 := Mul(e, &gHi[i])
		G[i] = Add(&g1, &g2)
		h1 := Mul(e, &hLo[i])
		h2 := Mul(eInv, &hHi[i])
		H[i] = Add(&h1, &h2)
	}
	return G, H
}

// ============================================================================
//                              证明验证
// ============================================================================

// Verify 校验 proof 证明了 commitment 中的值落在 [0, 2^n)
func Verify(gens *Generators, commitment *secp256k1.JacobianPoint, proof *RangeProof) error {
	n := gens.N
	rounds := bits.Len(uint(n)) - 1
	if proof == nil || len(proof.L) != rounds || len(proof.R) != rounds {
		return fmt.Errorf("%w: round count", ErrInvalidRangeProof)
	}
	if IsInfinity(commitment) {
		return fmt.Errorf("%w: %v", ErrInvalidRangeProof, ErrPointAtInfinity)
	}

	tr := newTranscript("range")
	tr.appendUint64("n", uint64(n))
	tr.appendPoint("V", commitment)
	tr.appendPoint("A", &proof.A)
	tr.appendPoint("S", &proof.S)
	y := tr.challenge("y")
	z := tr.challenge("z")
	tr.appendPoint("T1", &proof.T1)
	tr.appendPoint("T2", &proof.T2)
	x := tr.challenge("x")
	tr.appendScalar("taux", &proof.TauX)
	tr.appendScalar("mu", &proof.Mu)
	tr.appendScalar("that", &proof.THat)
	w := tr.challenge("w")
	Q := Mul(&w, &gens.U)

	yn := powers(&y, n)
	two := ScalarFromUint64(2)
	twoN := powers(&two, n)
	zz := sMul(&z, &z)
	zzz := sMul(&zz, &z)
	xx := sMul(&x, &x)

	// 检查1: t̂·G + τx·H == z²·V + δ(y,z)·G + x·T1 + x²·T2
	// δ(y,z) = (z - z²)·Σyⁱ - z³·Σ2ⁱ
	sumY := sumScalars(yn)
	sum2 := sumScalars(twoN)
	zMinusZZ := sSub(&z, &zz)
	d1 := sMul(&zMinusZZ, &sumY)
	d2 := sMul(&zzz, &sum2)
	delta := sSub(&d1, &d2)

	lhs := gens.Commit(&proof.THat, &proof.TauX)
	zzV := Mul(&zz, commitment)
	deltaG := Mul(&delta, &gens.G)
	xT1 := Mul(&x, &proof.T1)
	xxT2 := Mul(&xx, &proof.T2)
	rhs := Add(&zzV, &deltaG)
	rhs = Add(&rhs, &xT1)
	rhs = Add(&rhs, &xxT2)
	if !PointsEqual(&lhs, &rhs) {
		return fmt.Errorf("%w: polynomial check", ErrInvalidRangeProof)
	}

	// 检查2: P = A + x·S - z·ΣGi + Σ(z·yⁱ + z²·2ⁱ)·h'ᵢ - μ·H + t̂·Q
	hPrime := scaledH(gens, &y)
	xS := Mul(&x, &proof.S)
	P := Add(&proof.A, &xS)

	var negZ secp256k1.ModNScalar
	negZ.NegateVal(&z)
	for i := 0; i < n; i++ {
		gTerm := Mul(&negZ, &gens.Gi[i])
		P = Add(&P, &gTerm)

		zy := sMul(&z, &yn[i])
		zz2 := sMul(&zz, &twoN[i])
		coeff := sAdd(&zy, &zz2)
		hTerm := Mul(&coeff, &hPrime[i])
		P = Add(&P, &hTerm)
	}
	muH := Mul(&proof.Mu, &gens.H)
	P = Sub(&P, &muH)
	tQ := Mul(&proof.THat, &Q)
	P = Add(&P, &tQ)

	// 内积参数折叠：P' = e²·L + P + e⁻²·R
	G := cloneVector(gens.Gi)
	H := hPrime
	for round := 0; round < rounds; round++ {
		tr.appendPoint("L", &proof.L[round])
		tr.appendPoint("R", &proof.R[round])
		e := tr.challenge("e")
		eInv := sInv(&e)
		ee := sMul(&e, &e)
		eeInv := sMul(&eInv, &eInv)

		eeL := Mul(&ee, &proof.L[round])
		eeR := Mul(&eeInv, &proof.R[round])
		P = Add(&P, &eeL)
		P = Add(&P, &eeR)

		half := len(G) / 2
		G, H = foldGenerators(G[:half], G[half:], H[:half], H[half:], &e, &eInv)
	}

	// 最终检查: P' == a·G + b·H + (a·b)·Q
	ab := sMul(&proof.EndA, &proof.EndB)
	aG := Mul(&proof.EndA, &G[0])
	bH := Mul(&proof.EndB, &H[0])
	abQ := Mul(&ab, &Q)
	expected := Add(&aG, &bH)
	expected = Add(&expected, &abQ)
	if !PointsEqual(&P, &expected) {
		return fmt.Errorf("%w: inner product check", ErrInvalidRangeProof)
	}
	return nil
}

// ============================================================================
//                              序列化
// ============================================================================

// Bytes 序列化证明
func (p *RangeProof) Bytes() ([]byte, error) {
	out := make([]byte, 0, 4*PointSize+5*ScalarSize+2*len(p.L)*PointSize)
	for _, pt := range []*secp256k1.JacobianPoint{&p.A, &p.S, &p.T1, &p.T2} {
		enc, err := EncodePoint(pt)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	for _, s := range []*secp256k1.ModNScalar{&p.TauX, &p.Mu, &p.THat} {
		out = append(out, EncodeScalar(s)...)
	}
	for i := range p.L {
		for _, pt := range []*secp256k1.JacobianPoint{&p.L[i], &p.R[i]} {
			enc, err := EncodePoint(pt)
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
	}
	out = append(out, EncodeScalar(&p.EndA)...)
	out = append(out, EncodeScalar(&p.EndB)...)
	return out, nil
}

// ParseRangeProof 解析 n 位证明；长度不符、点不在曲线上或标量未约化时报错
func ParseRangeProof(b []byte, n int) (*RangeProof, error) {
	if n <= 0 || n > MaxBits || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBitSize, n)
	}
	if len(b) != ProofSize(n) {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidRangeProof, len(b), ProofSize(n))
	}

	r := &reader{buf: b}
	p := &RangeProof{}
	for _, pt := range []*secp256k1.JacobianPoint{&p.A, &p.S, &p.T1, &p.T2} {
		*pt = r.point()
	}
	for _, s := range []*secp256k1.ModNScalar{&p.TauX, &p.Mu, &p.THat} {
		*s = r.scalar()
	}
	rounds := bits.Len(uint(n)) - 1
	p.L = make([]secp256k1.JacobianPoint, rounds)
	p.R = make([]secp256k1.JacobianPoint, rounds)
	for i := 0; i < rounds; i++ {
		p.L[i] = r.point()
		p.R[i] = r.point()
	}
	p.EndA = r.scalar()
	p.EndB = r.scalar()
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRangeProof, r.err)
	}
	return p, nil
}

// reader 顺序解码，遇到第一个错误后停止
type reader struct {
	buf []byte
	err error
}

func (r *reader) point() secp256k1.JacobianPoint {
	if r.err != nil {
		return secp256k1.JacobianPoint{}
	}
	p, err := DecodePoint(r.buf[:PointSize])
	r.buf = r.buf[PointSize:]
	r.err = err
	return p
}

func (r *reader) scalar() secp256k1.ModNScalar {
	if r.err != nil {
		return secp256k1.ModNScalar{}
	}
	s, err := DecodeScalar(r.buf[:ScalarSize])
	r.buf = r.buf[ScalarSize:]
	r.err = err
	return s
}

// ============================================================================
//                              辅助函数
// ============================================================================

func randomVector(n int) ([]secp256k1.ModNScalar, error) {
	out := make([]secp256k1.ModNScalar, n)
	for i := range out {
		s, err := RandomScalar()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func vectorCommit(gens *Generators, blind *secp256k1.ModNScalar, a, b []secp256k1.ModNScalar) secp256k1.JacobianPoint {
	acc := Mul(blind, &gens.H)
	ga := multiExp(a, gens.Gi)
	hb := multiExp(b, gens.Hi)
	acc = Add(&acc, &ga)
	return Add(&acc, &hb)
}

// scaledH 返回 h'ᵢ = y⁻ⁱ·Hᵢ
func scaledH(gens *Generators, y *secp256k1.ModNScalar) []secp256k1.JacobianPoint {
	yInv := sInv(y)
	yInvN := powers(&yInv, gens.N)
	out := make([]secp256k1.JacobianPoint, gens.N)
	for i := range out {
		out[i] = Mul(&yInvN[i], &gens.Hi[i])
	}
	return out
}

func cloneVector(v []secp256k1.JacobianPoint) []secp256k1.JacobianPoint {
	return append([]secp256k1.JacobianPoint(nil), v...)
}
