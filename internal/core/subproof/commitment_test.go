package subproof

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/subproof/internal/core/subproof/rangeproof"
	"github.com/weisyn/subproof/internal/core/subproof/testutil"
	"github.com/weisyn/subproof/pkg/types"
)

func testCommitmentEngine(t *testing.T) *CommitmentEngine {
	t.Helper()
	gens, err := rangeproof.NewGenerators(RangeBits)
	require.NoError(t, err)
	return NewCommitmentEngine(gens)
}

// ============================================================================
//                               承诺
// ============================================================================

func TestCommit_Deterministic(t *testing.T) {
	ce := testCommitmentEngine(t)
	s := NewSubscriptionStore(4)
	now := testutil.NewTestTime()
	sub, err := s.Create(validParams(now), now)
	require.NoError(t, err)

	c1, o1, err := ce.Commit(sub)
	require.NoError(t, err)
	c2, _, err := ce.Commit(sub)
	require.NoError(t, err)

	require.Equal(t, c1, c2)
	require.Equal(t, uint64(types.TierPremium), o1.tier)

	// 打开值与等级承诺一致：tier·G + b·H
	tier := rangeproof.ScalarFromUint64(o1.tier)
	expected := ce.gens.Commit(&tier, &o1.blinding)
	require.True(t, rangeproof.PointsEqual(&expected, &o1.point))
}

func TestCommit_NullifierFormula(t *testing.T) {
	ce := testCommitmentEngine(t)
	s := NewSubscriptionStore(4)
	now := testutil.NewTestTime()
	sub, err := s.Create(validParams(now), now)
	require.NoError(t, err)

	c, opening, err := ce.Commit(sub)
	require.NoError(t, err)

	d := FieldToScalar(DIDField(sub.DID))
	tier := rangeproof.ScalarFromUint64(uint64(sub.Tier))
	var k secp256k1.ModNScalar
	k.Add2(&d, &tier).Add(&opening.blinding)
	n := rangeproof.BaseMul(&k)
	encoded, err := rangeproof.EncodePoint(&n)
	require.NoError(t, err)
	require.Equal(t, encoded, c.Nullifier)
}

func TestCommit_NullifierUniqueness(t *testing.T) {
	ce := testCommitmentEngine(t)
	s := NewSubscriptionStore(16)
	now := testutil.NewTestTime()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		p := validParams(now)
		p.DID = fmt.Sprintf("did:key:user-%d", i%10)
		p.Tier = types.AllTiers[i%len(types.AllTiers)]
		sub, err := s.Create(p, now)
		require.NoError(t, err)

		c, _, err := ce.Commit(sub)
		require.NoError(t, err)
		key := c.NullifierKey()
		_, dup := seen[key]
		require.False(t, dup, "duplicate nullifier at %d", i)
		seen[key] = struct{}{}
	}
	require.Len(t, seen, 100)
}

func TestCommit_DIDChangesNullifierOnly(t *testing.T) {
	ce := testCommitmentEngine(t)
	s := NewSubscriptionStore(4)
	now := testutil.NewTestTime()
	sub, err := s.Create(validParams(now), now)
	require.NoError(t, err)

	before, _, err := ce.Commit(sub)
	require.NoError(t, err)
	sub.DID = "did:key:rotated"
	after, _, err := ce.Commit(sub)
	require.NoError(t, err)

	require.Equal(t, before.TierCommitment, after.TierCommitment)
	require.NotEqual(t, before.DIDCommitment, after.DIDCommitment)
	require.NotEqual(t, before.Nullifier, after.Nullifier)
}

func TestCommit_RejectsBadBlinding(t *testing.T) {
	ce := testCommitmentEngine(t)
	sub := &types.AnonymousSubscription{
		DID:       "did:key:alice",
		Tier:      types.TierBasic,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	sub.Private.Secrets.BlindingFactor = make([]byte, 16)
	_, _, err := ce.Commit(sub)
	require.ErrorIs(t, err, ErrZKProof)

	sub.Private.Secrets.BlindingFactor = make([]byte, types.BlindingFactorSize)
	_, _, err = ce.Commit(sub)
	require.ErrorIs(t, err, ErrZKProof)
}

func TestShiftTierCommitment(t *testing.T) {
	ce := testCommitmentEngine(t)

	var b secp256k1.ModNScalar
	b.SetInt(12345)
	for _, tier := range types.AllTiers {
		for _, minTier := range types.AllTiers {
			if minTier > tier {
				continue
			}
			v := rangeproof.ScalarFromUint64(uint64(tier))
			c := ce.gens.Commit(&v, &b)
			shifted := ce.ShiftTierCommitment(c, minTier)

			diff := rangeproof.ScalarFromUint64(uint64(tier - minTier))
			expected := ce.gens.Commit(&diff, &b)
			require.True(t, rangeproof.PointsEqual(&expected, &shifted), "tier=%s min=%s", tier, minTier)
		}
	}
}

// ============================================================================
//                               双曲线桥接
// ============================================================================

func TestHashToField_DomainSeparated(t *testing.T) {
	a := HashToField(domainDID, []byte("x"))
	b := HashToField(domainExternalID, []byte("x"))
	require.False(t, a.Equal(&b))

	again := HashToField(domainDID, []byte("x"))
	require.True(t, a.Equal(&again))
}

func TestFieldScalarRoundTrip(t *testing.T) {
	for _, did := range []string{"did:key:a", "did:web:example.com", ""} {
		e := DIDField(did)
		s := FieldToScalar(e)
		back, err := ScalarToField(s)
		require.NoError(t, err)
		require.True(t, e.Equal(&back))
	}

	var top fr.Element
	top.SetBigInt(new(big.Int).Sub(fr.Modulus(), big.NewInt(1)))
	back, err := ScalarToField(FieldToScalar(top))
	require.NoError(t, err)
	require.True(t, top.Equal(&back))
}

func TestScalarToField_RejectsOutOfField(t *testing.T) {
	var s secp256k1.ModNScalar
	r := fr.Modulus().Bytes()
	var buf [32]byte
	copy(buf[32-len(r):], r)
	s.SetBytes(&buf)

	_, err := ScalarToField(s)
	require.ErrorIs(t, err, ErrScalarNotInField)
}

func TestCommitmentDigest_SensitiveToEveryField(t *testing.T) {
	base := types.ProofCommitments{
		TierCommitment: make([]byte, types.CommitmentSize),
		DIDCommitment:  make([]byte, types.CommitmentSize),
		Nullifier:      make([]byte, types.CommitmentSize),
	}
	d0 := CommitmentDigest(base)

	for i := 0; i < 3; i++ {
		c := base.Clone()
		switch i {
		case 0:
			c.TierCommitment[5] = 1
		case 1:
			c.DIDCommitment[5] = 1
		case 2:
			c.Nullifier[5] = 1
		}
		d := CommitmentDigest(c)
		require.False(t, d0.Equal(&d), "field %d", i)
	}
}
