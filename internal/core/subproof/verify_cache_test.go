package subproof

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/subproof/pkg/types"
)

func TestVerifyCache_CachesOutcome(t *testing.T) {
	vc, err := newVerifyCache(time.Minute, 8)
	require.NoError(t, err)
	defer vc.close()

	var calls atomic.Int32
	compute := func() (cryptoOutcome, error) {
		calls.Add(1)
		return cryptoOutcome{snarkOK: true, rangeOK: false}, nil
	}

	out, hit, err := vc.resolve("k", compute)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, cryptoOutcome{snarkOK: true}, out)

	out, hit, err = vc.resolve("k", compute)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, cryptoOutcome{snarkOK: true}, out)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, 1, vc.len())
}

func TestVerifyCache_ErrorsNotCached(t *testing.T) {
	vc, err := newVerifyCache(time.Minute, 8)
	require.NoError(t, err)
	defer vc.close()

	boom := errors.New("decode")
	_, _, err = vc.resolve("k", func() (cryptoOutcome, error) { return cryptoOutcome{}, boom })
	require.ErrorIs(t, err, boom)
	require.Zero(t, vc.len())
}

func TestVerifyCache_CollapsesConcurrentCalls(t *testing.T) {
	vc, err := newVerifyCache(0, 0)
	require.NoError(t, err)

	var calls atomic.Int32
	gate := make(chan struct{})
	compute := func() (cryptoOutcome, error) {
		calls.Add(1)
		<-gate
		return cryptoOutcome{snarkOK: true, rangeOK: true}, nil
	}

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			out, _, err := vc.resolve("same", compute)
			require.NoError(t, err)
			require.True(t, out.snarkOK && out.rangeOK)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.LessOrEqual(t, calls.Load(), int32(n))
	require.GreaterOrEqual(t, calls.Load(), int32(1))
	require.Zero(t, vc.len())
}

func TestProofCacheKey_CoversAllFields(t *testing.T) {
	base := &types.SubscriptionProof{
		ValidityProof: []byte{1, 2},
		TierProof:     []byte{3},
		Timestamp:     time.Unix(100, 0),
		ExpiresAt:     time.Unix(200, 0),
		MinTier:       types.TierBasic,
		Commitments: types.ProofCommitments{
			TierCommitment: []byte{4},
			DIDCommitment:  []byte{5},
			Nullifier:      []byte{6},
		},
	}
	k0 := proofCacheKey(base)

	mutations := []func(p *types.SubscriptionProof){
		func(p *types.SubscriptionProof) { p.ValidityProof = []byte{1} },
		func(p *types.SubscriptionProof) { p.TierProof = []byte{2, 3} },
		func(p *types.SubscriptionProof) { p.Timestamp = time.Unix(101, 0) },
		func(p *types.SubscriptionProof) { p.ExpiresAt = time.Unix(201, 0) },
		func(p *types.SubscriptionProof) { p.MinTier = types.TierPro },
		func(p *types.SubscriptionProof) { p.Commitments.TierCommitment = []byte{7} },
		func(p *types.SubscriptionProof) { p.Commitments.DIDCommitment = []byte{7} },
		func(p *types.SubscriptionProof) { p.Commitments.Nullifier = []byte{7} },
	}
	for i, mutate := range mutations {
		p := base.Clone()
		mutate(p)
		require.NotEqual(t, k0, proofCacheKey(p), "mutation %d", i)
	}
	require.Equal(t, k0, proofCacheKey(base.Clone()))
}
