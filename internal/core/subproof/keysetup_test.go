package subproof

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/subproof/internal/core/subproof/testutil"
	"github.com/weisyn/subproof/pkg/types"
)

// ============================================================================
//                               可信设置
// ============================================================================

func TestKeyMaterial_Basics(t *testing.T) {
	km := testKeyMaterial(t)

	require.Greater(t, km.NbConstraints(), 0)
	require.Len(t, km.VerifyingKeyHash(), 64)
	require.Equal(t, RangeBits, km.Generators().N)
}

func TestKeyMaterial_SaveLoad(t *testing.T) {
	km := testKeyMaterial(t)
	dir := filepath.Join(t.TempDir(), "setup")

	require.NoError(t, km.Save(dir))
	for _, name := range []string{constraintSystemFile, provingKeyFile, verifyingKeyFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
	// 不残留临时文件
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	loaded, err := LoadKeyMaterial(dir, testutil.NewTestLogger())
	require.NoError(t, err)
	require.Equal(t, km.VerifyingKeyHash(), loaded.VerifyingKeyHash())
	require.Equal(t, km.NbConstraints(), loaded.NbConstraints())

	// 原密钥生成的证明可由加载的密钥验证，反之亦然
	now := testutil.NewTestTime()
	store := NewSubscriptionStore(4)
	sub, err := store.Create(validParams(now), now)
	require.NoError(t, err)

	for _, pair := range [][2]*KeyMaterial{{km, loaded}, {loaded, km}} {
		prover := NewProver(pair[0], NewCommitmentEngine(pair[0].Generators()), time.Hour, testutil.NewTestLogger())
		cache, err := newVerifyCache(0, 0)
		require.NoError(t, err)
		validator := NewValidator(pair[1], NewCommitmentEngine(pair[1].Generators()), cache, time.Hour, 30*time.Second, testutil.NewTestLogger())

		proof, err := prover.Prove(sub, types.TierBasic, now)
		require.NoError(t, err)
		result, err := validator.Verify(&types.VerificationRequest{Proof: proof, MinTier: types.TierBasic}, now)
		require.NoError(t, err)
		require.True(t, result.IsValid)
		require.True(t, result.TierSufficient)
	}
}

func TestLoadOrCreateKeyMaterial_LoadsExisting(t *testing.T) {
	km := testKeyMaterial(t)
	dir := t.TempDir()
	require.NoError(t, km.Save(dir))

	got, err := LoadOrCreateKeyMaterial(dir, testutil.NewTestLogger())
	require.NoError(t, err)
	require.Equal(t, km.VerifyingKeyHash(), got.VerifyingKeyHash())
}

func TestLoadOrCreateKeyMaterial_CreatesAndPersists(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping trusted setup in short mode")
	}
	dir := filepath.Join(t.TempDir(), "fresh")

	created, err := LoadOrCreateKeyMaterial(dir, testutil.NewTestLogger())
	require.NoError(t, err)
	require.True(t, hasKeyFiles(dir))

	again, err := LoadOrCreateKeyMaterial(dir, testutil.NewTestLogger())
	require.NoError(t, err)
	require.Equal(t, created.VerifyingKeyHash(), again.VerifyingKeyHash())
}

func TestLoadKeyMaterial_MissingFiles(t *testing.T) {
	_, err := LoadKeyMaterial(t.TempDir(), testutil.NewTestLogger())
	require.ErrorIs(t, err, ErrZKProof)
}

func TestLoadKeyMaterial_CorruptFile(t *testing.T) {
	km := testKeyMaterial(t)
	dir := t.TempDir()
	require.NoError(t, km.Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, verifyingKeyFile), []byte("garbage"), 0o600))

	_, err := LoadKeyMaterial(dir, testutil.NewTestLogger())
	require.ErrorIs(t, err, ErrZKProof)
}
