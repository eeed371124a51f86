package types

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//                               金额
// ============================================================================

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		mantissa uint64
		scale    uint8
		value    string
	}{
		{"29.99", 2999, 2, "29.99"},
		{"0.5", 5, 1, "0.5"},
		{".05", 5, 2, "0.05"},
		{"100", 100, 0, "100"},
		{"+1.000", 1000, 3, "1.000"},
	}
	for _, tc := range cases {
		a, err := ParseAmount(tc.in, CurrencyUSD)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.mantissa, a.Mantissa, tc.in)
		assert.Equal(t, tc.scale, a.Scale, tc.in)
		assert.Equal(t, tc.value, a.Value(), tc.in)
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	_, err := ParseAmount("-1", CurrencyUSD)
	require.ErrorIs(t, err, ErrNegativeAmount)

	for _, in := range []string{"", "1.", "1,5", "abc", "1.0000000000000000001", "99999999999999999999"} {
		_, err := ParseAmount(in, CurrencyUSD)
		require.ErrorIs(t, err, ErrMalformedAmount, in)
	}

	_, err = ParseAmount("1", Currency{})
	require.ErrorIs(t, err, ErrMalformedAmount)
}

func TestAmount_JSON(t *testing.T) {
	a := MustParseAmount("29.99", CurrencyEUR)
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":{"kind":"fiat","code":"EUR"},"value":"29.99"}`, string(data))

	var back Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a, back)

	require.Error(t, json.Unmarshal([]byte(`{"currency":{"kind":"fiat","code":"EUR"},"value":"-3"}`), &back))
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "29.99 USD", MustParseAmount("29.99", CurrencyUSD).String())
	assert.Equal(t, "0.001 ETH", MustParseAmount("0.001", CurrencyETH).String())
	assert.False(t, MustParseAmount("0.00", CurrencyUSD).IsPositive())
}

func TestPaymentStatus(t *testing.T) {
	assert.True(t, PaymentStatusCompleted.IsActive())
	for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusRefunded, PaymentStatusCancelled} {
		assert.True(t, s.IsValid())
		assert.False(t, s.IsActive())
	}
	assert.False(t, PaymentStatus("chargeback").IsValid())
}

// ============================================================================
//                               等级与功能
// ============================================================================

func TestSubscriptionTier_Order(t *testing.T) {
	for i, a := range AllTiers {
		for j, b := range AllTiers {
			assert.Equal(t, i >= j, a.AtLeast(b), "%s vs %s", a, b)
		}
	}
	assert.False(t, SubscriptionTier(5).IsValid())
	assert.Equal(t, "tier(9)", SubscriptionTier(9).String())
}

func TestSubscriptionTier_Text(t *testing.T) {
	for _, tier := range AllTiers {
		parsed, err := ParseSubscriptionTier(" " + tier.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	tier, err := ParseSubscriptionTier("PREMIUM")
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)

	_, err = ParseSubscriptionTier("gold")
	require.Error(t, err)

	data, err := json.Marshal(struct {
		Tier SubscriptionTier `json:"tier"`
	}{TierPro})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"pro"}`, string(data))

	_, err = json.Marshal(SubscriptionTier(7))
	require.Error(t, err)
}

func TestFeaturesForTier(t *testing.T) {
	assert.Equal(t, []string{FeatureBasicAccess}, FeaturesForTier(TierFree))
	assert.Equal(t, []string{FeatureBasicAccess, FeaturePrioritySupport, FeatureAdvancedFeatures}, FeaturesForTier(TierBasic))
	assert.Equal(t, FeaturesForTier(TierBasic), FeaturesForTier(TierPremium))
	assert.Empty(t, FeaturesForTier(SubscriptionTier(200)))

	all := FeaturesForTier(TierEnterprise)
	assert.Len(t, all, 6)
	assert.Contains(t, all, FeatureCustomIntegrations)

	// 累积：高等级包含低等级全部功能
	for i := 1; i < len(AllTiers); i++ {
		lower := FeaturesForTier(AllTiers[i-1])
		higher := FeaturesForTier(AllTiers[i])
		assert.Subset(t, higher, lower)
	}
}

// ============================================================================
//                               私有数据
// ============================================================================

func TestPrivateData_NeverFormatted(t *testing.T) {
	sub := &AnonymousSubscription{
		ID:  "sub-1",
		DID: "did:key:alice",
		Private: PrivateSubscriptionData{
			ExternalBillingID: "pay_secret_123",
			Secrets: ProofSecrets{
				BlindingFactor: []byte("blinding-factor-bytes"),
			},
		},
	}

	for _, out := range []string{
		fmt.Sprintf("%v", sub.Private),
		fmt.Sprintf("%+v", sub.Private),
		fmt.Sprintf("%#v", sub.Private),
		fmt.Sprintf("%v", sub.Private.Secrets),
	} {
		assert.NotContains(t, out, "pay_secret_123")
		assert.NotContains(t, out, "blinding-factor-bytes")
	}

	data, err := json.Marshal(sub)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "pay_secret_123")
}

func TestAnonymousSubscription_CloneIsDeep(t *testing.T) {
	sub := &AnonymousSubscription{ID: "sub-1"}
	sub.Private.Secrets.BlindingFactor = []byte{1, 2, 3}

	c := sub.Clone()
	c.Private.Secrets.BlindingFactor[0] = 9
	assert.Equal(t, byte(1), sub.Private.Secrets.BlindingFactor[0])
}

func TestAnonymousSubscription_ExpirySecondResolution(t *testing.T) {
	expires := time.Unix(1_700_000_100, 0)
	sub := &AnonymousSubscription{Status: PaymentStatusCompleted, ExpiresAt: expires}

	assert.True(t, sub.IsActiveAt(expires.Add(-time.Second)))
	// 同一秒内视为已过期
	assert.True(t, sub.IsExpiredAt(expires.Add(500*time.Millisecond)))
	assert.True(t, sub.IsExpiredAt(expires))
	assert.False(t, sub.IsActiveAt(expires))
}

func TestSubscriptionProof_Clone(t *testing.T) {
	var nilProof *SubscriptionProof
	assert.Nil(t, nilProof.Clone())

	p := &SubscriptionProof{
		ValidityProof: []byte{1},
		Commitments:   ProofCommitments{Nullifier: []byte{2, 3}},
	}
	c := p.Clone()
	c.Commitments.Nullifier[0] = 7
	assert.Equal(t, byte(2), p.Commitments.Nullifier[0])
	assert.NotEmpty(t, p.Commitments.NullifierKey())
}
