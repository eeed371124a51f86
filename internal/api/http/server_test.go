package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/subproof/internal/api/http/handlers"
	apitypes "github.com/weisyn/subproof/internal/api/types"
	apiconfig "github.com/weisyn/subproof/internal/config/api"
	"github.com/weisyn/subproof/internal/core/subproof"
	"github.com/weisyn/subproof/internal/core/subproof/testutil"
	"github.com/weisyn/subproof/pkg/types"
)

// ============================================================================
//                               测试替身
// ============================================================================

// fakeEngine 记录调用参数并返回预设结果
type fakeEngine struct {
	mu sync.Mutex

	sub       *types.AnonymousSubscription
	proof     *types.SubscriptionProof
	result    *types.VerificationResult
	err       error
	purged    int
	rotations []types.RotationRecord
	health    string

	lastDID     string
	lastMinTier types.SubscriptionTier
	asCalled    bool
	revoked     string
}

func (f *fakeEngine) CreateAnonymousSubscription(did, externalBillingID string, tier types.SubscriptionTier, amount types.Amount, expiresAt time.Time) (*types.AnonymousSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDID = did
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

func (f *fakeEngine) GenerateSubscriptionProof(ctx context.Context, subscriptionID string, minTier types.SubscriptionTier, proofContext string) (*types.SubscriptionProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMinTier = minTier
	if f.err != nil {
		return nil, f.err
	}
	return f.proof, nil
}

func (f *fakeEngine) GenerateSubscriptionProofAs(ctx context.Context, subscriptionID, did string, minTier types.SubscriptionTier, proofContext string) (*types.SubscriptionProof, error) {
	f.mu.Lock()
	f.asCalled = true
	f.lastDID = did
	f.mu.Unlock()
	return f.GenerateSubscriptionProof(ctx, subscriptionID, minTier, proofContext)
}

func (f *fakeEngine) VerifySubscriptionProof(ctx context.Context, req *types.VerificationRequest) (*types.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMinTier = req.MinTier
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEngine) RotateDID(ctx context.Context, subscriptionID, oldDID, newDID string, rotationProof []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDID = newDID
	return f.err
}

func (f *fakeEngine) CleanupExpiredSubscriptions() int {
	return f.purged
}

func (f *fakeEngine) RotationHistory(subscriptionID string) []types.RotationRecord {
	return f.rotations
}

func (f *fakeEngine) Revoke(subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = subscriptionID
	return f.err
}

func (f *fakeEngine) StartCleanupLoop(ctx context.Context, interval time.Duration) {}

func (f *fakeEngine) Stop(ctx context.Context) error { return nil }

func (f *fakeEngine) GetStats() map[string]interface{} {
	stats := map[string]interface{}{"worker_count": 2}
	if f.health != "" {
		stats["health_status"] = f.health
	}
	return stats
}

var _ handlers.StatsProvider = (*fakeEngine)(nil)

func newTestServer(t *testing.T, engine *fakeEngine, rpm int) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	options := apiconfig.New(nil).GetOptions()
	options.HTTP.RateLimitRequestsPerMinute = rpm
	return NewServer(options, testutil.NewTestLogger(), engine, engine, engine).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) apitypes.ProblemDetails {
	t.Helper()
	var problem apitypes.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func testProof() *types.SubscriptionProof {
	now := testutil.NewTestTime()
	return &types.SubscriptionProof{
		ValidityProof: []byte{1, 2, 3},
		TierProof:     []byte{4, 5, 6},
		Timestamp:     now,
		ExpiresAt:     now.Add(time.Hour),
		MinTier:       types.TierBasic,
		Commitments: types.ProofCommitments{
			TierCommitment: bytes.Repeat([]byte{2}, types.CommitmentSize),
			DIDCommitment:  bytes.Repeat([]byte{3}, types.CommitmentSize),
			Nullifier:      bytes.Repeat([]byte{2}, types.CommitmentSize),
		},
	}
}

// ============================================================================
//                               订阅端点
// ============================================================================

func TestCreateSubscription(t *testing.T) {
	now := testutil.NewTestTime()
	engine := &fakeEngine{sub: &types.AnonymousSubscription{
		ID:        "sub-1",
		DID:       "did:key:alice",
		Tier:      types.TierPremium,
		Status:    types.PaymentStatusCompleted,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}}
	engine.sub.Private.Secrets.BlindingFactor = bytes.Repeat([]byte{0xAB}, types.BlindingFactorSize)
	h := newTestServer(t, engine, 0)

	amount, err := types.ParseAmount("29.99", types.CurrencyUSD)
	require.NoError(t, err)
	w := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions", handlers.CreateSubscriptionRequest{
		DID:               "did:key:alice",
		ExternalBillingID: "pay_123",
		Tier:              types.TierPremium,
		Amount:            amount,
		ExpiresAt:         now.Add(24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "did:key:alice", engine.lastDID)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// 响应中不含私有数据
	body := w.Body.String()
	assert.Contains(t, body, `"id":"sub-1"`)
	assert.NotContains(t, body, "blinding")
	assert.NotContains(t, body, "pay_123")
	assert.NotContains(t, body, "2999")
}

func TestCreateSubscription_MalformedBody(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", bytes.NewBufferString(`{"did":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	assert.Equal(t, apitypes.CodeCommonValidationError, problem.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
}

func TestCreateSubscription_EngineRejects(t *testing.T) {
	engine := &fakeEngine{err: subproof.WrapInvalidSubscriptionError("expiry in the past")}
	h := newTestServer(t, engine, 0)

	w := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions", handlers.CreateSubscriptionRequest{
		DID:               "did:key:alice",
		ExternalBillingID: "pay_123",
		Tier:              types.TierBasic,
		Amount:            types.MustParseAmount("29.99", types.CurrencyUSD),
		ExpiresAt:         testutil.NewTestTime().Add(time.Hour),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	// 请求通过绑定校验，错误来自引擎
	assert.Equal(t, "did:key:alice", engine.lastDID)
	problem := decodeProblem(t, w)
	assert.Equal(t, subproof.CodeInvalidSubscription, problem.Code)
	assert.Equal(t, "/api/v1/subscriptions", problem.Instance)
}

func TestGenerateProof(t *testing.T) {
	engine := &fakeEngine{proof: testProof()}
	h := newTestServer(t, engine, 0)

	w := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/proofs", handlers.GenerateProofRequest{
		MinTier: types.TierBasic,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, engine.asCalled)
	assert.Equal(t, types.TierBasic, engine.lastMinTier)

	var resp struct {
		Data struct {
			NullifierKey string                   `json:"nullifier_key"`
			Proof        *types.SubscriptionProof `json:"proof"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, engine.proof.Commitments.NullifierKey(), resp.Data.NullifierKey)
	assert.Equal(t, engine.proof.ValidityProof, resp.Data.Proof.ValidityProof)
}

func TestGenerateProof_AssertsDID(t *testing.T) {
	engine := &fakeEngine{proof: testProof()}
	h := newTestServer(t, engine, 0)

	w := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/proofs", handlers.GenerateProofRequest{
		MinTier: types.TierPro,
		DID:     "did:key:bob",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, engine.asCalled)
	assert.Equal(t, "did:key:bob", engine.lastDID)
}

func TestGenerateProof_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", subproof.WrapSubscriptionNotFoundError("sub-1"), http.StatusNotFound, subproof.CodeSubscriptionNotFound},
		{"expired", subproof.WrapSubscriptionExpiredError("sub-1"), http.StatusGone, subproof.CodeSubscriptionExpired},
		{"did mismatch", subproof.WrapDIDMismatchError("sub-1"), http.StatusForbidden, subproof.CodeDIDMismatch},
		{"timeout", subproof.WrapTimeoutError("generate", context.DeadlineExceeded), http.StatusServiceUnavailable, subproof.CodeTimeout},
		{"zk", subproof.WrapZKProofError("prove", assert.AnError), http.StatusInternalServerError, subproof.CodeZKProof},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(t, &fakeEngine{err: tc.err}, 0)
			w := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/proofs", handlers.GenerateProofRequest{
				MinTier: types.TierBasic,
			})
			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeProblem(t, w).Code)
		})
	}
}

func TestRevokeAndRotations(t *testing.T) {
	engine := &fakeEngine{rotations: []types.RotationRecord{{OldDID: "did:key:old-1", NewDID: "did:key:new-1"}}}
	h := newTestServer(t, engine, 0)

	w := doJSON(t, h, http.MethodDelete, "/api/v1/subscriptions/sub-1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "sub-1", engine.revoked)

	w = doJSON(t, h, http.MethodGet, "/api/v1/subscriptions/sub-1/rotations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "did:key:new-1")
}

func TestRotations_EmptyIsArray(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, 0)

	w := doJSON(t, h, http.MethodGet, "/api/v1/subscriptions/unknown/rotations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestRotateDID(t *testing.T) {
	engine := &fakeEngine{}
	h := newTestServer(t, engine, 0)

	w := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/rotate", handlers.RotateDIDRequest{
		OldDID:        "did:key:alice",
		NewDID:        "did:key:alice2",
		RotationProof: []byte("signed"),
	})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "did:key:alice2", engine.lastDID)

	// 缺少必填字段
	w = doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/rotate", map[string]string{"old_did": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCleanup(t *testing.T) {
	h := newTestServer(t, &fakeEngine{purged: 3}, 0)

	w := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/cleanup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"purged":3`)
}

// ============================================================================
//                               验证端点
// ============================================================================

func TestVerifyProof(t *testing.T) {
	engine := &fakeEngine{result: &types.VerificationResult{
		IsValid:         true,
		TierSufficient:  false,
		AllowedFeatures: types.FeaturesForTier(types.TierEnterprise),
		Metadata:        map[string]string{},
	}}
	h := newTestServer(t, engine, 0)

	w := doJSON(t, h, http.MethodPost, "/api/v1/proofs/verify", &types.VerificationRequest{
		Proof:   testProof(),
		MinTier: types.TierEnterprise,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.TierEnterprise, engine.lastMinTier)

	var resp struct {
		Data types.VerificationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.IsValid)
	assert.False(t, resp.Data.TierSufficient)
}

func TestVerifyProof_InternalErrorHidesDetail(t *testing.T) {
	engine := &fakeEngine{err: subproof.WrapZKProofError("verify", assert.AnError)}
	h := newTestServer(t, engine, 0)

	w := doJSON(t, h, http.MethodPost, "/api/v1/proofs/verify", &types.VerificationRequest{Proof: testProof()})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	problem := decodeProblem(t, w)
	assert.Equal(t, "internal error", problem.Detail)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

// ============================================================================
//                               健康检查与中间件
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	cases := []struct {
		health      string
		healthCode  int
		readyCode   int
		readyStatus string
	}{
		{"healthy", http.StatusOK, http.StatusOK, "ready"},
		{"degraded", http.StatusOK, http.StatusOK, "ready"},
		{"unhealthy", http.StatusServiceUnavailable, http.StatusServiceUnavailable, "not_ready"},
		{"", http.StatusOK, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tc := range cases {
		t.Run(tc.health, func(t *testing.T) {
			h := newTestServer(t, &fakeEngine{health: tc.health}, 0)

			w := doJSON(t, h, http.MethodGet, "/health", nil)
			require.Equal(t, tc.healthCode, w.Code)

			w = doJSON(t, h, http.MethodGet, "/health/ready", nil)
			require.Equal(t, tc.readyCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.readyStatus)

			w = doJSON(t, h, http.MethodGet, "/health/live", nil)
			require.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	// 每分钟 10 次，突发 1 次
	h := newTestServer(t, &fakeEngine{}, 10)

	w := doJSON(t, h, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apitypes.CodeCommonRateLimited, decodeProblem(t, w).Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRequestID_Propagated(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "trace-abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "trace-abc", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", string(bytes.Repeat([]byte("x"), 100)))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestServer_StartStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	options := apiconfig.New(nil).GetOptions()
	options.HTTP.Port = 0

	srv := NewServer(options, testutil.NewTestLogger(), &fakeEngine{}, &fakeEngine{}, &fakeEngine{health: "healthy"})
	require.Empty(t, srv.Addr())
	require.NoError(t, srv.Start())
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop(context.Background()))
}
