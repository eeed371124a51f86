package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/subproof/internal/core/subproof"
)

// ============================================================================
// error_handler.go 测试
// ============================================================================

func TestProblemFromEngineError(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		code      string
		retryable bool
		hidden    bool
	}{
		{subproof.WrapSubscriptionNotFoundError("sub-1"), http.StatusNotFound, subproof.CodeSubscriptionNotFound, false, false},
		{subproof.WrapSubscriptionExpiredError("sub-1"), http.StatusGone, subproof.CodeSubscriptionExpired, false, false},
		{subproof.WrapInvalidProofError("empty rotation proof"), http.StatusBadRequest, subproof.CodeInvalidProof, false, false},
		{subproof.WrapDIDMismatchError("sub-1"), http.StatusForbidden, subproof.CodeDIDMismatch, false, false},
		{subproof.WrapTimeoutError("generate", context.DeadlineExceeded), http.StatusServiceUnavailable, subproof.CodeTimeout, true, false},
		{subproof.ErrEngineStopped, http.StatusServiceUnavailable, subproof.CodeEngineStopped, false, false},
		{subproof.WrapZKProofError("prove", errors.New("witness 7")), http.StatusInternalServerError, subproof.CodeZKProof, false, true},
		{errors.New("boom"), http.StatusInternalServerError, subproof.CodeInternal, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			p := ProblemFromEngineError(tc.err)
			assert.Equal(t, tc.status, p.Status)
			assert.Equal(t, tc.code, p.Code)
			assert.Equal(t, tc.retryable, p.Retryable)
			if tc.hidden {
				assert.Equal(t, "internal error", p.Detail)
			} else {
				assert.Equal(t, tc.err.Error(), p.Detail)
			}
		})
	}
}

// ============================================================================
// ratelimit.go 测试
// ============================================================================

func TestNewRateLimit_DisabledIsNil(t *testing.T) {
	require.Nil(t, NewRateLimit(0))
	require.Nil(t, NewRateLimit(-1))

	// nil 限流器的中间件直接放行
	var m *RateLimit
	require.NotNil(t, m.Middleware())
}

func TestRateLimit_PerClient(t *testing.T) {
	m := NewRateLimit(60)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	// 突发 6 次
	for i := 0; i < 6; i++ {
		require.True(t, m.allow("10.0.0.1"), "request %d", i)
	}
	require.False(t, m.allow("10.0.0.1"))
	require.True(t, m.allow("10.0.0.2"))

	// 每秒补充一个令牌
	now = now.Add(time.Second)
	require.True(t, m.allow("10.0.0.1"))
}

func TestRateLimit_SweepsIdleClients(t *testing.T) {
	m := NewRateLimit(60)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	require.True(t, m.allow("10.0.0.1"))
	require.Len(t, m.entries, 1)

	now = now.Add(2 * limiterIdleTTL)
	require.True(t, m.allow("10.0.0.2"))
	require.Len(t, m.entries, 1)
	require.Contains(t, m.entries, "10.0.0.2")
}
