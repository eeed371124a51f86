package subproof

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
//                               错误包装
// ============================================================================

func TestWrapErrors_PreserveSentinel(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		code     string
	}{
		{WrapSubscriptionNotFoundError("id-1"), ErrSubscriptionNotFound, CodeSubscriptionNotFound},
		{WrapSubscriptionExpiredError("id-1"), ErrSubscriptionExpired, CodeSubscriptionExpired},
		{WrapInvalidProofError("empty"), ErrInvalidProof, CodeInvalidProof},
		{WrapDIDMismatchError("id-1"), ErrDIDMismatch, CodeDIDMismatch},
		{WrapZKProofError("prove", nil), ErrZKProof, CodeZKProof},
		{WrapZKProofError("decode", errors.New("short buffer")), ErrZKProof, CodeZKProof},
		{WrapTimeoutError("queue", context.DeadlineExceeded), ErrTimeout, CodeTimeout},
		{WrapInvalidSubscriptionError("empty did"), ErrInvalidSubscription, CodeInvalidSubscription},
		{ErrEngineStopped, ErrEngineStopped, CodeEngineStopped},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.ErrorIs(t, tt.err, tt.sentinel)
			require.Equal(t, tt.code, ErrorCode(tt.err))
			// 外层再包装一次仍可识别
			require.Equal(t, tt.code, ErrorCode(fmt.Errorf("api: %w", tt.err)))
		})
	}
}

func TestErrorCode_Unknown(t *testing.T) {
	require.Empty(t, ErrorCode(nil))
	require.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(WrapTimeoutError("generate", context.Canceled)))
	require.False(t, IsRetryable(WrapZKProofError("prove", nil)))
	require.False(t, IsRetryable(ErrEngineStopped))
	require.False(t, IsRetryable(nil))
}

func TestWrapZKProofError_OmitsNilCause(t *testing.T) {
	require.Equal(t, "zero-knowledge proof error: stage=witness", WrapZKProofError("witness", nil).Error())
}

func TestCtxError(t *testing.T) {
	require.NoError(t, ctxError(context.Background(), "op"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ctxError(ctx, "op")
	require.ErrorIs(t, err, ErrTimeout)
	require.Contains(t, err.Error(), "op=op")
}
