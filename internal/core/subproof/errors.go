// Package subproof 实现隐私保护的订阅证明引擎
package subproof

import (
	"context"
	"errors"
	"fmt"
)

// ============================================================================
//                            订阅证明错误定义
// ============================================================================

var (
	// ErrSubscriptionNotFound 订阅不存在
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionExpired 订阅已过期
	ErrSubscriptionExpired = errors.New("subscription expired")

	// ErrInvalidProof 证明或授权材料无效
	ErrInvalidProof = errors.New("invalid proof")

	// ErrDIDMismatch DID 与存储记录不一致
	ErrDIDMismatch = errors.New("did mismatch")

	// ErrZKProof 零知识证明生成或解析失败
	ErrZKProof = errors.New("zero-knowledge proof error")

	// ErrTimeout 操作超时
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidSubscription 订阅参数无效
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrEngineStopped 引擎已停止
	ErrEngineStopped = errors.New("engine stopped")
)

// ============================================================================
//                               错误包装函数
// ============================================================================

// 包装函数只携带订阅 ID 和原因，绝不携带等级、金额、DID 或秘密。

// WrapSubscriptionNotFoundError 包装订阅不存在错误
func WrapSubscriptionNotFoundError(id string) error {
	return fmt.Errorf("%w: id=%s", ErrSubscriptionNotFound, id)
}

// WrapSubscriptionExpiredError 包装订阅过期错误
func WrapSubscriptionExpiredError(id string) error {
	return fmt.Errorf("%w: id=%s", ErrSubscriptionExpired, id)
}

// WrapInvalidProofError 包装无效证明错误
func WrapInvalidProofError(reason string) error {
	return fmt.Errorf("%w: reason=%s", ErrInvalidProof, reason)
}

// WrapDIDMismatchError 包装 DID 不一致错误
func WrapDIDMismatchError(id string) error {
	return fmt.Errorf("%w: id=%s", ErrDIDMismatch, id)
}

// WrapZKProofError 包装零知识证明错误
func WrapZKProofError(stage string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: stage=%s", ErrZKProof, stage)
	}
	return fmt.Errorf("%w: stage=%s, cause=%v", ErrZKProof, stage, err)
}

// WrapTimeoutError 包装超时错误
func WrapTimeoutError(op string, err error) error {
	return fmt.Errorf("%w: op=%s, cause=%v", ErrTimeout, op, err)
}

// WrapInvalidSubscriptionError 包装订阅参数无效错误
func WrapInvalidSubscriptionError(reason string) error {
	return fmt.Errorf("%w: reason=%s", ErrInvalidSubscription, reason)
}

// ============================================================================
//                               错误分类
// ============================================================================

// 稳定错误码
const (
	CodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	CodeSubscriptionExpired  = "SUBSCRIPTION_EXPIRED"
	CodeInvalidProof         = "INVALID_PROOF"
	CodeDIDMismatch          = "DID_MISMATCH"
	CodeZKProof              = "ZK_PROOF_ERROR"
	CodeTimeout              = "TIMEOUT"
	CodeInvalidSubscription  = "INVALID_SUBSCRIPTION"
	CodeEngineStopped        = "ENGINE_STOPPED"
	CodeInternal             = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrSubscriptionNotFound, CodeSubscriptionNotFound},
	{ErrSubscriptionExpired, CodeSubscriptionExpired},
	{ErrInvalidProof, CodeInvalidProof},
	{ErrDIDMismatch, CodeDIDMismatch},
	{ErrZKProof, CodeZKProof},
	{ErrTimeout, CodeTimeout},
	{ErrInvalidSubscription, CodeInvalidSubscription},
	{ErrEngineStopped, CodeEngineStopped},
}

// ErrorCode 返回错误对应的稳定错误码；nil 返回空串
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsRetryable 只有超时可以原样重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// ctxError 把上下文错误映射为超时
func ctxError(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return WrapTimeoutError(op, err)
	}
	return nil
}
