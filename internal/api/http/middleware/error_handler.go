package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apitypes "github.com/weisyn/subproof/internal/api/types"
	"github.com/weisyn/subproof/internal/core/subproof"
)

// ErrorHandler 把处理器通过 c.Error 记录的错误统一转换为 Problem Details
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		problem, ok := apitypes.IsProblemDetails(err)
		if !ok {
			problem = ProblemFromEngineError(err)
		}
		problem.Instance = c.Request.URL.Path
		if problem.Status >= http.StatusInternalServerError {
			logger.Error("HTTP error",
				zap.String("code", problem.Code),
				zap.String("traceId", problem.TraceID),
				zap.String("route", routeLabel(c)),
				zap.Error(err))
		}
		WriteProblemDetails(c, problem)
	}
}

// engineStatus 引擎错误码到 HTTP 状态码
var engineStatus = map[string]int{
	subproof.CodeSubscriptionNotFound: http.StatusNotFound,
	subproof.CodeSubscriptionExpired:  http.StatusGone,
	subproof.CodeInvalidProof:         http.StatusBadRequest,
	subproof.CodeDIDMismatch:          http.StatusForbidden,
	subproof.CodeInvalidSubscription:  http.StatusBadRequest,
	subproof.CodeTimeout:              http.StatusServiceUnavailable,
	subproof.CodeEngineStopped:        http.StatusServiceUnavailable,
	subproof.CodeZKProof:              http.StatusInternalServerError,
	subproof.CodeInternal:             http.StatusInternalServerError,
}

// ProblemFromEngineError 把引擎错误映射为 Problem Details
//
// 引擎错误只携带订阅 ID 和原因，可以直接作为 detail；
// 5xx 错误不回显内部原因。
func ProblemFromEngineError(err error) *apitypes.ProblemDetails {
	code := subproof.ErrorCode(err)
	status, ok := engineStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	detail := err.Error()
	userMessage := "请求未能完成。"
	if status >= http.StatusInternalServerError && !errors.Is(err, subproof.ErrTimeout) && !errors.Is(err, subproof.ErrEngineStopped) {
		detail = "internal error"
		userMessage = "服务器内部错误，请稍后重试。"
	}

	problem := apitypes.NewProblemDetails(code, userMessage, detail, status, nil)
	problem.Retryable = subproof.IsRetryable(err)
	return problem
}

// WriteProblemDetails 写入 Problem Details 响应
func WriteProblemDetails(c *gin.Context, problem *apitypes.ProblemDetails) {
	c.Header("Content-Type", "application/problem+json")
	c.JSON(problem.Status, problem)
	c.Abort()
}

// WriteValidationError 写入请求参数错误
func WriteValidationError(c *gin.Context, detail string) {
	WriteProblemDetails(c, apitypes.NewProblemDetails(
		apitypes.CodeCommonValidationError,
		"请求参数无效。",
		detail,
		http.StatusBadRequest,
		nil,
	))
}
