package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/subproof/internal/api/http/middleware"
	httptypes "github.com/weisyn/subproof/internal/api/http/types"
	subproofInterface "github.com/weisyn/subproof/pkg/interfaces/subproof"
	"github.com/weisyn/subproof/pkg/types"
)

// ProofHandlers 证明验证处理器
//
// 验证不访问订阅存储，可以部署在不持有订阅数据的验证节点上。
type ProofHandlers struct {
	engine subproofInterface.Engine
}

// NewProofHandlers 创建验证处理器
func NewProofHandlers(engine subproofInterface.Engine) *ProofHandlers {
	return &ProofHandlers{engine: engine}
}

// RegisterRoutes 注册验证路由
func (h *ProofHandlers) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/proofs/verify", h.Verify)
}

// Verify 验证证明
//
// 策略性失败（过期、等级不足、证明无效）返回 200，由 is_valid 和 tier_sufficient 表达。
func (h *ProofHandlers) Verify(c *gin.Context) {
	var req types.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteValidationError(c, "malformed verification request")
		return
	}

	result, err := h.engine.VerifySubscriptionProof(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httptypes.NewSuccessResponse(result).WithRequestID(middleware.GetRequestID(c)))
}
