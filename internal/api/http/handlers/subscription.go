// Package handlers 实现订阅证明引擎的 HTTP 处理器
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/subproof/internal/api/http/middleware"
	httptypes "github.com/weisyn/subproof/internal/api/http/types"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	subproofInterface "github.com/weisyn/subproof/pkg/interfaces/subproof"
	"github.com/weisyn/subproof/pkg/types"
)

// SubscriptionHandlers 订阅登记与证明生成处理器
//
// 📋 **路由**：
//   - POST   /subscriptions                登记匿名订阅（支付完成后由计费网关调用）
//   - DELETE /subscriptions/:id            撤销订阅
//   - POST   /subscriptions/:id/proofs     生成证明
//   - POST   /subscriptions/:id/rotate     轮换 DID
//   - GET    /subscriptions/:id/rotations  轮换记录
//   - POST   /subscriptions/cleanup        立即清理过期订阅
type SubscriptionHandlers struct {
	engine    subproofInterface.Engine
	lifecycle subproofInterface.Lifecycle
	logger    log.Logger
}

// NewSubscriptionHandlers 创建订阅处理器
func NewSubscriptionHandlers(engine subproofInterface.Engine, lifecycle subproofInterface.Lifecycle, logger log.Logger) *SubscriptionHandlers {
	return &SubscriptionHandlers{engine: engine, lifecycle: lifecycle, logger: logger}
}

// RegisterRoutes 注册订阅路由
func (h *SubscriptionHandlers) RegisterRoutes(r *gin.RouterGroup) {
	subs := r.Group("/subscriptions")
	subs.POST("", h.Create)
	subs.POST("/cleanup", h.Cleanup)
	subs.DELETE("/:id", h.Revoke)
	subs.POST("/:id/proofs", h.GenerateProof)
	subs.POST("/:id/rotate", h.RotateDID)
	subs.GET("/:id/rotations", h.Rotations)
}

// CreateSubscriptionRequest 登记订阅请求
type CreateSubscriptionRequest struct {
	DID               string                 `json:"did" binding:"required"`
	ExternalBillingID string                 `json:"external_billing_id" binding:"required"`
	Tier              types.SubscriptionTier `json:"tier"`
	Amount            types.Amount           `json:"amount"`
	ExpiresAt         time.Time              `json:"expires_at"`
}

// GenerateProofRequest 生成证明请求；DID 非空时同时断言调用方身份
type GenerateProofRequest struct {
	MinTier types.SubscriptionTier `json:"min_tier"`
	DID     string                 `json:"did,omitempty"`
	Context string                 `json:"context,omitempty"`
}

// RotateDIDRequest DID 轮换请求；rotation_proof 为 base64 编码的不透明授权材料
type RotateDIDRequest struct {
	OldDID        string `json:"old_did" binding:"required"`
	NewDID        string `json:"new_did" binding:"required"`
	RotationProof []byte `json:"rotation_proof"`
}

// Create 登记匿名订阅
func (h *SubscriptionHandlers) Create(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 不回显解析错误，金额等字段不应出现在响应或日志中
		middleware.WriteValidationError(c, "malformed subscription request")
		return
	}

	sub, err := h.engine.CreateAnonymousSubscription(req.DID, req.ExternalBillingID, req.Tier, req.Amount, req.ExpiresAt)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, httptypes.NewSuccessResponse(httptypes.NewSubscriptionView(sub)).
		WithRequestID(middleware.GetRequestID(c)))
}

// Revoke 撤销订阅
func (h *SubscriptionHandlers) Revoke(c *gin.Context) {
	if err := h.lifecycle.Revoke(c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateProof 为订阅生成证明
func (h *SubscriptionHandlers) GenerateProof(c *gin.Context) {
	var req GenerateProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteValidationError(c, "malformed proof request")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	var (
		proof *types.SubscriptionProof
		err   error
	)
	if req.DID != "" {
		proof, err = h.engine.GenerateSubscriptionProofAs(ctx, id, req.DID, req.MinTier, req.Context)
	} else {
		proof, err = h.engine.GenerateSubscriptionProof(ctx, id, req.MinTier, req.Context)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, httptypes.NewSuccessResponse(&httptypes.ProofView{
		Proof:        proof,
		NullifierKey: proof.Commitments.NullifierKey(),
	}).WithRequestID(middleware.GetRequestID(c)))
}

// RotateDID 轮换订阅 DID
func (h *SubscriptionHandlers) RotateDID(c *gin.Context) {
	var req RotateDIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteValidationError(c, "malformed rotation request")
		return
	}

	if err := h.engine.RotateDID(c.Request.Context(), c.Param("id"), req.OldDID, req.NewDID, req.RotationProof); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Rotations 返回 DID 轮换记录
func (h *SubscriptionHandlers) Rotations(c *gin.Context) {
	history := h.lifecycle.RotationHistory(c.Param("id"))
	if history == nil {
		history = []types.RotationRecord{}
	}
	c.JSON(http.StatusOK, httptypes.NewSuccessResponse(history).WithRequestID(middleware.GetRequestID(c)))
}

// Cleanup 立即清理过期订阅
func (h *SubscriptionHandlers) Cleanup(c *gin.Context) {
	purged := h.engine.CleanupExpiredSubscriptions()
	h.logger.Infof("手动清理过期订阅: purged=%d", purged)
	c.JSON(http.StatusOK, httptypes.NewSuccessResponse(gin.H{"purged": purged}).
		WithRequestID(middleware.GetRequestID(c)))
}
