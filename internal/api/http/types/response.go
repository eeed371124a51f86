// Package types provides HTTP response type definitions.
package types

import (
	"time"

	"github.com/weisyn/subproof/pkg/types"
)

// SuccessResponse 统一成功响应格式
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *SuccessResponse {
	return &SuccessResponse{
		Data: data,
	}
}

// WithRequestID 添加请求ID
func (r *SuccessResponse) WithRequestID(requestID string) *SuccessResponse {
	r.RequestID = requestID
	return r
}

// SubscriptionView 订阅对外视图，不含任何私有数据
type SubscriptionView struct {
	ID        string                 `json:"id"`
	DID       string                 `json:"did"`
	Tier      types.SubscriptionTier `json:"tier"`
	Status    types.PaymentStatus    `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// NewSubscriptionView 从订阅记录构造视图
func NewSubscriptionView(sub *types.AnonymousSubscription) *SubscriptionView {
	return &SubscriptionView{
		ID:        sub.ID,
		DID:       sub.DID,
		Tier:      sub.Tier,
		Status:    sub.Status,
		CreatedAt: sub.CreatedAt,
		ExpiresAt: sub.ExpiresAt,
	}
}

// ProofView 证明响应，附带 base58 无效化值供外部注册表使用
type ProofView struct {
	Proof        *types.SubscriptionProof `json:"proof"`
	NullifierKey string                   `json:"nullifier_key"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status     string                 `json:"status"` // healthy, degraded, unhealthy
	Liveness   string                 `json:"liveness"`
	Readiness  string                 `json:"readiness"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	Timestamp  string                 `json:"timestamp"`
	Components map[string]interface{} `json:"components"`
}
