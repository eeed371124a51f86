package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httptypes "github.com/weisyn/subproof/internal/api/http/types"
	"github.com/weisyn/subproof/internal/app/version"
)

// StatsProvider 提供引擎运行统计
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// HealthHandler 健康检查端点处理器
//
// - /health: 完整健康报告
// - /health/live: 存活检查（进程是否响应）
// - /health/ready: 就绪检查（证明工作池是否可用）
type HealthHandler struct {
	stats     StatsProvider
	startTime time.Time
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats, startTime: time.Now()}
}

// RegisterRoutes 注册健康检查路由
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.GetHealth)
	r.GET("/health/live", h.GetLiveness)
	r.GET("/health/ready", h.GetReadiness)
}

// GetHealth 获取完整健康状态
func (h *HealthHandler) GetHealth(c *gin.Context) {
	stats := h.stats.GetStats()
	status := h.workerStatus(stats)

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, &httptypes.HealthResponse{
		Status:     status,
		Liveness:   "ok",
		Readiness:  readiness(status),
		Version:    version.GetVersion(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: map[string]interface{}{"proof_workers": stats},
	})
}

// GetLiveness 存活检查
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetReadiness 就绪检查
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	r := readiness(h.workerStatus(h.stats.GetStats()))
	code := http.StatusOK
	if r != "ready" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": r})
}

func (h *HealthHandler) workerStatus(stats map[string]interface{}) string {
	if s, ok := stats["health_status"].(string); ok {
		return s
	}
	return "unknown"
}

func readiness(status string) string {
	if status == "unhealthy" || status == "unknown" {
		return "not_ready"
	}
	return "ready"
}
