package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apitypes "github.com/weisyn/subproof/internal/api/types"
)

// limiterIdleTTL 客户端限流器空闲多久后回收
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit 按客户端 IP 的令牌桶限流
type RateLimit struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimit 创建限流中间件；requestsPerMinute <= 0 时不限流
func NewRateLimit(requestsPerMinute int) *RateLimit {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimit{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(requestsPerMinute) / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// Middleware 返回Gin中间件
func (m *RateLimit) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || m.allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(1))
		WriteProblemDetails(c, apitypes.NewProblemDetails(
			apitypes.CodeCommonRateLimited,
			"请求过于频繁，请稍后重试。",
			"rate limit exceeded",
			http.StatusTooManyRequests,
			nil,
		))
	}
}

// allow 检查是否允许请求，顺带回收空闲的限流器
func (m *RateLimit) allow(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > limiterIdleTTL {
		for id, e := range m.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(m.entries, id)
			}
		}
		m.lastSweep = now
	}

	entry, ok := m.entries[clientID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.entries[clientID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
