// Package http 提供订阅证明引擎的 HTTP API
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/subproof/internal/api/http/handlers"
	"github.com/weisyn/subproof/internal/api/http/middleware"
	apiconfig "github.com/weisyn/subproof/internal/config/api"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	subproofInterface "github.com/weisyn/subproof/pkg/interfaces/subproof"
)

// Server HTTP服务器
// 负责路由注册、服务启动和停止
type Server struct {
	router     *gin.Engine                 // Gin路由引擎
	httpServer *http.Server                // 标准HTTP服务器
	listener   net.Listener                // 启动后持有的监听器
	options    *apiconfig.APIOptions       // API配置
	logger     log.Logger                  // 日志记录器
	engine     subproofInterface.Engine    // 订阅证明引擎
	lifecycle  subproofInterface.Lifecycle // 引擎管理能力
	stats      handlers.StatsProvider      // 引擎统计（健康检查）
}

// NewServer 创建HTTP服务器并注册全部路由
func NewServer(
	options *apiconfig.APIOptions,
	logger log.Logger,
	engine subproofInterface.Engine,
	lifecycle subproofInterface.Lifecycle,
	stats handlers.StatsProvider,
) *Server {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Metrics(),
		middleware.NewRateLimit(options.HTTP.RateLimitRequestsPerMinute).Middleware(),
		middleware.ErrorHandler(logger.GetZapLogger()),
	)
	if options.HTTP.MaxRequestSize > 0 {
		limit := options.HTTP.MaxRequestSize
		router.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
		})
	}

	server := &Server{
		router:    router,
		options:   options,
		logger:    logger,
		engine:    engine,
		lifecycle: lifecycle,
		stats:     stats,
	}
	server.setupRoutes()
	return server
}

// setupRoutes 设置HTTP路由
func (s *Server) setupRoutes() {
	// 所有业务端点都在/api/v1路径下
	v1 := s.router.Group("/api/v1")

	handlers.NewSubscriptionHandlers(s.engine, s.lifecycle, s.logger).RegisterRoutes(v1)
	handlers.NewProofHandlers(s.engine).RegisterRoutes(v1)

	// 健康检查不经过版本前缀，供负载均衡探测
	handlers.NewHealthHandler(s.stats).RegisterRoutes(s.router)

	s.logger.Debug("HTTP路由注册完成")
}

// Handler 返回路由处理器（测试直接使用 httptest）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动HTTP服务器
//
// 监听在调用返回前完成，端口被占用时直接返回错误。
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.options.HTTP.Host, fmt.Sprintf("%d", s.options.HTTP.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("HTTP服务器监听失败 %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.options.HTTP.ReadTimeout,
		ReadTimeout:       s.options.HTTP.ReadTimeout,
		WriteTimeout:      s.options.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		// 正常关闭时返回http.ErrServerClosed，不视为错误
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP服务器运行失败: %v", err)
		}
	}()

	s.logger.Infof("HTTP服务器已启动: http://%s/api/v1/", listener.Addr())
	return nil
}

// Addr 返回实际监听地址；未启动时为空
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop 优雅关闭服务器，等待进行中的请求完成
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(stopCtx); err != nil {
		s.logger.Errorf("HTTP服务器关闭出错: %v", err)
		return err
	}
	s.logger.Info("HTTP服务器已关闭")
	return nil
}
