package http

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	apiconfig "github.com/weisyn/subproof/internal/config/api"
	"github.com/weisyn/subproof/internal/core/subproof"
	logimpl "github.com/weisyn/subproof/internal/core/infrastructure/log"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	subproofInterface "github.com/weisyn/subproof/pkg/interfaces/subproof"
)

// ModuleInput HTTP模块输入依赖
type ModuleInput struct {
	fx.In

	Options   *apiconfig.APIOptions
	Logger    log.Logger
	Engine    subproofInterface.Engine
	Lifecycle subproofInterface.Lifecycle
	Stats     *subproof.Engine
	FxLife    fx.Lifecycle
}

// initializeGinMode 关闭 gin 的调试输出，日志统一走 zap
func initializeGinMode() {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
}

// Module 返回HTTP服务模块
//
// 配置中 api.http_enabled 为 false 时不创建服务器。
func Module() fx.Option {
	return fx.Module("http",
		fx.Invoke(initializeGinMode),
		fx.Provide(ProvideServer),
		// 确保服务器被实例化并挂接生命周期
		fx.Invoke(func(*Server) {}),
	)
}

// ProvideServer 创建服务器并挂接生命周期
func ProvideServer(input ModuleInput) *Server {
	if !input.Options.HTTP.Enabled {
		return nil
	}

	logger := logimpl.NewModuleLogger(input.Logger, "http")
	server := NewServer(input.Options, logger, input.Engine, input.Lifecycle, input.Stats)
	input.FxLife.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			return server.Stop(ctx)
		},
	})
	return server
}
