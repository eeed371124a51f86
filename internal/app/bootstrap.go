package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	apihttp "github.com/weisyn/subproof/internal/api/http"
	config "github.com/weisyn/subproof/internal/config"
	"github.com/weisyn/subproof/internal/core/infrastructure/clock"
	"github.com/weisyn/subproof/internal/core/infrastructure/event"
	log "github.com/weisyn/subproof/internal/core/infrastructure/log"
	"github.com/weisyn/subproof/internal/core/subproof"
	configInterface "github.com/weisyn/subproof/pkg/interfaces/config"
	eventInterface "github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
	logInterface "github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
)

// Bootstrap 应用引导程序
type Bootstrap struct {
	opts  *options
	fxApp *fx.App

	// 由 fx.Populate 填充
	engine *subproof.Engine
	bus    eventInterface.EventBus
	logger logInterface.Logger
	server *apihttp.Server
}

// NewBootstrap 创建引导程序
func NewBootstrap(opts *options) *Bootstrap {
	return &Bootstrap{
		opts: opts,
	}
}

// SetupInfrastructureLayer 设置基础设施层模块
func (b *Bootstrap) SetupInfrastructureLayer() []fx.Option {
	return []fx.Option{
		config.Module(), // 1. 配置(不依赖其他)
		log.Module(),    // 2. 日志(依赖配置)
		clock.Module(),  // 3. 时钟(依赖配置和日志)
		event.Module(),  // 4. 事件(依赖日志)
	}
}

// SetupBusinessLayer 设置业务层模块
func (b *Bootstrap) SetupBusinessLayer() []fx.Option {
	return []fx.Option{
		subproof.Module(), // 订阅证明引擎(依赖全部基础设施)
	}
}

// SetupApplicationLayer 设置应用层模块
func (b *Bootstrap) SetupApplicationLayer() []fx.Option {
	return []fx.Option{
		apihttp.Module(), // HTTP API(依赖引擎；配置关闭时不启动)
	}
}

// BuildApp 组装fx应用
func (b *Bootstrap) BuildApp() error {
	if err := b.opts.resolve(config.LoadAppConfig); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	appOptions := []fx.Option{
		fx.NopLogger,
		fx.Provide(func() configInterface.AppOptions { return b.opts }),
	}
	appOptions = append(appOptions, b.SetupInfrastructureLayer()...)
	appOptions = append(appOptions, b.SetupBusinessLayer()...)
	appOptions = append(appOptions, b.SetupApplicationLayer()...)
	appOptions = append(appOptions, fx.Populate(&b.engine, &b.bus, &b.logger, &b.server))

	b.fxApp = fx.New(appOptions...)
	if err := b.fxApp.Err(); err != nil {
		return fmt.Errorf("组装应用失败: %w", err)
	}
	return nil
}

// StartApp 启动应用程序
func (b *Bootstrap) StartApp(ctx context.Context) error {
	if err := b.fxApp.Start(ctx); err != nil {
		return fmt.Errorf("启动应用失败: %w", err)
	}
	b.logger.Info("应用已启动")
	return nil
}

// StopApp 停止应用程序
func (b *Bootstrap) StopApp(ctx context.Context) error {
	if err := b.fxApp.Stop(ctx); err != nil {
		return fmt.Errorf("停止应用失败: %w", err)
	}
	return nil
}
