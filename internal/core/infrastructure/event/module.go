// Package event 提供事件管理功能
package event

import (
	"context"

	"go.uber.org/fx"

	eventInterface "github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
)

// ModuleInput 事件模块输入依赖
type ModuleInput struct {
	fx.In

	Logger    log.Logger   `optional:"true"` // 日志记录器（可选）
	Lifecycle fx.Lifecycle // 生命周期管理
}

// ModuleOutput 事件模块输出服务
type ModuleOutput struct {
	fx.Out

	EventBus eventInterface.EventBus // 基础事件总线
}

// Module 返回事件模块
func Module() fx.Option {
	return fx.Module("event",
		fx.Provide(ProvideEventBus),
	)
}

// ProvideEventBus 创建事件总线并挂接生命周期
func ProvideEventBus(input ModuleInput) ModuleOutput {
	bus := New()

	input.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			published, dropped := bus.Stats()
			if input.Logger != nil {
				input.Logger.Infof("事件总线已停止: published=%d, dropped=%d", published, dropped)
			}
			return bus.Stop(ctx)
		},
	})

	if input.Logger != nil {
		input.Logger.Info("事件总线已初始化")
	}
	return ModuleOutput{EventBus: bus}
}
