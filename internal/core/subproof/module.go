package subproof

import (
	"context"

	"go.uber.org/fx"

	subproofconfig "github.com/weisyn/subproof/internal/config/subproof"
	logimpl "github.com/weisyn/subproof/internal/core/infrastructure/log"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	subproofInterface "github.com/weisyn/subproof/pkg/interfaces/subproof"
)

// ModuleInput 订阅证明模块输入依赖
type ModuleInput struct {
	fx.In

	Options   *subproofconfig.SubproofOptions
	Clock     clock.Clock
	EventBus  event.EventBus `optional:"true"`
	Logger    log.Logger     `optional:"true"`
	Lifecycle fx.Lifecycle
}

// ModuleOutput 订阅证明模块输出服务
type ModuleOutput struct {
	fx.Out

	Engine    *Engine
	Service   subproofInterface.Engine
	Lifecycle subproofInterface.Lifecycle
}

// Module 返回订阅证明模块
func Module() fx.Option {
	return fx.Module("subproof",
		fx.Provide(ProvideKeyMaterial, ProvideEngine),
	)
}

// ProvideKeyMaterial 加载或生成可信设置；失败时应用不启动
func ProvideKeyMaterial(input ModuleInput) (*KeyMaterial, error) {
	return LoadOrCreateKeyMaterial(input.Options.TrustedSetupPath, moduleLogger(input.Logger))
}

// ProvideEngine 创建引擎并挂接生命周期
func ProvideEngine(input ModuleInput, km *KeyMaterial) (ModuleOutput, error) {
	logger := moduleLogger(input.Logger)
	engine, err := NewEngine(km, input.Options, input.Clock, input.EventBus, logger)
	if err != nil {
		return ModuleOutput{}, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	input.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			engine.StartCleanupLoop(loopCtx, input.Options.CleanupInterval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return engine.Stop(ctx)
		},
	})

	return ModuleOutput{
		Engine:    engine,
		Service:   engine,
		Lifecycle: engine,
	}, nil
}

func moduleLogger(base log.Logger) log.Logger {
	if base == nil {
		return logimpl.NewNop()
	}
	return logimpl.NewModuleLogger(base, "subproof")
}
