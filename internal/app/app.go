// Package app 组装订阅证明引擎及其基础设施
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/weisyn/subproof/internal/api/http"
	"github.com/weisyn/subproof/internal/core/subproof"
	eventInterface "github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
	logInterface "github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
)

// defaultStopTimeout 停止时等待执行中证明的上限
const defaultStopTimeout = 30 * time.Second

// App 订阅证明应用的对外接口
type App interface {
	// Engine 返回已启动的引擎
	Engine() *subproof.Engine

	// EventBus 返回事件总线
	EventBus() eventInterface.EventBus

	// Logger 返回根日志记录器
	Logger() logInterface.Logger

	// APIServer 返回HTTP服务器；未启用时为 nil
	APIServer() *apihttp.Server

	// Stop 停止应用
	Stop() error

	// Wait 阻塞直到收到退出信号或 ctx 取消
	Wait(ctx context.Context)
}

// internalApp 应用的内部实现
type internalApp struct {
	bootstrap *Bootstrap
}

// Start 按选项组装并启动应用
func Start(ctx context.Context, opts ...Option) (App, error) {
	b := NewBootstrap(newOptions(opts...))
	if err := b.BuildApp(); err != nil {
		return nil, err
	}
	if err := b.StartApp(ctx); err != nil {
		return nil, err
	}
	return &internalApp{bootstrap: b}, nil
}

func (a *internalApp) Engine() *subproof.Engine {
	return a.bootstrap.engine
}

func (a *internalApp) EventBus() eventInterface.EventBus {
	return a.bootstrap.bus
}

func (a *internalApp) Logger() logInterface.Logger {
	return a.bootstrap.logger
}

func (a *internalApp) APIServer() *apihttp.Server {
	return a.bootstrap.server
}

// Stop 停止应用（包括所有生命周期钩子）
func (a *internalApp) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()
	return a.bootstrap.StopApp(ctx)
}

// Wait 等待退出信号
func (a *internalApp) Wait(ctx context.Context) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		a.bootstrap.logger.Infof("收到信号 %v，正在优雅退出", sig)
	case <-ctx.Done():
	}
}
