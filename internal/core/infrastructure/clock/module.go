// Package clock 提供时钟服务实现与依赖注入模块
package clock

import (
	"github.com/weisyn/subproof/pkg/interfaces/config"
	infraClock "github.com/weisyn/subproof/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	"go.uber.org/fx"
)

// ModuleParams 时钟模块依赖
type ModuleParams struct {
	fx.In

	Provider config.Provider
	Logger   log.Logger `optional:"true"`
}

// Module 返回时钟模块
func Module() fx.Option {
	return fx.Module("clock",
		fx.Provide(ProvideClock),
	)
}

// ProvideClock 按配置选择时钟实现
func ProvideClock(params ModuleParams) infraClock.Clock {
	opts := params.Provider.GetClock()

	switch opts.Type {
	case "ntp":
		ntpClock := NewNTPClock(opts)
		if err := RegisterClockMetrics(nil, ntpClock.Health); err != nil && params.Logger != nil {
			params.Logger.Warnf("注册时钟指标失败: %v", err)
		}
		if ok, offset, _, lastErr := ntpClock.Health(); !ok && params.Logger != nil {
			params.Logger.Warnf("NTP时钟初始状态不健康: server=%s, offset=%v, err=%v", opts.NTPServer, offset, lastErr)
		}
		return ntpClock
	default:
		return NewSystemClock()
	}
}
