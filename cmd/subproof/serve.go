package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/weisyn/subproof/internal/app"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/subproof/pkg/types"
)

var (
	serveMetricsAddr string
	serveHTTPAddr    string
)

// serveCmd 常驻运行引擎：周期清理过期订阅并暴露指标
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "常驻运行引擎并暴露 Prometheus 指标",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		var extra []app.Option
		if serveHTTPAddr != "" {
			extra = append(extra, app.WithHTTPListen(serveHTTPAddr))
		}
		a, err := startApp(ctx, extra...)
		if err != nil {
			return err
		}
		defer func() { _ = a.Stop() }()

		logger := a.Logger()
		bus := a.EventBus()
		subscribe := func(t event.EventType, handler interface{}) error {
			if err := bus.SubscribeAsync(t, handler, false); err != nil {
				return fmt.Errorf("订阅事件 %s 失败: %w", t, err)
			}
			return nil
		}
		if err := subscribe(event.EventTypeSubscriptionPurged, func(ids []string) {
			logger.Infof("已清理过期订阅: count=%d", len(ids))
		}); err != nil {
			return err
		}
		if err := subscribe(event.EventTypeProofGenerated, func(_ string, minTier types.SubscriptionTier) {
			logger.Debugf("证明已生成: min_tier=%s", minTier)
		}); err != nil {
			return err
		}

		shutdown := startMetricsServer(serveMetricsAddr, logger)
		defer shutdown()

		pterm.Success.Printfln("引擎已启动，验证密钥: %s", a.Engine().KeyMaterial().VerifyingKeyHash())
		if srv := a.APIServer(); srv != nil {
			pterm.Info.Printfln("HTTP API: http://%s/api/v1/", srv.Addr())
		}
		pterm.Info.Println("按 Ctrl+C 停止")
		a.Wait(ctx)
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "HTTP API 监听地址 (如 127.0.0.1:8080，为空则按配置文件)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", ":9100", "Prometheus 指标监听地址 (为空则不启动)")
}
