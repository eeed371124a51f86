package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/weisyn/subproof/configs"
	"github.com/weisyn/subproof/internal/app"
	"github.com/weisyn/subproof/internal/config"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath   string // 配置文件路径
	Env          string // 内嵌配置环境（未指定配置文件时使用）
	LogLevel     string // 日志级别覆盖
	SetupDir     string // 可信设置目录覆盖
	OutputFormat string // 输出格式
}

var globalFlags GlobalFlags

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "subproof",
	Short: "隐私保护订阅证明引擎",
	Long: `subproof - 隐私保护的订阅证明引擎

在支付完成后登记匿名订阅，并生成零知识证明：
- 证明订阅在当前时间有效
- 证明订阅等级不低于指定等级
- 验证方无法得知实际等级、金额、身份或计费标识

证明由 Groth16 (BN254) 有效性证明和 Bulletproofs (secp256k1) 等级范围证明组成。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch globalFlags.OutputFormat {
		case "table", "json":
		default:
			return fmt.Errorf("不支持的输出格式: %s", globalFlags.OutputFormat)
		}
		// 非终端输出（管道、重定向）时关闭颜色
		if !term.IsTerminal(int(os.Stdout.Fd())) || globalFlags.OutputFormat == "json" {
			pterm.DisableStyling()
		}
		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// startApp 按全局标志启动应用
func startApp(ctx context.Context, extra ...app.Option) (app.App, error) {
	logLevel := globalFlags.LogLevel
	if logLevel == "" && globalFlags.ConfigPath == "" && globalFlags.Env == "" {
		// 命令行默认安静，配置文件中的级别优先
		logLevel = "warn"
	}
	opts := []app.Option{
		app.WithConfigFile(globalFlags.ConfigPath),
		app.WithLogLevel(logLevel),
		app.WithTrustedSetupPath(globalFlags.SetupDir),
	}
	if globalFlags.ConfigPath == "" && globalFlags.Env != "" {
		data, err := configs.Get(globalFlags.Env)
		if err != nil {
			return nil, err
		}
		appConfig, err := config.ParseAppConfig(data, "embedded:"+globalFlags.Env)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithAppConfig(appConfig))
	}
	return app.Start(ctx, append(opts, extra...)...)
}

func jsonOutput() bool {
	return globalFlags.OutputFormat == "json"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "配置文件路径 (JSON，默认全部使用默认值)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Env, "env", "", "使用内嵌配置: dev|prod (指定 --config 时忽略)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "日志级别覆盖: debug|info|warn|error (默认 warn 或配置文件)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.SetupDir, "setup-dir", "", "可信设置目录 (覆盖配置文件)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "table", "输出格式: table|json")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
