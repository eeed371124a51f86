package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	logconfig "github.com/weisyn/subproof/internal/config/log"
	logimpl "github.com/weisyn/subproof/internal/core/infrastructure/log"
	"github.com/weisyn/subproof/internal/core/subproof"
	"github.com/weisyn/subproof/pkg/types"
)

// setupCmd 执行或加载可信设置
var setupCmd = &cobra.Command{
	Use:   "setup <dir>",
	Short: "生成并保存 Groth16 可信设置",
	Long: `生成有效性电路的证明密钥和验证密钥并写入目录。

目录中已有密钥时直接加载并校验。验证方只需要 vk 文件即可独立验证证明。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level := globalFlags.LogLevel
		if level == "" {
			level = "warn"
		}
		logger, err := logimpl.New(logconfig.New(&types.UserLogConfig{Level: types.StringPtr(level)}))
		if err != nil {
			return fmt.Errorf("创建日志记录器失败: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		spinner, _ := pterm.DefaultSpinner.Start("正在准备可信设置...")
		start := time.Now()
		km, err := subproof.LoadOrCreateKeyMaterial(args[0], logger)
		if err != nil {
			if spinner != nil {
				spinner.Fail("可信设置失败")
			}
			return err
		}
		if spinner != nil {
			spinner.Success(fmt.Sprintf("可信设置就绪 (%s)", time.Since(start).Round(time.Millisecond)))
		}

		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"项目", "值"},
			{"目录", args[0]},
			{"约束数量", fmt.Sprintf("%d", km.NbConstraints())},
			{"验证密钥", km.VerifyingKeyHash()},
			{"范围证明位数", fmt.Sprintf("%d", subproof.RangeBits)},
		}).Render()
	},
}
