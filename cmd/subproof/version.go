package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weisyn/subproof/internal/app/version"
)

// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput() {
			return json.NewEncoder(os.Stdout).Encode(version.GetBuildInfo())
		}
		fmt.Println(version.GetFullVersion())
		return nil
	},
}
