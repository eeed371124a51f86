package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/weisyn/subproof/internal/app"
	"github.com/weisyn/subproof/internal/core/subproof"
	"github.com/weisyn/subproof/pkg/types"
)

type demoFlags struct {
	DID      string
	Tier     string
	Amount   string
	Currency string
	Days     int
	MinTier  string
	Features []string
}

var demoOpts demoFlags

// demoCmd 演示完整流程：登记订阅 → 生成证明 → 验证 → 轮换 DID
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "演示订阅登记、证明生成与验证",
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := types.ParseSubscriptionTier(demoOpts.Tier)
		if err != nil {
			return err
		}
		minTier, err := types.ParseSubscriptionTier(demoOpts.MinTier)
		if err != nil {
			return err
		}
		amount, err := types.ParseAmount(demoOpts.Amount, types.Fiat(demoOpts.Currency))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := startApp(ctx, app.WithoutCleanup())
		if err != nil {
			return err
		}
		defer func() { _ = a.Stop() }()
		engine := a.Engine()

		sub, err := engine.CreateAnonymousSubscription(demoOpts.DID, "demo-billing-ref", tier, amount,
			time.Now().Add(time.Duration(demoOpts.Days)*24*time.Hour))
		if err != nil {
			return err
		}

		start := time.Now()
		proof, err := engine.GenerateSubscriptionProof(ctx, sub.ID, minTier, "demo")
		if err != nil {
			return err
		}
		genElapsed := time.Since(start)

		req := &types.VerificationRequest{Proof: proof, MinTier: minTier, Features: demoOpts.Features, Context: "demo"}
		start = time.Now()
		result, err := engine.VerifySubscriptionProof(ctx, req)
		if err != nil {
			return err
		}
		verifyElapsed := time.Since(start)

		// 更高等级要求：证明仍然有效，但等级不足
		higher, err := engine.VerifySubscriptionProof(ctx, &types.VerificationRequest{Proof: proof, MinTier: types.TierEnterprise})
		if err != nil {
			return err
		}

		// DID 轮换后新证明的无效化值随之改变
		newDID := demoOpts.DID + "#rotated"
		if err := engine.RotateDID(ctx, sub.ID, demoOpts.DID, newDID, []byte("demo-authorization")); err != nil {
			return err
		}
		rotated, err := engine.GenerateSubscriptionProofAs(ctx, sub.ID, newDID, minTier, "demo")
		if err != nil {
			return err
		}

		if jsonOutput() {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"subscription_id":    sub.ID,
				"proof":              proof,
				"verification":       result,
				"enterprise_check":   higher,
				"nullifier":          proof.Commitments.NullifierKey(),
				"rotated_nullifier":  rotated.Commitments.NullifierKey(),
				"generation_seconds": genElapsed.Seconds(),
			})
		}

		pterm.DefaultHeader.WithFullWidth().Println("订阅证明演示")

		pterm.DefaultSection.Println("订阅")
		if err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"字段", "值"},
			{"订阅ID", sub.ID},
			{"DID", sub.DID},
			{"等级", sub.Tier.String()},
			{"金额", sub.Amount.String()},
			{"到期", sub.ExpiresAt.Format(time.RFC3339)},
		}).Render(); err != nil {
			return err
		}

		pterm.DefaultSection.Println("证明")
		if err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"字段", "值"},
			{"声明最低等级", proof.MinTier.String()},
			{"有效性证明", fmt.Sprintf("%d 字节", len(proof.ValidityProof))},
			{"等级证明", fmt.Sprintf("%d 字节", len(proof.TierProof))},
			{"证明到期", proof.ExpiresAt.Format(time.RFC3339)},
			{"无效化值", proof.Commitments.NullifierKey()},
			{"生成耗时", genElapsed.Round(time.Millisecond).String()},
		}).Render(); err != nil {
			return err
		}

		pterm.DefaultSection.Println("验证")
		if err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"要求等级", "有效", "等级满足", "可用功能", "耗时"},
			{minTier.String(), yesNo(result.IsValid), yesNo(result.TierSufficient),
				strings.Join(result.AllowedFeatures, ","), verifyElapsed.Round(time.Microsecond).String()},
			{types.TierEnterprise.String(), yesNo(higher.IsValid), yesNo(higher.TierSufficient),
				strings.Join(higher.AllowedFeatures, ","), "-"},
		}).Render(); err != nil {
			return err
		}
		if denied := result.Metadata[subproof.MetaDeniedFeatures]; denied != "" {
			pterm.Warning.Printfln("未授权的功能: %s", denied)
		}

		pterm.DefaultSection.Println("DID 轮换")
		pterm.DefaultBulletList.WithItems([]pterm.BulletListItem{
			{Level: 0, Text: "新 DID: " + newDID},
			{Level: 0, Text: "轮换前无效化值: " + proof.Commitments.NullifierKey()},
			{Level: 0, Text: "轮换后无效化值: " + rotated.Commitments.NullifierKey()},
		}).Render()

		pterm.Info.Printfln("验证密钥: %s", engine.KeyMaterial().VerifyingKeyHash())
		return nil
	},
}

func yesNo(v bool) string {
	if v {
		return pterm.Green("是")
	}
	return pterm.Red("否")
}

func init() {
	demoCmd.Flags().StringVar(&demoOpts.DID, "did", "did:key:demo-user", "订阅者 DID")
	demoCmd.Flags().StringVar(&demoOpts.Tier, "tier", "premium", "订阅等级: free|basic|premium|pro|enterprise")
	demoCmd.Flags().StringVar(&demoOpts.Amount, "amount", "29.99", "支付金额")
	demoCmd.Flags().StringVar(&demoOpts.Currency, "currency", "USD", "法币代码")
	demoCmd.Flags().IntVar(&demoOpts.Days, "days", 30, "订阅天数")
	demoCmd.Flags().StringVar(&demoOpts.MinTier, "min-tier", "basic", "证明的最低等级")
	demoCmd.Flags().StringSliceVar(&demoOpts.Features, "features", []string{"basic_access", "advanced_features"}, "请求的功能")
}
