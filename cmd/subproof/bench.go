package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/weisyn/subproof/internal/app"
	"github.com/weisyn/subproof/pkg/types"
)

type benchFlags struct {
	Proofs        int
	Verifications int
	Concurrency   int
	MetricsAddr   string
}

var benchOpts benchFlags

// benchReport 压测结果
type benchReport struct {
	Proofs          int           `json:"proofs"`
	Verifications   int           `json:"verifications"`
	Concurrency     int           `json:"concurrency"`
	GenerateP50     time.Duration `json:"generate_p50_ns"`
	GenerateP99     time.Duration `json:"generate_p99_ns"`
	VerifyP50       time.Duration `json:"verify_p50_ns"`
	VerifyP99       time.Duration `json:"verify_p99_ns"`
	VerifyPerSecond float64       `json:"verify_per_second"`
	Failures        int64         `json:"failures"`
}

// benchCmd 并发生成和验证证明，报告延迟分布
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "并发生成与验证压测",
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchOpts.Proofs <= 0 || benchOpts.Concurrency <= 0 {
			return fmt.Errorf("proofs 和 concurrency 必须大于 0")
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

		shutdown := startMetricsServer(benchOpts.MetricsAddr, a.Logger())
		defer shutdown()

		report := &benchReport{
			Proofs:        benchOpts.Proofs,
			Verifications: benchOpts.Verifications,
			Concurrency:   benchOpts.Concurrency,
		}
		var failures atomic.Int64

		// 1. 生成：每个证明对应独立订阅，等级轮转
		proofs := make([]*types.SubscriptionProof, benchOpts.Proofs)
		genLatency := make([]time.Duration, benchOpts.Proofs)
		amount := types.MustParseAmount("9.99", types.Fiat("USD"))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(benchOpts.Concurrency)
		for i := 0; i < benchOpts.Proofs; i++ {
			g.Go(func() error {
				tier := types.AllTiers[i%len(types.AllTiers)]
				sub, err := engine.CreateAnonymousSubscription(fmt.Sprintf("did:key:bench-%d", i), fmt.Sprintf("bench-%d", i),
					tier, amount, time.Now().Add(time.Hour))
				if err != nil {
					return err
				}
				start := time.Now()
				proof, err := engine.GenerateSubscriptionProof(gctx, sub.ID, types.TierFree, "bench")
				genLatency[i] = time.Since(start)
				if err != nil {
					failures.Add(1)
					return nil
				}
				proofs[i] = proof
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// 2. 验证：循环复用已生成的证明
		verifyLatency := make([]time.Duration, benchOpts.Verifications)
		start := time.Now()
		g, gctx = errgroup.WithContext(ctx)
		g.SetLimit(benchOpts.Concurrency)
		for i := 0; i < benchOpts.Verifications; i++ {
			g.Go(func() error {
				proof := proofs[i%len(proofs)]
				if proof == nil {
					return nil
				}
				t0 := time.Now()
				res, err := engine.VerifySubscriptionProof(gctx, &types.VerificationRequest{Proof: proof, MinTier: types.TierFree})
				elapsed := time.Since(t0)
				verifyLatency[i] = elapsed
				if err != nil || !res.IsValid {
					failures.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if total := time.Since(start); total > 0 {
			report.VerifyPerSecond = float64(benchOpts.Verifications) / total.Seconds()
		}

		report.GenerateP50, report.GenerateP99 = percentiles(genLatency)
		report.VerifyP50, report.VerifyP99 = percentiles(verifyLatency)
		report.Failures = failures.Load()

		if jsonOutput() {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		pterm.DefaultHeader.WithFullWidth().Println("订阅证明压测")
		if err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"阶段", "次数", "P50", "P99"},
			{"生成", fmt.Sprintf("%d", report.Proofs), report.GenerateP50.String(), report.GenerateP99.String()},
			{"验证", fmt.Sprintf("%d", report.Verifications), report.VerifyP50.String(), report.VerifyP99.String()},
		}).Render(); err != nil {
			return err
		}
		pterm.Info.Printfln("验证吞吐: %.0f 次/秒, 并发: %d", report.VerifyPerSecond, report.Concurrency)
		if report.Failures > 0 {
			pterm.Warning.Printfln("失败次数: %d", report.Failures)
		}
		for k, v := range engine.GetStats() {
			pterm.Debug.Printfln("%s=%v", k, v)
		}
		return nil
	},
}

// percentiles 返回 P50 和 P99
func percentiles(samples []time.Duration) (p50, p99 time.Duration) {
	if len(samples) == 0 {
		return 0, 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)*50/100], sorted[(len(sorted)*99)/100]
}

func init() {
	benchCmd.Flags().IntVar(&benchOpts.Proofs, "proofs", 50, "生成证明数量")
	benchCmd.Flags().IntVar(&benchOpts.Verifications, "verifications", 1000, "验证次数")
	benchCmd.Flags().IntVar(&benchOpts.Concurrency, "concurrency", 16, "并发数")
	benchCmd.Flags().StringVar(&benchOpts.MetricsAddr, "metrics-addr", "", "Prometheus 指标监听地址 (如 :9100)")
}
