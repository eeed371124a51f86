package subproof

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus 指标：证明生成与验证的耗时、结果分布，以及存储与工作池状态
var (
	proofGenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "subproof",
		Name:      "proof_generation_duration_seconds",
		Help:      "Duration of subscription proof generation, including queue wait.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
	proofVerificationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "subproof",
		Name:      "proof_verification_duration_seconds",
		Help:      "Duration of subscription proof verification.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
	proofGenerationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subproof",
			Name:      "proof_generation_total",
			Help:      "Total number of proof generations by outcome.",
		},
		[]string{"outcome"}, // 标签：ok 或错误码
	)
	proofVerificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subproof",
			Name:      "proof_verification_total",
			Help:      "Total number of proof verifications by outcome.",
		},
		[]string{"outcome"}, // 标签：valid, invalid, expired, insufficient_tier 或错误码
	)
	activeSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subproof",
		Name:      "active_subscriptions",
		Help:      "Number of subscriptions currently held in the store.",
	})
	workerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subproof",
		Name:      "worker_queue_depth",
		Help:      "Number of proof jobs waiting for a worker.",
	})
	subscriptionsPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subproof",
		Name:      "subscriptions_purged_total",
		Help:      "Total number of expired subscriptions removed by cleanup.",
	})
)

func init() {
	prometheus.MustRegister(
		proofGenerationDuration,
		proofVerificationDuration,
		proofGenerationTotal,
		proofVerificationTotal,
		activeSubscriptions,
		workerQueueDepth,
		subscriptionsPurgedTotal,
	)
}

// observeGeneration 记录一次证明生成
func observeGeneration(start time.Time, err error) {
	proofGenerationDuration.Observe(time.Since(start).Seconds())
	proofGenerationTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

// observeVerification 记录一次证明验证
func observeVerification(start time.Time, outcome string) {
	proofVerificationDuration.Observe(time.Since(start).Seconds())
	proofVerificationTotal.WithLabelValues(outcome).Inc()
}

// recordPurged 记录清理删除的订阅数
func recordPurged(n int) {
	if n > 0 {
		subscriptionsPurgedTotal.Add(float64(n))
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}
