package subproof

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/subproof/internal/core/subproof/testutil"
	"github.com/weisyn/subproof/pkg/types"
)

// ============================================================================
// worker_pool.go 测试
// ============================================================================

func TestProofWorkerPool_Submit(t *testing.T) {
	pool := NewProofWorkerPool(2, 4, testutil.NewTestLogger())
	defer pool.Stop(context.Background())

	want := &types.SubscriptionProof{MinTier: types.TierPro}
	got, err := pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		return want, nil
	})
	require.NoError(t, err)
	require.Same(t, want, got)

	stats := pool.GetStats()
	require.EqualValues(t, 1, stats["processed_count"])
	require.EqualValues(t, 0, stats["error_count"])
	require.Equal(t, 2, stats["worker_count"])
	require.Equal(t, 4, stats["queue_capacity"])
}

func TestProofWorkerPool_PropagatesError(t *testing.T) {
	pool := NewProofWorkerPool(1, 1, testutil.NewTestLogger())
	defer pool.Stop(context.Background())

	_, err := pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		return nil, WrapSubscriptionExpiredError("x")
	})
	require.ErrorIs(t, err, ErrSubscriptionExpired)
	require.EqualValues(t, 1, pool.GetStats()["error_count"])
}

func TestProofWorkerPool_RecoversPanic(t *testing.T) {
	pool := NewProofWorkerPool(1, 1, testutil.NewTestLogger())
	defer pool.Stop(context.Background())

	_, err := pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		panic("witness 42")
	})
	require.ErrorIs(t, err, ErrZKProof)
	require.NotContains(t, err.Error(), "42")

	// 工作协程在 panic 后仍然可用
	_, err = pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		return &types.SubscriptionProof{}, nil
	})
	require.NoError(t, err)
}

// blockPool 占满唯一的工作协程和队列，返回释放函数
func blockPool(t *testing.T, pool *ProofWorkerPool) (release func()) {
	t.Helper()

	gate := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	go pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		close(started)
		<-gate
		return nil, nil
	})
	<-started

	// 填满队列
	go pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		<-gate
		return nil, nil
	})
	require.Eventually(t, func() bool { return pool.QueueDepth() == 1 }, time.Second, time.Millisecond)

	return func() { once.Do(func() { close(gate) }) }
}

func TestProofWorkerPool_BackpressureTimeout(t *testing.T) {
	pool := NewProofWorkerPool(1, 1, testutil.NewTestLogger())
	defer pool.Stop(context.Background())

	release := blockPool(t, pool)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := pool.Submit(ctx, func() (*types.SubscriptionProof, error) {
		t.Error("job must not run")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, IsRetryable(err))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.EqualValues(t, 1, pool.GetStats()["timeout_count"])
}

func TestProofWorkerPool_TimeoutWhileRunning(t *testing.T) {
	pool := NewProofWorkerPool(1, 1, testutil.NewTestLogger())
	defer pool.Stop(context.Background())

	gate := make(chan struct{})
	defer close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := pool.Submit(ctx, func() (*types.SubscriptionProof, error) {
		<-gate
		return &types.SubscriptionProof{}, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestProofWorkerPool_SkipsAbandonedJobs(t *testing.T) {
	pool := NewProofWorkerPool(1, 2, testutil.NewTestLogger())
	defer pool.Stop(context.Background())

	gate := make(chan struct{})
	started := make(chan struct{})
	go pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		close(started)
		<-gate
		return nil, nil
	})
	<-started

	ran := make(chan struct{}, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Submit(ctx, func() (*types.SubscriptionProof, error) {
		ran <- struct{}{}
		return nil, nil
	})
	require.ErrorIs(t, err, ErrTimeout)

	close(gate)
	_, err = pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		return &types.SubscriptionProof{}, nil
	})
	require.NoError(t, err)
	require.Empty(t, ran)
}

func TestProofWorkerPool_Stop(t *testing.T) {
	pool := NewProofWorkerPool(2, 2, testutil.NewTestLogger())

	require.NoError(t, pool.Stop(context.Background()))
	require.NoError(t, pool.Stop(context.Background()))
	require.Equal(t, WorkerHealthUnhealthy, pool.GetHealthStatus())

	_, err := pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, ErrEngineStopped)
}

func TestProofWorkerPool_StopReleasesQueuedJobs(t *testing.T) {
	pool := NewProofWorkerPool(1, 1, testutil.NewTestLogger())

	gate := make(chan struct{})
	started := make(chan struct{})
	go pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
		close(started)
		<-gate
		return nil, nil
	})
	<-started

	queued := make(chan error, 1)
	go func() {
		_, err := pool.Submit(context.Background(), func() (*types.SubscriptionProof, error) {
			return &types.SubscriptionProof{}, nil
		})
		queued <- err
	}()
	require.Eventually(t, func() bool { return pool.QueueDepth() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- pool.Stop(context.Background()) }()
	require.Eventually(t, pool.stopped.Load, time.Second, time.Millisecond)
	close(gate)

	require.NoError(t, <-stopped)
	select {
	case err := <-queued:
		require.ErrorIs(t, err, ErrEngineStopped)
	case <-time.After(time.Second):
		t.Fatal("queued job was not released")
	}
}

func TestProofWorkerPool_HealthStatus(t *testing.T) {
	pool := NewProofWorkerPool(1, 1, testutil.NewTestLogger())
	defer pool.Stop(context.Background())
	require.Equal(t, WorkerHealthHealthy, pool.GetHealthStatus())

	fail := func() (*types.SubscriptionProof, error) { return nil, ErrZKProof }
	ok := func() (*types.SubscriptionProof, error) { return &types.SubscriptionProof{}, nil }

	for i := 0; i < 4; i++ {
		_, _ = pool.Submit(context.Background(), ok)
	}
	for i := 0; i < 6; i++ {
		_, _ = pool.Submit(context.Background(), fail)
	}
	require.Equal(t, WorkerHealthDegraded, pool.GetHealthStatus())

	for i := 0; i < 90; i++ {
		_, _ = pool.Submit(context.Background(), fail)
	}
	require.Equal(t, WorkerHealthUnhealthy, pool.GetHealthStatus())
}
