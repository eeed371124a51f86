package subproof

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/subproof/pkg/types"
)

// WorkerHealthStatus 工作池健康状态
type WorkerHealthStatus string

const (
	WorkerHealthHealthy   WorkerHealthStatus = "healthy"
	WorkerHealthDegraded  WorkerHealthStatus = "degraded"
	WorkerHealthUnhealthy WorkerHealthStatus = "unhealthy"
)

// proofJob 一次证明生成任务
type proofJob struct {
	ctx  context.Context
	run  func() (*types.SubscriptionProof, error)
	done chan proofResult
}

type proofResult struct {
	proof *types.SubscriptionProof
	err   error
}

// ProofWorkerPool 有界证明生成工作池
//
// 🎯 **核心职责**：
// - 固定数量的工作协程，Groth16 证明生成是 CPU 密集任务
// - 有界队列提供背压：队列满时提交方阻塞，直到有空位或 ctx 到期
// - 停止后新提交和排队中的任务返回 ErrEngineStopped
type ProofWorkerPool struct {
	queue  chan *proofJob
	stopCh chan struct{}
	wg     sync.WaitGroup

	workerCount int
	stopped     atomic.Bool
	stopOnce    sync.Once

	processedCount atomic.Uint64
	errorCount     atomic.Uint64
	timeoutCount   atomic.Uint64

	logger log.Logger
}

// NewProofWorkerPool 创建并启动工作池
func NewProofWorkerPool(workers, queueSize int, logger log.Logger) *ProofWorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	p := &ProofWorkerPool{
		queue:       make(chan *proofJob, queueSize),
		stopCh:      make(chan struct{}),
		workerCount: workers,
		logger:      logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit 提交任务并等待结果
//
// ctx 在排队或等待期间到期返回 ErrTimeout；任务一旦被工作协程取走就会执行完，
// 结果在调用方已超时的情况下被丢弃。
func (p *ProofWorkerPool) Submit(ctx context.Context, run func() (*types.SubscriptionProof, error)) (*types.SubscriptionProof, error) {
	if p.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if err := ctxError(ctx, "submit"); err != nil {
		p.timeoutCount.Add(1)
		return nil, err
	}

	job := &proofJob{ctx: ctx, run: run, done: make(chan proofResult, 1)}

	select {
	case p.queue <- job:
		workerQueueDepth.Set(float64(len(p.queue)))
	case <-ctx.Done():
		p.timeoutCount.Add(1)
		return nil, WrapTimeoutError("queue", ctx.Err())
	case <-p.stopCh:
		return nil, ErrEngineStopped
	}

	select {
	case res := <-job.done:
		return res.proof, res.err
	case <-ctx.Done():
		p.timeoutCount.Add(1)
		return nil, WrapTimeoutError("generate", ctx.Err())
	case <-p.stopCh:
		// 停止时正在执行的任务仍会完成
		select {
		case res := <-job.done:
			return res.proof, res.err
		default:
			return nil, ErrEngineStopped
		}
	}
}

// worker 工作协程主循环
func (p *ProofWorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case job := <-p.queue:
			workerQueueDepth.Set(float64(len(p.queue)))
			if p.stopped.Load() {
				job.done <- proofResult{err: ErrEngineStopped}
				continue
			}
			p.execute(id, job)
		}
	}
}

// execute 执行单个任务；排队期间调用方已放弃的任务直接跳过
func (p *ProofWorkerPool) execute(id int, job *proofJob) {
	if err := job.ctx.Err(); err != nil {
		job.done <- proofResult{err: WrapTimeoutError("queue", err)}
		return
	}

	var res proofResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				// panic 内容可能包含见证值，只记录工作协程编号
				if p.logger != nil {
					p.logger.Errorf("工作协程%d证明生成发生panic", id)
				}
				res = proofResult{err: WrapZKProofError("panic", nil)}
			}
		}()
		proof, err := job.run()
		res = proofResult{proof: proof, err: err}
	}()

	p.processedCount.Add(1)
	if res.err != nil {
		p.errorCount.Add(1)
	}
	job.done <- res
}

// Stop 停止工作池，等待执行中的任务完成
func (p *ProofWorkerPool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stopCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return WrapTimeoutError("stop_worker_pool", ctx.Err())
	}

	// 通知仍在队列中的任务
	for {
		select {
		case job := <-p.queue:
			job.done <- proofResult{err: ErrEngineStopped}
		default:
			workerQueueDepth.Set(0)
			return nil
		}
	}
}

// QueueDepth 当前排队任务数
func (p *ProofWorkerPool) QueueDepth() int {
	return len(p.queue)
}

// GetHealthStatus 根据失败率判断健康状态
//
// 失败率只统计已执行的任务；策略性失败（过期、等级不足）同样计入，
// 因此阈值较宽松。
func (p *ProofWorkerPool) GetHealthStatus() WorkerHealthStatus {
	if p.stopped.Load() {
		return WorkerHealthUnhealthy
	}
	processed := p.processedCount.Load()
	if processed < 10 {
		return WorkerHealthHealthy
	}
	failureRate := float64(p.errorCount.Load()) / float64(processed)
	switch {
	case failureRate > 0.9:
		return WorkerHealthUnhealthy
	case failureRate > 0.5:
		return WorkerHealthDegraded
	default:
		return WorkerHealthHealthy
	}
}

// GetStats 获取统计信息
func (p *ProofWorkerPool) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"worker_count":    p.workerCount,
		"queue_capacity":  cap(p.queue),
		"queue_depth":     len(p.queue),
		"processed_count": p.processedCount.Load(),
		"error_count":     p.errorCount.Load(),
		"timeout_count":   p.timeoutCount.Load(),
		"health_status":   string(p.GetHealthStatus()),
	}
}
