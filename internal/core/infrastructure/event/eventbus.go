// 基于asaskevich/EventBus的事件总线实现

package event

import (
	"context"
	"errors"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
)

// ErrBusNotRunning 事件总线未运行
var ErrBusNotRunning = errors.New("event bus not running")

// EventBus 是基于asaskevich/EventBus的实现
//
// 创建后即处于运行状态；Stop 之后 Publish 静默丢弃，
// 避免关闭阶段的迟到事件触发已释放的订阅者。
type EventBus struct {
	bus     evbus.Bus
	running atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New 创建事件总线实例
func New() *EventBus {
	eb := &EventBus{bus: evbus.New()}
	eb.running.Store(true)
	return eb
}

// Subscribe 实现订阅
func (eb *EventBus) Subscribe(eventType event.EventType, handler interface{}) error {
	return eb.bus.Subscribe(string(eventType), handler)
}

// SubscribeAsync 实现异步订阅
func (eb *EventBus) SubscribeAsync(eventType event.EventType, handler interface{}, transactional bool) error {
	return eb.bus.SubscribeAsync(string(eventType), handler, transactional)
}

// Publish 实现发布
func (eb *EventBus) Publish(eventType event.EventType, args ...interface{}) {
	if !eb.running.Load() {
		eb.dropped.Add(1)
		return
	}
	eb.published.Add(1)
	eb.bus.Publish(string(eventType), args...)
}

// Unsubscribe 取消订阅
func (eb *EventBus) Unsubscribe(eventType event.EventType, handler interface{}) error {
	return eb.bus.Unsubscribe(string(eventType), handler)
}

// WaitAsync 等待异步处理完成
func (eb *EventBus) WaitAsync() {
	eb.bus.WaitAsync()
}

// HasCallback 检查是否有回调
func (eb *EventBus) HasCallback(eventType event.EventType) bool {
	return eb.bus.HasCallback(string(eventType))
}

// Start 启动事件总线
func (eb *EventBus) Start(ctx context.Context) error {
	eb.running.Store(true)
	return nil
}

// Stop 停止事件总线
func (eb *EventBus) Stop(ctx context.Context) error {
	if !eb.running.CompareAndSwap(true, false) {
		return ErrBusNotRunning
	}

	// 等待异步处理完成，受 ctx 限制
	done := make(chan struct{})
	go func() {
		eb.bus.WaitAsync()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning 检查事件总线是否运行中
func (eb *EventBus) IsRunning() bool {
	return eb.running.Load()
}

// Stats 返回已发布与丢弃的事件数
func (eb *EventBus) Stats() (published, dropped uint64) {
	return eb.published.Load(), eb.dropped.Load()
}

var _ event.EventBus = (*EventBus)(nil)
