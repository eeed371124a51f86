// Package event 提供订阅证明引擎的事件总线接口定义
//
// 事件只携带订阅 ID 等不敏感标识，订阅者需要更多信息时自行查询。
package event

import "context"

// EventType 事件类型
type EventType string

// 订阅生命周期事件
const (
	EventTypeSubscriptionCreated EventType = "subscription.created"
	EventTypeSubscriptionRotated EventType = "subscription.rotated"
	EventTypeSubscriptionPurged  EventType = "subscription.purged"
	EventTypeProofGenerated      EventType = "proof.generated"
	EventTypeProofVerified       EventType = "proof.verified"
)

// EventBus 事件总线接口
//
// 处理函数签名与发布参数一一对应（由 asaskevich/EventBus 反射调用）。
type EventBus interface {
	// Subscribe 订阅事件（同步回调）
	Subscribe(eventType EventType, handler interface{}) error
	// SubscribeAsync 异步订阅事件
	SubscribeAsync(eventType EventType, handler interface{}, transactional bool) error
	// Publish 发布事件；总线未运行时丢弃
	Publish(eventType EventType, args ...interface{})
	// Unsubscribe 取消订阅
	Unsubscribe(eventType EventType, handler interface{}) error
	// WaitAsync 等待所有异步处理完成
	WaitAsync()
	// HasCallback 检查是否有回调函数
	HasCallback(eventType EventType) bool

	// Start 启动事件总线
	Start(ctx context.Context) error
	// Stop 停止事件总线并等待异步处理完成
	Stop(ctx context.Context) error
	// IsRunning 检查事件总线是否运行中
	IsRunning() bool
}
