package subproof

import (
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/event"
)

// 事件载荷只包含订阅 ID 与结果标志；订阅处理函数签名须与之一致：
//
//	subscription.created  func(id string)
//	subscription.rotated  func(id string)
//	subscription.purged   func(ids []string)
//	proof.generated       func(id string, minTier types.SubscriptionTier)
//	proof.verified        func(isValid, tierSufficient bool)

func (e *Engine) publish(eventType event.EventType, args ...interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventType, args...)
}
