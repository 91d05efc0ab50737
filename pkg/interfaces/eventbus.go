package interfaces

// EventBus 定义事件总线接口
//
// EventBus 提供类型安全的事件发布/订阅机制。事件按类型排队，不丢弃。
type EventBus interface {
	// Subscribe 订阅指定类型的事件，eventType 必须是指针，如 new(types.LogUpdate)
	Subscribe(eventType interface{}, opts ...SubscriptionOpt) (Subscription, error)
	// Emitter 获取指定事件类型的发射器
	Emitter(eventType interface{}, opts ...EmitterOpt) (Emitter, error)
	// GetAllEventTypes 返回所有已注册的事件类型
	GetAllEventTypes() []interface{}
	// Close 关闭总线，所有订阅的通道随之关闭
	Close() error
}

// Subscription 定义事件订阅接口
type Subscription interface {
	// Out 返回接收事件的通道
	Out() <-chan interface{}
	// Close 取消订阅
	Close() error
}

// Emitter 定义事件发射器接口
type Emitter interface {
	// Emit 发射事件
	Emit(event interface{}) error
	// Close 关闭发射器
	Close() error
}

// SubscriptionOpt 订阅选项函数类型
type SubscriptionOpt func(*SubscriptionSettings)

// EmitterOpt 发射器选项函数类型
type EmitterOpt func(*EmitterSettings)

// SubscriptionSettings 订阅设置（导出以供实现使用）
type SubscriptionSettings struct {
	// Buffer 输出通道缓冲区大小；超出部分进入无界队列
	Buffer int
}

// EmitterSettings 发射器设置（导出以供实现使用）
type EmitterSettings struct {
	Stateful bool
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}

// Stateful 设置发射器为有状态模式
func Stateful() EmitterOpt {
	return func(s *EmitterSettings) {
		s.Stateful = true
	}
}
