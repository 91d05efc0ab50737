package mocks

import (
	"reflect"
	"sync"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

// MockEventBus 模拟 EventBus 接口实现
//
// 发射的事件同步记录在 Events 中，不经过任何队列，方便断言顺序。
type MockEventBus struct {
	mu sync.Mutex

	// 可覆盖的方法
	SubscribeFunc func(eventType interface{}, opts ...interfaces.SubscriptionOpt) (interfaces.Subscription, error)
	EmitterFunc   func(eventType interface{}, opts ...interfaces.EmitterOpt) (interfaces.Emitter, error)

	events []interface{}
	types  []interface{}
	closed bool
}

var _ interfaces.EventBus = (*MockEventBus)(nil)

// NewMockEventBus 创建 MockEventBus
func NewMockEventBus() *MockEventBus {
	return &MockEventBus{}
}

// Subscribe 返回一个永不产生事件的订阅
func (m *MockEventBus) Subscribe(eventType interface{}, opts ...interfaces.SubscriptionOpt) (interfaces.Subscription, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(eventType, opts...)
	}
	return &MockSubscription{ch: make(chan interface{})}, nil
}

// Emitter 获取发射器
func (m *MockEventBus) Emitter(eventType interface{}, opts ...interfaces.EmitterOpt) (interfaces.Emitter, error) {
	if m.EmitterFunc != nil {
		return m.EmitterFunc(eventType, opts...)
	}
	m.mu.Lock()
	m.types = append(m.types, eventType)
	m.mu.Unlock()
	return &MockEmitter{bus: m}, nil
}

// GetAllEventTypes 返回请求过发射器的事件类型
func (m *MockEventBus) GetAllEventTypes() []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interface{}(nil), m.types...)
}

// Close 关闭总线
func (m *MockEventBus) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Events 返回所有已发射的事件
func (m *MockEventBus) Events() []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interface{}(nil), m.events...)
}

// EventsOf 返回与 sample 同类型的已发射事件
func (m *MockEventBus) EventsOf(sample interface{}) []interface{} {
	want := reflect.TypeOf(sample)
	var out []interface{}
	for _, ev := range m.Events() {
		if reflect.TypeOf(ev) == want {
			out = append(out, ev)
		}
	}
	return out
}

func (m *MockEventBus) record(ev interface{}) {
	m.mu.Lock()
	if !m.closed {
		m.events = append(m.events, ev)
	}
	m.mu.Unlock()
}

// MockEmitter 模拟 Emitter 接口实现
type MockEmitter struct {
	bus *MockEventBus
}

// Emit 记录事件
func (e *MockEmitter) Emit(event interface{}) error {
	e.bus.record(event)
	return nil
}

// Close 关闭发射器
func (e *MockEmitter) Close() error {
	return nil
}

// MockSubscription 模拟 Subscription 接口实现
type MockSubscription struct {
	ch   chan interface{}
	once sync.Once
}

// Out 返回事件通道
func (s *MockSubscription) Out() <-chan interface{} {
	return s.ch
}

// Close 取消订阅
func (s *MockSubscription) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}
