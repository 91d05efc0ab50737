// Package eventbus 实现事件总线
package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("subscribe called with non-pointer type")
	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("emitter is closed")
)

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 事件总线
//
// 每个订阅者拥有独立的无界队列，慢消费者只会积压自己的队列，
// 不会阻塞发射者，也不会丢弃事件。同一订阅内事件先进先出。
type Bus struct {
	mu     sync.RWMutex
	closed bool

	// nodes 事件类型节点映射
	nodes map[reflect.Type]*node
}

var _ pkgif.EventBus = (*Bus)(nil)

// node 事件类型节点
type node struct {
	lk        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription // 订阅者列表
	nEmitters atomic.Int32    // 发射器引用计数
	keepLast  bool            // 是否保持最后一个事件（Stateful）
	last      interface{}     // 最后一个事件
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*node),
	}
}

// ============================================================================
// EventBus 接口实现
// ============================================================================

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType interface{}, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	elemType, err := elemTypeOf(eventType)
	if err != nil {
		return nil, err
	}

	settings := &pkgif.SubscriptionSettings{
		Buffer: 16, // 默认缓冲区大小
	}
	for _, opt := range opts {
		opt(settings)
	}

	sub := newSubscription(b, elemType, settings.Buffer)

	if err := b.withNode(elemType, func(n *node) {
		n.sinks = append(n.sinks, sub)

		// 如果是有状态节点，先投递最后的事件
		if n.keepLast && n.last != nil {
			sub.push(n.last)
		}
	}); err != nil {
		sub.shutdown()
		return nil, err
	}

	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType interface{}, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	elemType, err := elemTypeOf(eventType)
	if err != nil {
		return nil, err
	}

	settings := &pkgif.EmitterSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	var n *node
	if err := b.withNode(elemType, func(nd *node) {
		n = nd
		n.nEmitters.Add(1)
		if settings.Stateful {
			n.keepLast = true
		}
	}); err != nil {
		return nil, err
	}

	return &Emitter{
		bus:  b,
		node: n,
		typ:  elemType,
	}, nil
}

// GetAllEventTypes 返回所有已注册的事件类型
func (b *Bus) GetAllEventTypes() []interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]interface{}, 0, len(b.nodes))
	for typ := range b.nodes {
		types = append(types, reflect.Zero(typ).Interface())
	}
	return types
}

// Close 关闭总线
//
// 所有订阅的输出通道在排空当前队列后关闭。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	nodes := b.nodes
	b.nodes = make(map[reflect.Type]*node)
	b.mu.Unlock()

	for _, n := range nodes {
		n.lk.Lock()
		sinks := n.sinks
		n.sinks = nil
		n.lk.Unlock()
		for _, sub := range sinks {
			sub.finish()
		}
	}
	logger.Debug("事件总线已关闭", "types", len(nodes))
	return nil
}

// ============================================================================
// 内部方法
// ============================================================================

func elemTypeOf(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// withNode 在节点上执行操作
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}

	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
	return nil
}

// tryDropNode 尝试删除节点（如果没有订阅者和发射器）
func (b *Bus) tryDropNode(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}

	n.lk.Lock()
	defer n.lk.Unlock()
	if len(n.sinks) > 0 || n.nEmitters.Load() > 0 || n.keepLast {
		return
	}
	delete(b.nodes, typ)
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.Lock()
	n, ok := b.nodes[sub.typ]
	if !ok {
		b.mu.Unlock()
		return
	}

	n.lk.Lock()
	b.mu.Unlock()

	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
	shouldDrop := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if shouldDrop {
		b.tryDropNode(sub.typ)
	}
}

// emit 发射事件到所有订阅者
func (n *node) emit(event interface{}) {
	n.lk.Lock()
	defer n.lk.Unlock()

	if n.keepLast {
		n.last = event
	}
	for _, sub := range n.sinks {
		if backlog := sub.push(event); backlog > 0 && backlog%1024 == 0 {
			logger.Warn("慢消费者检测",
				"backlog", backlog,
				"type", n.typ)
		}
	}
}

// ============================================================================
// Emitter 实现
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	node      *node
	typ       reflect.Type
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件
func (e *Emitter) Emit(event interface{}) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	e.bus.mu.RLock()
	closed := e.bus.closed
	e.bus.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	e.node.emit(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.node.nEmitters.Add(-1) == 0 {
			e.bus.tryDropNode(e.typ)
		}
	})
	return nil
}
