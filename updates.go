package veilcore

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// UpdateCallback 更新事件回调
//
// 同一类事件按发生顺序串行回调；不同类事件在各自的协程中回调，彼此不保证顺序。
type UpdateCallback func(Update)

// updateTypes 订阅的事件类型，每种类型一个 pump
var updateTypes = []interface{}{
	new(types.LogUpdate),
	new(types.AttachmentUpdate),
	new(types.ValueChangeUpdate),
	new(types.ShutdownUpdate),
}

// subscriber 一个回调的全部订阅
type subscriber struct {
	subs []interfaces.Subscription
	wg   sync.WaitGroup
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		for _, sub := range s.subs {
			_ = sub.Close()
		}
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              订阅
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅全部更新事件，返回取消函数
//
// 事件在总线上无界排队，不会丢弃。核心关闭时已排队的事件（包括
// ShutdownUpdate）投递完毕后 pump 结束。可以在 Start 之前订阅。
func (c *Core) Subscribe(callback UpdateCallback) (unsubscribe func(), err error) {
	if callback == nil {
		return nil, fmt.Errorf("callback is nil")
	}
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	s := &subscriber{}
	for _, typ := range updateTypes {
		sub, err := c.bus.Subscribe(typ)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("subscribe %T: %w", typ, err)
		}
		s.subs = append(s.subs, sub)
	}

	c.subsMu.Lock()
	c.subSeq++
	id := c.subSeq
	c.subs[id] = s
	c.subsMu.Unlock()

	for _, sub := range s.subs {
		s.wg.Add(1)
		go c.pump(s, sub, callback)
	}

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
		s.close()
	}, nil
}

// pump 把一个事件类型的订阅串行地交给回调
func (c *Core) pump(s *subscriber, sub interfaces.Subscription, callback UpdateCallback) {
	defer s.wg.Done()
	for ev := range sub.Out() {
		u, ok := ev.(types.Update)
		if !ok {
			continue
		}
		callback(u)
	}
}

// Subscribers 当前订阅者数量
func (c *Core) Subscribers() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs)
}

// ════════════════════════════════════════════════════════════════════════════
//                              日志镜像
// ════════════════════════════════════════════════════════════════════════════

// eventbusComponent 事件总线自身的日志组件
//
// 总线在持有类型锁时可能记录慢消费者告警，镜像它会重入同一把锁。
const eventbusComponent = "core/eventbus"

// updateLevel 作为 LogUpdate 镜像的最低级别
func (c *Core) updateLevel() slog.Level {
	if level, ok := log.ParseLevel(c.cfg.Logging.UpdateLevel); ok {
		return level
	}
	return slog.LevelWarn
}

// forwardLog 把日志记录转为 LogUpdate
func (c *Core) forwardLog(rec log.Record) {
	if rec.Component == eventbusComponent {
		return
	}
	_ = c.logEmitter.Emit(types.LogUpdate{
		Level:     levelName(rec.Level),
		Message:   rec.Message,
		Component: rec.Component,
		Time:      rec.Time,
	})
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "Error"
	case l >= slog.LevelWarn:
		return "Warn"
	case l >= slog.LevelInfo:
		return "Info"
	default:
		return "Debug"
	}
}
