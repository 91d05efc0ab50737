package eventbus

import (
	"reflect"
	"sync"
)

// ============================================================================
// Subscription 实现
// ============================================================================

// Subscription 订阅
//
// 事件先进入无界队列，再由 pump 协程按顺序写入输出通道。
type Subscription struct {
	bus *Bus
	typ reflect.Type
	out chan interface{}

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []interface{}
	draining bool // 总线关闭：排空队列后结束
	stopped  bool // 订阅关闭：立即结束

	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(bus *Bus, typ reflect.Type, buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	s := &Subscription{
		bus:  bus,
		typ:  typ,
		out:  make(chan interface{}, buffer),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

// Out 返回事件通道
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Close 取消订阅
//
// 并发安全，可重复调用。未投递的事件被丢弃，输出通道随后关闭。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.removeSub(s)
		s.shutdown()
	})
	return nil
}

// push 入队，返回当前积压数
func (s *Subscription) push(event interface{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.draining {
		return 0
	}
	s.queue = append(s.queue, event)
	s.cond.Signal()
	return len(s.queue)
}

// shutdown 立即停止
func (s *Subscription) shutdown() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		s.queue = nil
		close(s.done)
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// finish 排空队列后停止
func (s *Subscription) finish() {
	s.mu.Lock()
	s.draining = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped && !s.draining {
			s.cond.Wait()
		}
		if s.stopped || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
