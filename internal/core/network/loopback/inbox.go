package loopback

import (
	"sync"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// change 一次待推送的值变化
type change struct {
	key    types.RecordKey
	subkey types.ValueSubkey
	value  types.SignedValueData
}

// inbox 节点的推送队列
//
// 无界队列加单个投递协程，推送方从不阻塞，同一节点按入队顺序投递。
type inbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []change
	stopped bool
}

func newInbox() *inbox {
	b := &inbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *inbox) push(c change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.queue = append(b.queue, c)
	b.cond.Signal()
}

func (b *inbox) close() {
	b.mu.Lock()
	b.stopped = true
	b.queue = nil
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *inbox) run(deliver func(change)) {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.stopped {
			b.cond.Wait()
		}
		if b.stopped {
			b.mu.Unlock()
			return
		}
		c := b.queue[0]
		b.queue[0] = change{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		deliver(c)
	}
}
