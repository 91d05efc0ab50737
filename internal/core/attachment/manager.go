package attachment

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var logger = log.Logger("core/attachment")

// 对等节点数阈值
const (
	goodPeerThreshold = 1
	fullPeerThreshold = 4
)

// StateChangeFunc 状态变化回调
type StateChangeFunc func(old, new types.AttachmentState)

// Manager 连接状态机
type Manager struct {
	transport interfaces.Transport
	emitter   interfaces.Emitter
	reporter  metrics.Reporter

	// opMu 串行化 Attach / Detach / Refresh，保证事件按切换顺序发射
	opMu sync.Mutex

	mu        sync.RWMutex
	state     types.AttachmentState
	peers     int
	attached  chan struct{} // 进入已连接状态时关闭
	callbacks []StateChangeFunc
	closed    bool
}

// NewManager 创建状态机
//
// emitter 与 reporter 可以为 nil。
func NewManager(transport interfaces.Transport, emitter interfaces.Emitter, reporter metrics.Reporter) *Manager {
	return &Manager{
		transport: transport,
		emitter:   emitter,
		reporter:  reporter,
		state:     types.AttachmentDetached,
		attached:  make(chan struct{}),
	}
}

// StateForPeers 由对等节点数得到已连接状态
func StateForPeers(n int) types.AttachmentState {
	switch {
	case n >= fullPeerThreshold:
		return types.AttachmentFullyAttached
	case n >= goodPeerThreshold:
		return types.AttachmentAttachedGood
	default:
		return types.AttachmentAttachedWeak
	}
}

// State 当前状态
func (m *Manager) State() types.AttachmentState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Peers 最近一次观察到的对等节点数
func (m *Manager) Peers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peers
}

// IsAttached 是否已连接
func (m *Manager) IsAttached() bool {
	return m.State().IsAttached()
}

// Check 未连接时返回 ErrNotAttached
func (m *Manager) Check() error {
	if !m.IsAttached() {
		return ErrNotAttached
	}
	return nil
}

// OnStateChange 注册状态变化回调
func (m *Manager) OnStateChange(fn StateChangeFunc) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Attach 加入网络
//
// 已连接时直接返回；Join 失败时回到 Detached 并返回错误。
func (m *Manager) Attach(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.isClosed() {
		return ErrClosed
	}
	if m.IsAttached() {
		return nil
	}

	m.transition(types.AttachmentAttaching, 0)

	n, err := m.transport.Join(ctx)
	if err != nil {
		logger.Warn("加入网络失败", "error", err)
		m.transition(types.AttachmentDetached, 0)
		return fmt.Errorf("attach: %w", err)
	}

	m.transition(StateForPeers(n), n)
	return nil
}

// Detach 离开网络
//
// 未连接时直接返回。Leave 失败也会进入 Detached。
func (m *Manager) Detach(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.IsAttached() {
		return nil
	}

	m.transition(types.AttachmentDetaching, m.Peers())
	err := m.transport.Leave(ctx)
	m.transition(types.AttachmentDetached, 0)
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}

// Refresh 按传输层当前的对等节点数重新计算已连接状态
func (m *Manager) Refresh() types.AttachmentState {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.IsAttached() {
		return m.State()
	}
	n := m.transport.Peers()
	next := StateForPeers(n)
	m.transition(next, n)
	return next
}

// WaitAttached 阻塞直到已连接或 ctx 结束
func (m *Manager) WaitAttached(ctx context.Context) error {
	m.mu.RLock()
	ch := m.attached
	m.mu.RUnlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 断开网络并拒绝后续 Attach
func (m *Manager) Close(ctx context.Context) error {
	err := m.Detach(ctx)
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return err
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// transition 切换状态并通知，调用方持有 opMu
func (m *Manager) transition(next types.AttachmentState, peers int) {
	m.mu.Lock()
	old := m.state
	if old == next && m.peers == peers {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.peers = peers

	switch {
	case next.IsAttached() && !old.IsAttached():
		close(m.attached)
	case !next.IsAttached() && old.IsAttached():
		m.attached = make(chan struct{})
	}

	callbacks := make([]StateChangeFunc, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	logger.Info("连接状态变化", "from", old.String(), "to", next.String(), "peers", peers)

	if m.reporter != nil {
		m.reporter.AttachmentChanged(next.String())
	}
	if m.emitter != nil {
		if err := m.emitter.Emit(types.AttachmentUpdate{
			State:               next,
			PublicInternetReady: next.IsAttached(),
			Peers:               peers,
		}); err != nil {
			logger.Debug("发射连接事件失败", "error", err)
		}
	}
	for _, cb := range callbacks {
		cb(old, next)
	}
}
