package watch

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var logger = log.Logger("core/dht/watch")

// 默认参数
const (
	DefaultExpiration    = 10 * time.Minute
	DefaultMaxExpiration = time.Hour
	DefaultSweepInterval = time.Second
)

// Config 监听管理配置
type Config struct {
	// DefaultExpiration 未指定过期时间时的有效期
	DefaultExpiration time.Duration
	// MaxExpiration 有效期上限
	MaxExpiration time.Duration
	// SweepInterval 后台清理间隔
	SweepInterval time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		DefaultExpiration: DefaultExpiration,
		MaxExpiration:     DefaultMaxExpiration,
		SweepInterval:     DefaultSweepInterval,
	}
}

// Registration 一条监听注册
type Registration struct {
	ID         types.WatchID
	Key        types.RecordKey
	Subkeys    types.ValueSubkeyRangeSet
	Expiration time.Time
	// Count 剩余通知次数，WatchCountUnlimited 表示不限
	Count  uint32
	Safety types.SafetySelection
}

// Unlimited 是否不限次数
func (r Registration) Unlimited() bool {
	return r.Count == types.WatchCountUnlimited
}

// IdleFunc 某条记录的最后一条注册因过期或耗尽被移除时调用
type IdleFunc func(key types.RecordKey)

// ============================================================================
//                              Manager
// ============================================================================

// Manager 监听注册表
type Manager struct {
	cfg      Config
	clock    clock.Clock
	emitter  interfaces.Emitter
	reporter metrics.Reporter

	mu      sync.Mutex
	byKey   map[types.RecordKey][]*Registration
	idle    []IdleFunc
	started bool
	closed  bool

	stop chan struct{}
	done chan struct{}
}

// NewManager 创建监听管理器
//
// clk 为 nil 时使用系统时钟；emitter 与 reporter 可以为 nil。
func NewManager(cfg Config, clk clock.Clock, emitter interfaces.Emitter, reporter metrics.Reporter) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.DefaultExpiration <= 0 {
		cfg.DefaultExpiration = DefaultExpiration
	}
	if cfg.MaxExpiration < cfg.DefaultExpiration {
		cfg.MaxExpiration = cfg.DefaultExpiration
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Manager{
		cfg:      cfg,
		clock:    clk,
		emitter:  emitter,
		reporter: reporter,
		byKey:    make(map[types.RecordKey][]*Registration),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnIdle 注册空闲回调
func (m *Manager) OnIdle(fn IdleFunc) {
	m.mu.Lock()
	m.idle = append(m.idle, fn)
	m.mu.Unlock()
}

// Start 启动后台清理
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	go m.sweepLoop()
}

// Close 停止清理并丢弃全部注册，不发出失效通知，同时关闭 emitter
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	m.byKey = make(map[types.RecordKey][]*Registration)
	m.mu.Unlock()

	close(m.stop)
	if started {
		<-m.done
	}
	if m.emitter != nil {
		return m.emitter.Close()
	}
	return nil
}

func (m *Manager) sweepLoop() {
	defer close(m.done)
	ticker := m.clock.Ticker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug("清理过期监听", "count", n)
			}
		}
	}
}

// ============================================================================
//                              注册与取消
// ============================================================================

// Add 添加一条注册
//
// expiration 为零值时取默认有效期，超过上限时截断；count 为 0 表示不限次数。
func (m *Manager) Add(key types.RecordKey, subkeys types.ValueSubkeyRangeSet, expiration time.Time, count uint32, safety types.SafetySelection) (Registration, error) {
	if subkeys.IsEmpty() {
		return Registration{}, ErrNoSubkeys
	}
	now := m.clock.Now()
	switch {
	case expiration.IsZero():
		expiration = now.Add(m.cfg.DefaultExpiration)
	case !expiration.After(now):
		return Registration{}, ErrExpired
	case expiration.Sub(now) > m.cfg.MaxExpiration:
		expiration = now.Add(m.cfg.MaxExpiration)
	}
	if count == 0 {
		count = types.WatchCountUnlimited
	}

	reg := &Registration{
		ID:         types.WatchID(uuid.NewString()),
		Key:        key,
		Subkeys:    subkeys,
		Expiration: expiration,
		Count:      count,
		Safety:     safety,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Registration{}, ErrClosed
	}
	m.byKey[key] = append(m.byKey[key], reg)
	logger.Debug("添加监听", "key", key.String(), "id", string(reg.ID), "subkeys", subkeys.String())
	return *reg, nil
}

// Remove 按标识移除一条注册，返回是否存在
func (m *Manager) Remove(key types.RecordKey, id types.WatchID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs := m.byKey[key]
	for i, r := range regs {
		if r.ID == id {
			m.setLocked(key, append(regs[:i:i], regs[i+1:]...))
			return true
		}
	}
	return false
}

// Cancel 从记录的全部注册中减去 subkeys
//
// subkeys 为空时移除全部注册。返回是否仍有注册存活。
func (m *Manager) Cancel(key types.RecordKey, subkeys types.ValueSubkeyRangeSet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	regs, ok := m.byKey[key]
	if !ok {
		return false
	}
	if subkeys.IsEmpty() {
		delete(m.byKey, key)
		return false
	}
	kept := regs[:0]
	for _, r := range regs {
		r.Subkeys = r.Subkeys.Difference(subkeys)
		if !r.Subkeys.IsEmpty() {
			kept = append(kept, r)
		}
	}
	m.setLocked(key, kept)
	return len(kept) > 0
}

// Drop 移除记录的全部注册并为每条发出失效通知，返回被移除的数量
func (m *Manager) Drop(key types.RecordKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs := m.byKey[key]
	delete(m.byKey, key)
	for _, r := range regs {
		m.emitDeadLocked(r)
	}
	return len(regs)
}

func (m *Manager) setLocked(key types.RecordKey, regs []*Registration) {
	if len(regs) == 0 {
		delete(m.byKey, key)
		return
	}
	m.byKey[key] = regs
}

// ============================================================================
//                              通知
// ============================================================================

// Notify 向覆盖 subkey 的每条注册发出一次变化通知，返回发出的通知数
//
// 通知在持锁期间发出，同一记录的通知顺序与调用顺序一致。
func (m *Manager) Notify(key types.RecordKey, subkey types.ValueSubkey, value *types.ValueData) int {
	now := m.clock.Now()

	m.mu.Lock()
	regs := m.byKey[key]
	if len(regs) == 0 {
		m.mu.Unlock()
		return 0
	}

	sent := 0
	kept := make([]*Registration, 0, len(regs))
	for _, r := range regs {
		if now.After(r.Expiration) {
			m.emitDeadLocked(r)
			continue
		}
		if !r.Subkeys.Contains(subkey) {
			kept = append(kept, r)
			continue
		}
		if !r.Unlimited() {
			r.Count--
		}
		m.emitLocked(types.ValueChangeUpdate{
			Key:     key,
			Subkeys: types.SingleSubkey(subkey),
			Count:   r.Count,
			Value:   cloneValue(value),
			WatchID: r.ID,
		})
		sent++
		if r.Count == 0 {
			m.emitDeadLocked(r)
			continue
		}
		kept = append(kept, r)
	}
	m.setLocked(key, kept)
	idle := len(kept) == 0
	callbacks := m.idleCallbacksLocked(idle)
	m.mu.Unlock()

	if m.reporter != nil {
		for i := 0; i < sent; i++ {
			m.reporter.WatchNotified()
		}
	}
	for _, fn := range callbacks {
		fn(key)
	}
	return sent
}

// Sweep 移除全部过期注册，返回移除的数量
func (m *Manager) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	removed := 0
	var idleKeys []types.RecordKey
	for key, regs := range m.byKey {
		kept := regs[:0]
		for _, r := range regs {
			if now.After(r.Expiration) {
				m.emitDeadLocked(r)
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			idleKeys = append(idleKeys, key)
		}
		m.setLocked(key, kept)
	}
	callbacks := m.idleCallbacksLocked(len(idleKeys) > 0)
	m.mu.Unlock()

	for _, key := range idleKeys {
		for _, fn := range callbacks {
			fn(key)
		}
	}
	return removed
}

func (m *Manager) idleCallbacksLocked(idle bool) []IdleFunc {
	if !idle || len(m.idle) == 0 {
		return nil
	}
	return append([]IdleFunc(nil), m.idle...)
}

func (m *Manager) emitDeadLocked(r *Registration) {
	logger.Debug("监听失效", "key", r.Key.String(), "id", string(r.ID))
	m.emitLocked(types.ValueChangeUpdate{Key: r.Key, Count: 0, WatchID: r.ID})
}

func (m *Manager) emitLocked(u types.ValueChangeUpdate) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.Emit(u); err != nil {
		logger.Warn("发射监听通知失败", "key", u.Key.String(), "error", err)
	}
}

// ============================================================================
//                              查询
// ============================================================================

// Coverage 记录全部注册的子键并集与最晚过期时间
func (m *Manager) Coverage(key types.RecordKey) (types.ValueSubkeyRangeSet, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs := m.byKey[key]
	if len(regs) == 0 {
		return types.ValueSubkeyRangeSet{}, time.Time{}, false
	}
	var subkeys types.ValueSubkeyRangeSet
	var exp time.Time
	for _, r := range regs {
		subkeys = subkeys.Union(r.Subkeys)
		if r.Expiration.After(exp) {
			exp = r.Expiration
		}
	}
	return subkeys, exp, true
}

// Registrations 记录的全部注册副本
func (m *Manager) Registrations(key types.RecordKey) []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Registration, 0, len(m.byKey[key]))
	for _, r := range m.byKey[key] {
		out = append(out, *r)
	}
	return out
}

// All 全部注册副本，按记录键与过期时间排序
func (m *Manager) All() []Registration {
	m.mu.Lock()
	var out []Registration
	for _, regs := range m.byKey {
		for _, r := range regs {
			out = append(out, *r)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key.String(), out[j].Key.String()
		if ki != kj {
			return ki < kj
		}
		return out[i].Expiration.Before(out[j].Expiration)
	})
	return out
}

// Keys 存在注册的记录
func (m *Manager) Keys() []types.RecordKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.RecordKey, 0, len(m.byKey))
	for k := range m.byKey {
		out = append(out, k)
	}
	return out
}

// Len 注册总数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, regs := range m.byKey {
		n += len(regs)
	}
	return n
}

func cloneValue(v *types.ValueData) *types.ValueData {
	if v == nil {
		return nil
	}
	out := *v
	out.Data = append([]byte(nil), v.Data...)
	return &out
}
