package dht

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-veilcore/internal/core/attachment"
	"github.com/dep2p/go-veilcore/internal/core/dht/watch"
	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var logger = log.Logger("core/dht")

// 默认参数
const (
	DefaultMaxSubkeySize     = 32768
	DefaultMaxRecordDataSize = 1 << 20
	DefaultRecordCacheSize   = 256
	DefaultGetTimeout        = 10 * time.Second
	DefaultSetTimeout        = 10 * time.Second

	// syncParallelism SyncGet/SyncSet 的并发上限
	syncParallelism = 4
)

// Config 记录存储配置
type Config struct {
	MaxSubkeySize     int
	MaxRecordDataSize int
	RecordCacheSize   int
	GetTimeout        time.Duration
	SetTimeout        time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxSubkeySize:     DefaultMaxSubkeySize,
		MaxRecordDataSize: DefaultMaxRecordDataSize,
		RecordCacheSize:   DefaultRecordCacheSize,
		GetTimeout:        DefaultGetTimeout,
		SetTimeout:        DefaultSetTimeout,
	}
}

// openedRecord 会话中的打开状态
type openedRecord struct {
	refs   int
	writer *types.KeyPair
	safety types.SafetySelection
}

// OpenRecordInfo 打开记录的摘要
type OpenRecordInfo struct {
	Key      types.RecordKey
	Refs     int
	Writable bool
	Safety   types.SafetySelection
}

// Deps 记录存储依赖
type Deps struct {
	Crypto     interfaces.Crypto
	TableStore interfaces.TableStore
	Transport  interfaces.Transport
	Attachment *attachment.Manager
	Watches    *watch.Manager
	Reporter   metrics.Reporter
}

// ============================================================================
//                              Manager
// ============================================================================

// Manager DHT 记录存储
type Manager struct {
	cfg       Config
	crypto    interfaces.Crypto
	transport interfaces.Transport
	attach    *attachment.Manager
	watches   *watch.Manager
	reporter  metrics.Reporter

	storage *recordStorage
	locks   stripedLocks // 状态与本地存储
	writes  stripedLocks // 同一记录的写入串行化
	group   singleflight.Group

	mu     sync.Mutex
	opened map[types.RecordKey]*openedRecord
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ interfaces.DHT = (*Manager)(nil)

// New 创建记录存储
//
// 打开本地记录表，注册网络推送回调与连接状态回调。
func New(cfg Config, deps Deps) (*Manager, error) {
	def := DefaultConfig()
	if cfg.MaxSubkeySize <= 0 {
		cfg.MaxSubkeySize = def.MaxSubkeySize
	}
	if cfg.MaxRecordDataSize <= 0 {
		cfg.MaxRecordDataSize = def.MaxRecordDataSize
	}
	if cfg.RecordCacheSize <= 0 {
		cfg.RecordCacheSize = def.RecordCacheSize
	}
	if cfg.GetTimeout <= 0 {
		cfg.GetTimeout = def.GetTimeout
	}
	if cfg.SetTimeout <= 0 {
		cfg.SetTimeout = def.SetTimeout
	}

	storage, err := openRecordStorage(deps.TableStore, cfg.RecordCacheSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       cfg,
		crypto:    deps.Crypto,
		transport: deps.Transport,
		attach:    deps.Attachment,
		watches:   deps.Watches,
		reporter:  deps.Reporter,
		storage:   storage,
		opened:    make(map[types.RecordKey]*openedRecord),
		ctx:       ctx,
		cancel:    cancel,
	}

	m.transport.SetValueChangedHandler(m.onValueChanged)
	m.attach.OnStateChange(m.onAttachmentChange)
	m.watches.OnIdle(m.onWatchIdle)
	return m, nil
}

// Close 关闭全部打开的记录并释放本地记录表
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	keys := make([]types.RecordKey, 0, len(m.opened))
	for k := range m.opened {
		keys = append(keys, k)
	}
	m.opened = make(map[types.RecordKey]*openedRecord)
	m.mu.Unlock()

	for _, k := range keys {
		m.watches.Drop(k)
	}
	m.transport.SetValueChangedHandler(nil)
	m.cancel()
	m.wg.Wait()

	logger.Debug("记录存储已关闭", "closedRecords", len(keys))
	return m.storage.close()
}

// OpenRecords 当前打开的记录
func (m *Manager) OpenRecords() []OpenRecordInfo {
	m.mu.Lock()
	out := make([]OpenRecordInfo, 0, len(m.opened))
	for k, o := range m.opened {
		out = append(out, OpenRecordInfo{Key: k, Refs: o.refs, Writable: o.writer != nil, Safety: o.safety})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// LocalRecordCount 本地保存的记录数
func (m *Manager) LocalRecordCount() (int, error) {
	keys, err := m.storage.keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Watches 监听管理器
func (m *Manager) Watches() *watch.Manager {
	return m.watches
}

// ============================================================================
//                              内部辅助
// ============================================================================

// observe 记录操作指标
func (m *Manager) observe(op string, start time.Time, err error) {
	if m.reporter != nil {
		m.reporter.ObserveDHT(op, start, err)
	}
}

// fail 包装为 RecordError，nil 透传
func fail(op string, key types.RecordKey, err error) error {
	if err == nil {
		return nil
	}
	return NewRecordError(op, key, err)
}

// openState 返回打开状态的副本
func (m *Manager) openState(key types.RecordKey) (openedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return openedRecord{}, ErrClosed
	}
	o, ok := m.opened[key]
	if !ok {
		return openedRecord{}, ErrRecordNotOpen
	}
	return *o, nil
}

func (m *Manager) isOpen(key types.RecordKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.opened[key]
	return ok
}

// system 记录对应的密码套件
func (m *Manager) system(kind types.CryptoKind) (interfaces.CryptoSystem, error) {
	return m.crypto.Get(kind)
}

// goBackground 在记录存储的生命周期内运行后台任务
func (m *Manager) goBackground(fn func(ctx context.Context)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
}

func cloneValueData(v types.ValueData) *types.ValueData {
	out := v
	out.Data = append([]byte(nil), v.Data...)
	return &out
}
