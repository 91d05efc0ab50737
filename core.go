package veilcore

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/attachment"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/internal/core/dht"
	"github.com/dep2p/go-veilcore/internal/core/identity"
	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/internal/core/network/loopback"
	"github.com/dep2p/go-veilcore/internal/core/tablestore"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

var logger = log.Logger("veilcore")

// Core veilcore 核心句柄
//
// Core 是用户与核心交互的主入口，聚合了密码学提供者、表存储、
// 记录存储与监听管理器。进程内可以同时存在多个 Core，它们之间不共享状态。
//
// 使用示例：
//
//	core, err := veilcore.New(veilcore.WithDirectory("/var/lib/veilcore"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Close()
//
//	if err := core.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := core.Attach(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	rc := core.RoutingContext()
//	desc, _ := rc.CreateDHTRecord(ctx, types.NewDFLTSchema(1), types.CryptoKind{}, nil)
//	_, _ = rc.SetDHTValue(ctx, desc.Key, 0, []byte("hello"), nil)
type Core struct {
	// ────────────────────────────────────────────────────────────────────────
	// 配置和 Fx 应用
	// ────────────────────────────────────────────────────────────────────────

	opts *options
	app  *fx.App

	// ────────────────────────────────────────────────────────────────────────
	// 组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	cfg       *config.Config
	provider  *crypto.Provider
	tables    *tablestore.Store
	bus       interfaces.EventBus
	metrics   *metrics.Metrics
	identity  *identity.Identity
	transport *loopback.Transport
	attach    *attachment.Manager
	records   *dht.Manager

	logEmitter      interfaces.Emitter
	shutdownEmitter interfaces.Emitter

	// ────────────────────────────────────────────────────────────────────────
	// 状态
	// ────────────────────────────────────────────────────────────────────────

	mu         sync.RWMutex
	state      State
	started    bool
	closed     bool
	removeSink func()

	subsMu sync.Mutex
	subs   map[uint64]*subscriber
	subSeq uint64
}

// New 创建核心
//
// New 只组装组件并打开表存储，不启动后台任务也不连接网络。
// 使用前必须调用 Start。
func New(opts ...Option) (*Core, error) {
	o := newOptions()
	if err := o.apply(opts...); err != nil {
		return nil, err
	}

	c := &Core{
		opts:  o,
		state: StateIdle,
		subs:  make(map[uint64]*subscriber),
	}
	app, err := buildFxApp(o, c)
	if err != nil {
		return nil, err
	}
	c.app = app

	logger.Debug("核心已创建",
		"program", c.cfg.ProgramName,
		"node", c.identity.ID().String(),
		"inMemory", c.cfg.TableStore.InMemory)
	return c, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// Crypto 密码学提供者
func (c *Core) Crypto() interfaces.Crypto {
	return c.provider
}

// TableStore 表存储
func (c *Core) TableStore() interfaces.TableStore {
	return c.tables
}

// RoutingContext 返回使用默认安全选择的路由上下文
func (c *Core) RoutingContext() RoutingContext {
	return RoutingContext{core: c, safety: c.defaultSafety()}
}

// NodeID 节点身份公钥
func (c *Core) NodeID() types.TypedKey {
	return c.identity.ID()
}

// Config 当前配置的拷贝
func (c *Core) Config() *config.Config {
	return c.cfg.Clone()
}

// AttachmentState 当前连接状态
func (c *Core) AttachmentState() types.AttachmentState {
	return c.attach.State()
}

// State 核心生命周期状态
func (c *Core) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// MetricsSnapshot 当前指标计数
func (c *Core) MetricsSnapshot() metrics.Snapshot {
	return c.metrics.Snapshot()
}

// MetricsGatherer 本核心的 prometheus 注册表
func (c *Core) MetricsGatherer() prometheus.Gatherer {
	return c.metrics.Registry()
}

// defaultSafety 默认安全选择：按配置跳数的安全路由
func (c *Core) defaultSafety() types.SafetySelection {
	return types.Safe(types.SafetySpec{
		HopCount:   c.cfg.Network.DefaultRouteHopCount,
		Stability:  types.StabilityLowLatency,
		Sequencing: types.SequencingNoPreference,
	})
}

// checkRunning 数据面操作前的状态检查
func (c *Core) checkRunning() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.closed:
		return ErrClosed
	case !c.started:
		return ErrNotStarted
	}
	return nil
}

// releaseUnstarted 释放从未启动过的核心持有的资源
//
// Fx 只为已执行 OnStart 的钩子调用 OnStop，未启动时需要手动关闭。
func (c *Core) releaseUnstarted() error {
	return multierr.Combine(
		c.records.Close(),
		c.records.Watches().Close(),
		c.transport.Close(),
		c.tables.Close(),
		c.bus.Close(),
	)
}

// String 调试输出
func (c *Core) String() string {
	return fmt.Sprintf("Core(%s, %s)", c.identity.ID(), c.State())
}
