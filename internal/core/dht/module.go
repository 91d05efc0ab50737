package dht

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/attachment"
	"github.com/dep2p/go-veilcore/internal/core/dht/watch"
	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
//                              Fx 模块
// ============================================================================

// Params 模块输入
type Params struct {
	fx.In

	Config     *config.Config
	Crypto     interfaces.Crypto
	TableStore interfaces.TableStore
	Transport  interfaces.Transport
	EventBus   interfaces.EventBus
	Attachment *attachment.Manager
	Reporter   metrics.Reporter `optional:"true"`
}

// Result 模块输出
type Result struct {
	fx.Out

	Manager *Manager
	DHT     interfaces.DHT
	Watches *watch.Manager
}

// ConfigFrom 由统一配置生成记录存储配置
func ConfigFrom(cfg config.DHTConfig) Config {
	return Config{
		MaxSubkeySize:     cfg.MaxSubkeySize,
		MaxRecordDataSize: cfg.MaxRecordDataSize,
		RecordCacheSize:   cfg.RecordCacheSize,
		GetTimeout:        cfg.GetTimeout.Duration(),
		SetTimeout:        cfg.SetTimeout.Duration(),
	}
}

// WatchConfigFrom 由统一配置生成监听配置
func WatchConfigFrom(cfg config.DHTConfig) watch.Config {
	return watch.Config{
		DefaultExpiration: cfg.DefaultWatchExpiration.Duration(),
		MaxExpiration:     cfg.MaxWatchExpiration.Duration(),
		SweepInterval:     cfg.WatchSweepInterval.Duration(),
	}
}

// ProvideManager 创建监听管理器与记录存储
func ProvideManager(p Params) (Result, error) {
	emitter, err := p.EventBus.Emitter(new(types.ValueChangeUpdate))
	if err != nil {
		return Result{}, fmt.Errorf("value change emitter: %w", err)
	}
	watches := watch.NewManager(WatchConfigFrom(p.Config.DHT), clock.New(), emitter, p.Reporter)

	m, err := New(ConfigFrom(p.Config.DHT), Deps{
		Crypto:     p.Crypto,
		TableStore: p.TableStore,
		Transport:  p.Transport,
		Attachment: p.Attachment,
		Watches:    watches,
		Reporter:   p.Reporter,
	})
	if err != nil {
		_ = watches.Close()
		return Result{}, err
	}
	return Result{Manager: m, DHT: m, Watches: watches}, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("dht",
		fx.Provide(ProvideManager),
		fx.Invoke(registerGauges),
		fx.Invoke(registerLifecycle),
	)
}

// gaugeParams 只读指标
type gaugeParams struct {
	fx.In

	Metrics *metrics.Metrics `optional:"true"`
	Manager *Manager
}

func registerGauges(p gaugeParams) error {
	if p.Metrics == nil {
		return nil
	}
	m := p.Manager
	return multierr.Combine(
		p.Metrics.RegisterGaugeFunc("dht_open_records",
			"Records currently open in this session.",
			func() float64 { return float64(len(m.OpenRecords())) }),
		p.Metrics.RegisterGaugeFunc("dht_watch_registrations",
			"Active watch registrations.",
			func() float64 { return float64(m.Watches().Len()) }),
	)
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			m.watches.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭记录存储")
			return multierr.Combine(
				m.Close(),
				m.watches.Close(),
			)
		},
	})
}
