package veilcore

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/attachment"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/internal/core/dht"
	"github.com/dep2p/go-veilcore/internal/core/eventbus"
	"github.com/dep2p/go-veilcore/internal/core/identity"
	"github.com/dep2p/go-veilcore/internal/core/metrics"
	"github.com/dep2p/go-veilcore/internal/core/network/loopback"
	"github.com/dep2p/go-veilcore/internal/core/tablestore"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Crypto → TableStore → EventBus → Metrics → Identity
//  2. Transport → Attachment → DHT
//  3. 用户自定义 Fx 选项
//
// Fx 按注册逆序执行 OnStop：记录存储最先关闭，事件总线与表存储最后关闭。
func buildFxApp(opts *options, c *Core) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	cfg := opts.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础选项
	// ════════════════════════════════════════════════════════════════════════
	fxOpts := []fx.Option{
		// 屏蔽 Fx 自身的事件日志
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.Supply(cfg),
	}
	if opts.hub != nil {
		fxOpts = append(fxOpts, fx.Supply(opts.hub))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	fxOpts = append(fxOpts,
		crypto.Module(),
		tablestore.Module(),
		eventbus.Module(),
		metrics.Module(),
		identity.Module(),
		loopback.Module(),
		attachment.Module(),
		dht.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户自定义选项
	// ════════════════════════════════════════════════════════════════════════
	fxOpts = append(fxOpts, opts.userFxOptions...)

	// ════════════════════════════════════════════════════════════════════════
	// 5. 注入组件到 Core
	// ════════════════════════════════════════════════════════════════════════
	fxOpts = append(fxOpts, fx.Invoke(injectCoreComponents(c)))

	app := fx.New(fxOpts...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return app, nil
}

// coreComponents Core 持有的组件
type coreComponents struct {
	fx.In

	Config     *config.Config
	Provider   *crypto.Provider
	Tables     *tablestore.Store
	EventBus   interfaces.EventBus
	Metrics    *metrics.Metrics
	Identity   *identity.Identity
	Transport  *loopback.Transport
	Attachment *attachment.Manager
	Records    *dht.Manager
}

// injectCoreComponents 返回把组件注入 Core 的 Invoke 函数
func injectCoreComponents(c *Core) func(coreComponents) error {
	return func(in coreComponents) error {
		c.cfg = in.Config
		c.provider = in.Provider
		c.tables = in.Tables
		c.bus = in.EventBus
		c.metrics = in.Metrics
		c.identity = in.Identity
		c.transport = in.Transport
		c.attach = in.Attachment
		c.records = in.Records

		var err error
		if c.logEmitter, err = in.EventBus.Emitter(new(LogUpdate)); err != nil {
			return fmt.Errorf("log emitter: %w", err)
		}
		if c.shutdownEmitter, err = in.EventBus.Emitter(new(ShutdownUpdate)); err != nil {
			return fmt.Errorf("shutdown emitter: %w", err)
		}
		return nil
	}
}
