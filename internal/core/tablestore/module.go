package tablestore

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
	"github.com/dep2p/go-veilcore/internal/core/storage/engine/badger"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

// ============================================================================
//                              Fx 模块
// ============================================================================

// Params 模块输入
type Params struct {
	fx.In

	Config *config.Config
	Crypto interfaces.Crypto
}

// Result 模块输出
type Result struct {
	fx.Out

	Store      *Store
	TableStore interfaces.TableStore
}

// EngineConfig 由统一配置生成引擎配置
func EngineConfig(cfg *config.Config) *engine.Config {
	ts := cfg.TableStore
	if ts.InMemory {
		return engine.InMemoryConfig().WithLogger(badger.NewLogger("storage/badger"))
	}
	return engine.DefaultConfig(ts.DBPath(cfg.Namespace)).
		WithSyncWrites(ts.SyncWrites).
		WithGCInterval(ts.GCInterval.Duration()).
		WithLogger(badger.NewLogger("storage/badger"))
}

// ProvideStore 打开引擎并创建表存储
//
// delete_on_startup 在此处执行，早于任何组件打开表。
func ProvideStore(p Params) (Result, error) {
	eng, err := badger.New(EngineConfig(p.Config))
	if err != nil {
		return Result{}, fmt.Errorf("open table store engine: %w", err)
	}

	ts := p.Config.TableStore
	store, err := New(eng, p.Crypto, Options{
		Namespace:         p.Config.Namespace,
		Encrypt:           ts.Encrypt,
		DeviceKeyPassword: ts.DeviceKeyPassword,
	})
	if err != nil {
		_ = eng.Close()
		return Result{}, err
	}

	if ts.DeleteOnStartup {
		if err := store.DeleteAll(); err != nil {
			_ = store.Close()
			return Result{}, err
		}
	}
	return Result{Store: store, TableStore: store}, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("tablestore",
		fx.Provide(ProvideStore),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, store *Store) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return store.eng.Start()
		},
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭表存储")
			return store.Close()
		},
	})
}
