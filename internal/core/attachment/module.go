package attachment

import (
	"context"
	"fmt"

	"go.uber.org/fx"

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

	Transport interfaces.Transport
	EventBus  interfaces.EventBus
	Reporter  metrics.Reporter `optional:"true"`
}

// ProvideManager 创建状态机
//
// 发射器为有状态模式，之后订阅的回调会先收到当前连接状态。
func ProvideManager(p Params) (*Manager, error) {
	emitter, err := p.EventBus.Emitter(new(types.AttachmentUpdate), interfaces.Stateful())
	if err != nil {
		return nil, fmt.Errorf("attachment emitter: %w", err)
	}
	return NewManager(p.Transport, emitter, p.Reporter), nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("attachment",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := m.Close(ctx)
			if m.emitter != nil {
				_ = m.emitter.Close()
			}
			return err
		},
	})
}
