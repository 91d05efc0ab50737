package eventbus

import (
	"context"

	pkgif "github.com/dep2p/go-veilcore/pkg/interfaces"
	"go.uber.org/fx"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	EventBus pkgif.EventBus
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供 EventBus 实例
func ProvideEventBus() Result {
	return Result{
		EventBus: NewBus(),
	}
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	EventBus pkgif.EventBus
}

// registerLifecycle 注册生命周期
//
// 总线最后关闭（Fx 按注册逆序执行 OnStop），保证其他模块关闭时仍可发事件。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.EventBus.Close()
		},
	})
}
