package crypto

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

// ============================================================================
//                              Fx 模块
// ============================================================================

// Params 模块输入
type Params struct {
	fx.In

	Config *config.Config
}

// Result 模块输出
type Result struct {
	fx.Out

	Provider *Provider
	Crypto   interfaces.Crypto
}

// ProvideProvider 构造提供者
func ProvideProvider(p Params) (Result, error) {
	provider, err := NewProvider(p.Config.Crypto)
	if err != nil {
		return Result{}, err
	}
	return Result{Provider: provider, Crypto: provider}, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("crypto",
		fx.Provide(ProvideProvider),
	)
}
