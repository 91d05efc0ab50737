package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

var logger = log.Logger("core/identity")

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Crypto     interfaces.Crypto
	TableStore interfaces.TableStore
}

// ProvideIdentity 加载或创建节点身份
func ProvideIdentity(input ModuleInput) (*Identity, error) {
	id, _, err := LoadOrCreate(input.TableStore, input.Crypto)
	if err != nil {
		return nil, err
	}
	logger.Debug("节点身份已就绪", "node", id.ID().String())
	return id, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}
