package loopback

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/identity"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

// BootstrapScheme 进程内网络的引导端点前缀
const BootstrapScheme = "loopback:"

// ============================================================================
//                              Fx 模块
// ============================================================================

// Params 模块输入
type Params struct {
	fx.In

	Config   *config.Config
	Crypto   interfaces.Crypto
	Identity *identity.Identity

	// Hub 显式共享的 Hub；缺省时创建私有 Hub（单节点网络）
	Hub *Hub `optional:"true"`
}

// Result 模块输出
type Result struct {
	fx.Out

	Loopback  *Transport
	Transport interfaces.Transport
}

// HubName 从引导列表中取出第一个 loopback 端点的名称
func HubName(bootstrap []string) (string, error) {
	for _, b := range bootstrap {
		if strings.HasPrefix(b, BootstrapScheme) {
			name := strings.TrimPrefix(b, BootstrapScheme)
			if name == "" {
				return "", fmt.Errorf("empty loopback hub name in %q", b)
			}
			return name, nil
		}
	}
	return "", fmt.Errorf("no %s bootstrap endpoint configured", BootstrapScheme)
}

// ProvideTransport 创建本节点的传输
func ProvideTransport(p Params) (Result, error) {
	hub := p.Hub
	if hub == nil {
		name, err := HubName(p.Config.Network.Bootstrap)
		if err != nil {
			return Result{}, err
		}
		hub = NewHub(p.Crypto,
			WithName(name),
			WithMaxSubkeySize(p.Config.DHT.MaxSubkeySize),
			WithMaxRouteHopCount(p.Config.Network.MaxRouteHopCount),
		)
	}
	t := hub.NewTransport(p.Identity.ID(), p.Config.Network.NetworkKeyPassword)
	return Result{Loopback: t, Transport: t}, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("loopback",
		fx.Provide(ProvideTransport),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, t *Transport) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return t.Close()
		},
	})
}
