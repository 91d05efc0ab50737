package config

import (
	"fmt"
	"strings"
	"time"
)

// NetworkConfig 网络配置
//
// 传输层本身不在本模块范围内，这里只保留核心建立网络身份所需的字段。
type NetworkConfig struct {
	// Bootstrap 引导端点列表
	// 进程内网络使用 "loopback:<名称>"
	// 默认值: ["loopback:default"]
	Bootstrap []string `json:"bootstrap" yaml:"bootstrap"`

	// NetworkKeyPassword 网络密钥口令
	// 口令不同的节点互相不可见；为空表示公开网络
	NetworkKeyPassword string `json:"network_key_password" yaml:"network_key_password"`

	// DefaultRouteHopCount 安全路由默认跳数
	// 默认值: 1
	DefaultRouteHopCount int `json:"default_route_hop_count" yaml:"default_route_hop_count"`

	// MaxRouteHopCount 安全路由最大跳数
	// 默认值: 4
	MaxRouteHopCount int `json:"max_route_hop_count" yaml:"max_route_hop_count"`

	// RPCTimeout 单次网络调用超时
	// 默认值: 5s
	RPCTimeout Duration `json:"rpc_timeout" yaml:"rpc_timeout"`
}

// DefaultNetworkConfig 返回默认的网络配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Bootstrap:            []string{"loopback:default"},
		DefaultRouteHopCount: 1,
		MaxRouteHopCount:     4,
		RPCTimeout:           Duration(5 * time.Second),
	}
}

// Validate 验证网络配置的有效性
func (c *NetworkConfig) Validate() error {
	if c.DefaultRouteHopCount < 1 {
		return fmt.Errorf("network: default_route_hop_count must be >= 1")
	}
	if c.MaxRouteHopCount < c.DefaultRouteHopCount {
		return fmt.Errorf("network: max_route_hop_count (%d) < default_route_hop_count (%d)",
			c.MaxRouteHopCount, c.DefaultRouteHopCount)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("network: rpc_timeout must be positive")
	}
	for _, b := range c.Bootstrap {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("network: empty bootstrap entry")
		}
	}
	return nil
}

// WithBootstrap 设置引导端点
func (c NetworkConfig) WithBootstrap(endpoints ...string) NetworkConfig {
	c.Bootstrap = append([]string(nil), endpoints...)
	return c
}

// WithNetworkKeyPassword 设置网络密钥口令
func (c NetworkConfig) WithNetworkKeyPassword(password string) NetworkConfig {
	c.NetworkKeyPassword = password
	return c
}
