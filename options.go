package veilcore

import (
	"errors"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/network/loopback"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// config 完整配置，选项按顺序修改它
	config *config.Config

	// hub 共享的进程内网络；为空时按引导端点创建私有网络
	hub *loopback.Hub

	// userFxOptions 用户自定义 Fx 选项
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// apply 依次应用选项
func (o *options) apply(opts ...Option) error {
	for i, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return fmt.Errorf("option %d: %w", i, err)
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置选项
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置替换默认配置
//
// 配置会被深拷贝，之后的选项在拷贝上生效。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithConfigFile 从 JSON / YAML 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithNamespace 设置命名空间
func WithNamespace(namespace string) Option {
	return func(o *options) error {
		o.config.Namespace = namespace
		return nil
	}
}

// WithDirectory 设置表存储目录
func WithDirectory(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return errors.New("table store directory is empty")
		}
		o.config.TableStore = o.config.TableStore.WithDirectory(dir)
		return nil
	}
}

// WithInMemoryStorage 使用内存表存储（进程退出后数据丢失）
func WithInMemoryStorage() Option {
	return func(o *options) error {
		o.config.TableStore = o.config.TableStore.WithInMemory(true)
		return nil
	}
}

// WithTableEncryption 启用表值加密，password 为空时设备密钥明文保存
func WithTableEncryption(password string) Option {
	return func(o *options) error {
		o.config.TableStore = o.config.TableStore.WithEncryption(password)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              网络选项
// ════════════════════════════════════════════════════════════════════════════

// WithHub 加入显式共享的进程内网络
//
// 多个核心共用同一个 Hub 时彼此可见（网络密钥口令相同的前提下）。
func WithHub(hub *loopback.Hub) Option {
	return func(o *options) error {
		if hub == nil {
			return errors.New("hub is nil")
		}
		o.hub = hub
		return nil
	}
}

// WithBootstrap 设置引导端点
func WithBootstrap(endpoints ...string) Option {
	return func(o *options) error {
		if len(endpoints) == 0 {
			return errors.New("bootstrap list is empty")
		}
		o.config.Network = o.config.Network.WithBootstrap(endpoints...)
		return nil
	}
}

// WithNetworkKeyPassword 设置网络密钥口令
func WithNetworkKeyPassword(password string) Option {
	return func(o *options) error {
		o.config.Network = o.config.Network.WithNetworkKeyPassword(password)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              其他选项
// ════════════════════════════════════════════════════════════════════════════

// WithInsecureCrypto 启用 NONE 测试算法族
func WithInsecureCrypto() Option {
	return func(o *options) error {
		o.config.Crypto.EnableNone = true
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
