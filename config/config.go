// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON / YAML 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.TableStore.Directory = "/var/lib/veilcore"
//
//	// 从文件加载（按扩展名识别 .json / .yaml / .yml）
//	cfg, err := config.LoadFile("veilcore.yaml")
package config

import (
	"errors"
	"fmt"
)

// Config 是 veilcore 的完整配置结构
//
// 配置按照功能模块组织：
//   - Network: 网络引导与路由参数
//   - TableStore: 表存储
//   - Crypto: 密码学提供者
//   - DHT: 记录存储与监听
//   - Logging: 日志
type Config struct {
	// ProgramName 程序名，用于日志与诊断输出
	ProgramName string `json:"program_name" yaml:"program_name"`

	// Namespace 命名空间，用于隔离同一目录下的多个实例
	Namespace string `json:"namespace" yaml:"namespace"`

	// Network 网络配置
	Network NetworkConfig `json:"network" yaml:"network"`

	// TableStore 表存储配置
	TableStore TableStoreConfig `json:"table_store" yaml:"table_store"`

	// Crypto 密码学配置
	Crypto CryptoConfig `json:"crypto" yaml:"crypto"`

	// DHT 记录存储配置
	DHT DHTConfig `json:"dht" yaml:"dht"`

	// Logging 日志配置
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		ProgramName: "veilcore",
		Network:     DefaultNetworkConfig(),
		TableStore:  DefaultTableStoreConfig(),
		Crypto:      DefaultCryptoConfig(),
		DHT:         DefaultDHTConfig(),
		Logging:     DefaultLoggingConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.ProgramName == "" {
		return fmt.Errorf("config: program_name cannot be empty")
	}
	if err := c.Network.Validate(); err != nil {
		return err
	}
	if err := c.TableStore.Validate(); err != nil {
		return err
	}
	if err := c.Crypto.Validate(); err != nil {
		return err
	}
	if err := c.DHT.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// Clone 深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Network.Bootstrap = append([]string(nil), c.Network.Bootstrap...)
	return &out
}
