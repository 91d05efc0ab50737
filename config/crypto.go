package config

import "fmt"

// CryptoConfig 密码学提供者配置
type CryptoConfig struct {
	// EnableNone 启用 NONE 测试算法族
	// 该算法族不提供任何安全性，仅用于测试与调试
	EnableNone bool `json:"enable_none" yaml:"enable_none"`

	// DHCacheSize DH 共享密钥缓存容量
	// 默认值: 1024
	DHCacheSize int `json:"dh_cache_size" yaml:"dh_cache_size"`
}

// DefaultCryptoConfig 返回默认的密码学配置
func DefaultCryptoConfig() CryptoConfig {
	return CryptoConfig{
		DHCacheSize: 1024,
	}
}

// Validate 验证密码学配置的有效性
func (c *CryptoConfig) Validate() error {
	if c.DHCacheSize <= 0 {
		return fmt.Errorf("crypto: dh_cache_size must be positive")
	}
	return nil
}
