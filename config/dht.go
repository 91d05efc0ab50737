package config

import (
	"fmt"
	"time"
)

// DHTConfig 记录存储配置
type DHTConfig struct {
	// MaxSubkeySize 单个子键值的最大字节数
	// 默认值: 32768
	MaxSubkeySize int `json:"max_subkey_size" yaml:"max_subkey_size"`

	// MaxRecordDataSize 单条记录全部子键值的最大总字节数
	// 默认值: 1MiB
	MaxRecordDataSize int `json:"max_record_data_size" yaml:"max_record_data_size"`

	// RecordCacheSize 记录元数据缓存容量
	// 默认值: 256
	RecordCacheSize int `json:"record_cache_size" yaml:"record_cache_size"`

	// DefaultWatchExpiration 未指定过期时间时的监听有效期
	// 默认值: 10m
	DefaultWatchExpiration Duration `json:"default_watch_expiration" yaml:"default_watch_expiration"`

	// MaxWatchExpiration 监听有效期上限
	// 默认值: 1h
	MaxWatchExpiration Duration `json:"max_watch_expiration" yaml:"max_watch_expiration"`

	// WatchSweepInterval 过期监听清理间隔
	// 默认值: 1s
	WatchSweepInterval Duration `json:"watch_sweep_interval" yaml:"watch_sweep_interval"`

	// GetTimeout 网络读取超时
	// 默认值: 10s
	GetTimeout Duration `json:"get_timeout" yaml:"get_timeout"`

	// SetTimeout 网络写入超时
	// 默认值: 10s
	SetTimeout Duration `json:"set_timeout" yaml:"set_timeout"`
}

// DefaultDHTConfig 返回默认的记录存储配置
func DefaultDHTConfig() DHTConfig {
	return DHTConfig{
		MaxSubkeySize:          32768,
		MaxRecordDataSize:      1 << 20,
		RecordCacheSize:        256,
		DefaultWatchExpiration: Duration(10 * time.Minute),
		MaxWatchExpiration:     Duration(time.Hour),
		WatchSweepInterval:     Duration(time.Second),
		GetTimeout:             Duration(10 * time.Second),
		SetTimeout:             Duration(10 * time.Second),
	}
}

// Validate 验证记录存储配置的有效性
func (c *DHTConfig) Validate() error {
	if c.MaxSubkeySize <= 0 {
		return fmt.Errorf("dht: max_subkey_size must be positive")
	}
	if c.MaxRecordDataSize < c.MaxSubkeySize {
		return fmt.Errorf("dht: max_record_data_size (%d) < max_subkey_size (%d)",
			c.MaxRecordDataSize, c.MaxSubkeySize)
	}
	if c.RecordCacheSize <= 0 {
		return fmt.Errorf("dht: record_cache_size must be positive")
	}
	if c.DefaultWatchExpiration <= 0 {
		return fmt.Errorf("dht: default_watch_expiration must be positive")
	}
	if c.MaxWatchExpiration < c.DefaultWatchExpiration {
		return fmt.Errorf("dht: max_watch_expiration < default_watch_expiration")
	}
	if c.WatchSweepInterval <= 0 {
		return fmt.Errorf("dht: watch_sweep_interval must be positive")
	}
	if c.GetTimeout <= 0 || c.SetTimeout <= 0 {
		return fmt.Errorf("dht: get_timeout and set_timeout must be positive")
	}
	return nil
}
