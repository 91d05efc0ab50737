package config

import (
	"fmt"
	"path/filepath"
)

// TableStoreConfig 表存储配置
//
// 所有表共享一个 BadgerDB 实例，通过键前缀隔离。
//
// 数据目录结构：
//
//	${Directory}/
//	└── table_store.db/     # BadgerDB 数据库
type TableStoreConfig struct {
	// Directory 数据目录
	// 默认值: "./data"
	Directory string `json:"directory" yaml:"directory"`

	// InMemory 纯内存模式（测试用，不落盘）
	InMemory bool `json:"in_memory" yaml:"in_memory"`

	// DeleteOnStartup 启动时清空所有表
	DeleteOnStartup bool `json:"delete_on_startup" yaml:"delete_on_startup"`

	// Encrypt 是否用设备加密密钥加密表中的值
	Encrypt bool `json:"encrypt" yaml:"encrypt"`

	// DeviceKeyPassword 保护设备加密密钥的口令，为空时密钥明文保存
	DeviceKeyPassword string `json:"device_key_password" yaml:"device_key_password"`

	// SyncWrites 每次写入都同步刷盘
	// 默认值: true
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// GCInterval 值日志垃圾回收间隔，0 表示禁用
	// 默认值: 10m
	GCInterval Duration `json:"gc_interval" yaml:"gc_interval"`
}

// DefaultTableStoreConfig 返回默认的表存储配置
func DefaultTableStoreConfig() TableStoreConfig {
	return TableStoreConfig{
		Directory:  "./data",
		SyncWrites: true,
		GCInterval: Duration(10 * 60 * 1e9),
	}
}

// Validate 验证表存储配置的有效性
func (c *TableStoreConfig) Validate() error {
	if !c.InMemory && c.Directory == "" {
		return fmt.Errorf("table_store: directory cannot be empty")
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("table_store: gc_interval cannot be negative")
	}
	if c.DeviceKeyPassword != "" && !c.Encrypt {
		return fmt.Errorf("table_store: device_key_password requires encrypt")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *TableStoreConfig) DBPath(namespace string) string {
	name := "table_store.db"
	if namespace != "" {
		name = namespace + "_" + name
	}
	return filepath.Join(c.Directory, name)
}

// WithDirectory 设置数据目录
func (c TableStoreConfig) WithDirectory(dir string) TableStoreConfig {
	c.Directory = dir
	return c
}

// WithInMemory 设置纯内存模式
func (c TableStoreConfig) WithInMemory(enable bool) TableStoreConfig {
	c.InMemory = enable
	return c
}

// WithEncryption 启用值加密
func (c TableStoreConfig) WithEncryption(password string) TableStoreConfig {
	c.Encrypt = true
	c.DeviceKeyPassword = password
	return c
}
