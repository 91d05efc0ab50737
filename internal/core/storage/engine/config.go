package engine

import (
	"os"
	"path/filepath"
	"time"
)

// Config 引擎配置
type Config struct {
	// Path 数据目录，InMemory 时忽略
	Path string

	// InMemory 纯内存模式
	InMemory bool

	// SyncWrites 每次写入同步到磁盘
	SyncWrites bool

	// ReadOnly 只读模式
	ReadOnly bool

	// Logger 日志记录器，为 nil 时禁用引擎日志
	Logger Logger

	// GCInterval 值日志垃圾回收间隔，0 表示禁用
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64

	// MemTableSize 内存表大小（字节）
	MemTableSize int64

	// BlockCacheSize 块缓存大小（字节）
	BlockCacheSize int64
}

// Logger 日志接口
type Logger interface {
	Errorf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// DefaultConfig 返回默认配置
func DefaultConfig(path string) *Config {
	return &Config{
		Path:           path,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
		MemTableSize:   16 << 20,
		BlockCacheSize: 32 << 20,
	}
}

// InMemoryConfig 返回纯内存配置
func InMemoryConfig() *Config {
	c := DefaultConfig("")
	c.InMemory = true
	c.GCInterval = 0
	return c
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return ErrInvalidConfig
	}
	if c.InMemory && c.ReadOnly {
		return ErrInvalidConfig
	}
	if c.MemTableSize < 1<<20 {
		return ErrInvalidConfig
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		return ErrInvalidConfig
	}
	return nil
}

// EnsureDir 确保数据目录存在
func (c *Config) EnsureDir() error {
	if c.InMemory {
		return nil
	}
	absPath, err := filepath.Abs(c.Path)
	if err != nil {
		return err
	}
	c.Path = absPath
	return os.MkdirAll(c.Path, 0o755)
}

// WithSyncWrites 设置同步写入
func (c *Config) WithSyncWrites(sync bool) *Config {
	c.SyncWrites = sync
	return c
}

// WithLogger 设置日志记录器
func (c *Config) WithLogger(logger Logger) *Config {
	c.Logger = logger
	return c
}

// WithGCInterval 设置 GC 间隔
func (c *Config) WithGCInterval(d time.Duration) *Config {
	c.GCInterval = d
	return c
}
