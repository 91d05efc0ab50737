package interfaces

// ════════════════════════════════════════════════════════════════════════════
// TableStore 接口
// ════════════════════════════════════════════════════════════════════════════

// TableStore 命名表集合
//
// 同名表在进程内共享同一份底层存储；每次 Open 返回独立句柄。
type TableStore interface {
	// Open 打开或创建表
	//
	// 已打开的表再次以相同列数打开时共享存储；列数不一致返回配置错误。
	Open(name string, columnCount uint32) (TableDB, error)

	// Delete 删除表，表仍被打开时失败；返回是否存在
	Delete(name string) (bool, error)

	// Rename 重命名表
	Rename(oldName, newName string) error

	// List 列出所有表名
	List() ([]string, error)
}

// TableDB 一个打开的表句柄
type TableDB interface {
	// Name 表名
	Name() string

	// ColumnCount 列数
	ColumnCount() uint32

	// GetKeys 列中当前所有键的快照
	GetKeys(col uint32) ([][]byte, error)

	// Store 写入，返回前已持久化
	Store(col uint32, key, value []byte) error

	// Load 读取，不存在时返回 ErrNotFound
	Load(col uint32, key []byte) ([]byte, error)

	// Delete 删除并返回旧值，不存在时旧值为 nil
	Delete(col uint32, key []byte) ([]byte, error)

	// StoreJSON 以 JSON 编码写入
	StoreJSON(col uint32, key []byte, v any) error

	// LoadJSON 读取并以 JSON 解码
	LoadJSON(col uint32, key []byte, v any) error

	// CreateTransaction 开始一个缓冲事务
	CreateTransaction() TableDBTransaction

	// Close 释放句柄
	Close() error
}

// TableDBTransaction 表事务
//
// 操作按调用顺序缓冲，Commit 时原子应用；未提交的事务不产生任何影响。
type TableDBTransaction interface {
	Store(col uint32, key, value []byte) error
	Delete(col uint32, key []byte) error
	StoreJSON(col uint32, key []byte, v any) error
	Commit() error
	Rollback()
}
