package engine

// Engine 键值引擎
type Engine interface {
	// Get 读取值，键不存在返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 写入键值对
	Put(key, value []byte) error

	// Delete 删除键，键不存在不视为错误
	Delete(key []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// NewBatch 创建批量写入对象
	//
	// 批量写入不保证跨刷新边界的原子性，适合大量删除之类的维护操作。
	NewBatch() Batch

	// NewPrefixIterator 遍历具有指定前缀的键
	//
	// 迭代器保持创建时的快照视图，调用者负责 Close()。
	NewPrefixIterator(prefix []byte, keysOnly bool) Iterator

	// NewTransaction 创建事务
	//
	// 调用者负责 Commit() 或 Discard()。
	NewTransaction(writable bool) Transaction

	// DropAll 删除全部数据
	DropAll() error

	// Start 启动后台任务（值日志 GC 等）
	Start() error

	// Sync 同步数据到磁盘
	Sync() error

	// Stats 统计信息快照
	Stats() *Stats

	// Close 关闭引擎，可重复调用
	Close() error
}

// Batch 批量写入
//
// Batch 不是线程安全的。
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Write 刷新全部操作，完成后批量对象可继续复用
	Write() error

	// Size 待写入的操作数量
	Size() int

	// Cancel 放弃未写入的操作并释放资源
	Cancel()
}

// Iterator 前缀迭代器
//
// 使用模式:
//
//	it := eng.NewPrefixIterator(prefix, false)
//	defer it.Close()
//
//	for it.First(); it.Valid(); it.Next() {
//	    key, value := it.Key(), it.Value()
//	}
//	if err := it.Error(); err != nil {
//	    return err
//	}
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool

	// Key 当前键的副本
	Key() []byte

	// Value 当前值的副本，keysOnly 迭代器同样可用但需要额外读取
	Value() []byte

	Close()
	Error() error
}

// Transaction 事务
//
// 读写事务在 Commit 时检测写冲突，冲突返回 ErrTransactionConflict。
type Transaction interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	// Commit 提交，提交后事务不能再使用
	Commit() error

	// Discard 丢弃，多次调用安全，提交后调用无效果
	Discard()
}

// Stats 引擎统计信息
type Stats struct {
	LSMSize    int64 `json:"lsm_size"`
	VlogSize   int64 `json:"vlog_size"`
	NumReads   int64 `json:"num_reads"`
	NumWrites  int64 `json:"num_writes"`
	NumDeletes int64 `json:"num_deletes"`
	NumGCRuns  int64 `json:"num_gc_runs"`
}

// DiskSize 磁盘占用
func (s *Stats) DiskSize() int64 {
	return s.LSMSize + s.VlogSize
}
