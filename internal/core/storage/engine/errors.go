package engine

import "errors"

// 键值操作
var (
	// ErrNotFound 列中不存在该键，表存储据此返回"无值"
	ErrNotFound = errors.New("engine: no value for key")

	// ErrEmptyKey 键为空（表键至少带有表 id 与列前缀）
	ErrEmptyKey = errors.New("engine: key must not be empty")
)

// 引擎状态
var (
	// ErrClosed 表存储关闭后底层引擎不再可用
	ErrClosed = errors.New("engine: closed")

	// ErrReadOnly 引擎以只读方式打开，拒绝写入
	ErrReadOnly = errors.New("engine: opened read-only")

	// ErrInvalidConfig 引擎配置无效
	ErrInvalidConfig = errors.New("engine: invalid config")
)

// 事务与批量写入
var (
	// ErrTransactionConflict 提交时与并发写入冲突，可重试
	ErrTransactionConflict = errors.New("engine: commit conflict")

	// ErrTransactionTooLarge 单次提交超出引擎上限
	ErrTransactionTooLarge = errors.New("engine: commit too large")

	// ErrTransactionDiscarded 事务已提交或丢弃
	ErrTransactionDiscarded = errors.New("engine: transaction already finished")

	// ErrBatchClosed 批量写入已提交或取消
	ErrBatchClosed = errors.New("engine: batch already finished")
)

// IsNotFound 键不存在
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClosed 引擎已关闭
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }

// IsConflict 提交冲突，调用方可以重放整个事务
func IsConflict(err error) bool { return errors.Is(err, ErrTransactionConflict) }
