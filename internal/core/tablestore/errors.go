package tablestore

import (
	"errors"

	"github.com/dep2p/go-veilcore/internal/core/crypto"
)

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrNotFound 键不存在
	ErrNotFound = errors.New("tablestore: key not found")

	// ErrTableNotFound 表不存在
	ErrTableNotFound = errors.New("tablestore: table not found")

	// ErrTableExists 目标表名已存在
	ErrTableExists = errors.New("tablestore: table already exists")

	// ErrTableOpen 表仍被打开
	ErrTableOpen = errors.New("tablestore: table is still open")

	// ErrColumnMismatch 已打开的表以不同列数再次打开
	ErrColumnMismatch = errors.New("tablestore: column count mismatch")

	// ErrInvalidColumn 列号越界
	ErrInvalidColumn = errors.New("tablestore: invalid column")

	// ErrInvalidName 表名非法
	ErrInvalidName = errors.New("tablestore: invalid table name")

	// ErrClosed 句柄或存储已关闭
	ErrClosed = errors.New("tablestore: closed")

	// ErrTransactionDone 事务已提交或回滚
	ErrTransactionDone = errors.New("tablestore: transaction already finished")

	// ErrInvalidDeviceKey 设备加密密钥无法解析或解密
	ErrInvalidDeviceKey = errors.New("tablestore: invalid device encryption key")

	// ErrDecrypt 值解密失败
	ErrDecrypt = crypto.ErrDecrypt
)

// IsNotFound 是否为键或表不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrTableNotFound)
}

// IsClosed 是否为已关闭错误
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, ErrTransactionDone)
}
