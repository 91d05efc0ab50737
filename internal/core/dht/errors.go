package dht

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// 预定义错误
var (
	// ErrRecordNotOpen 记录未在本会话中打开
	ErrRecordNotOpen = errors.New("dht: record not open")

	// ErrRecordNotFound 本地与网络都找不到记录
	ErrRecordNotFound = errors.New("dht: record not found")

	// ErrRecordExists 创建的记录已存在
	ErrRecordExists = errors.New("dht: record already exists")

	// ErrNotWritable 没有可用的写者凭据
	ErrNotWritable = errors.New("dht: value is not writable")

	// ErrInvalidWriter 写者密钥对无效
	ErrInvalidWriter = errors.New("dht: invalid writer key pair")

	// ErrSubkeyOutOfRange 子键超出模式范围
	ErrSubkeyOutOfRange = errors.New("dht: subkey out of range")

	// ErrValueTooLarge 值或记录总大小超限
	ErrValueTooLarge = errors.New("dht: value too large")

	// ErrInvalidValue 网络返回的值未通过校验
	ErrInvalidValue = errors.New("dht: invalid value")

	// ErrWatchRejected 网络拒绝监听
	ErrWatchRejected = errors.New("dht: watch rejected")

	// ErrClosed 记录存储已关闭
	ErrClosed = errors.New("dht: closed")
)

// RecordError 带操作与记录键的错误
type RecordError struct {
	Op  string          // 操作名称
	Key types.RecordKey // 记录键，可能为零值
	Err error           // 底层错误
}

// Error 实现 error 接口
func (e *RecordError) Error() string {
	if e.Key.IsZero() {
		return fmt.Sprintf("dht %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("dht %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap 实现错误解包
func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError 创建记录错误
func NewRecordError(op string, key types.RecordKey, err error) *RecordError {
	return &RecordError{Op: op, Key: key, Err: err}
}

// IsNotWritable 是否为写者授权错误
func IsNotWritable(err error) bool {
	return errors.Is(err, ErrNotWritable)
}

// IsNotFound 是否为记录不存在或未打开
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrRecordNotOpen)
}
