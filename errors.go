package veilcore

import (
	"context"
	"errors"

	"github.com/dep2p/go-veilcore/internal/core/attachment"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/internal/core/dht"
	"github.com/dep2p/go-veilcore/internal/core/dht/watch"
	"github.com/dep2p/go-veilcore/internal/core/eventbus"
	"github.com/dep2p/go-veilcore/internal/core/network/loopback"
	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
	"github.com/dep2p/go-veilcore/internal/core/tablestore"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 核心生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 核心未启动
	ErrNotStarted = errors.New("core not started")

	// ErrAlreadyStarted 核心已启动
	ErrAlreadyStarted = errors.New("core already started")

	// ErrClosed 核心已关闭
	ErrClosed = errors.New("core closed")

	// ────────────────────────────────────────────────────────────────────────
	// 记录存储错误（转出内部包的哨兵错误，方便调用方 errors.Is）
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotWritable 没有写者凭据
	ErrNotWritable = dht.ErrNotWritable

	// ErrRecordNotOpen 记录未打开
	ErrRecordNotOpen = dht.ErrRecordNotOpen

	// ErrRecordNotFound 记录不存在
	ErrRecordNotFound = dht.ErrRecordNotFound

	// ErrNotAttached 未连接网络
	ErrNotAttached = attachment.ErrNotAttached

	// ────────────────────────────────────────────────────────────────────────
	// 表存储错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrKeyNotFound 表中不存在该键
	ErrKeyNotFound = tablestore.ErrNotFound

	// ErrColumnMismatch 重新打开表时列数不一致
	ErrColumnMismatch = tablestore.ErrColumnMismatch

	// ErrDecrypt 解密失败
	ErrDecrypt = crypto.ErrDecrypt
)

// ════════════════════════════════════════════════════════════════════════════
//                              错误类别
// ════════════════════════════════════════════════════════════════════════════

// ErrorKind 错误类别
//
// 类别描述调用方能做什么，而不是错误来自哪个包。
type ErrorKind int

const (
	// KindGeneric 未归类
	KindGeneric ErrorKind = iota
	// KindAuthorization 缺少写者凭据，提供凭据后可重试
	KindAuthorization
	// KindNotFound 记录、表或键不存在
	KindNotFound
	// KindConfiguration 模式、列数或参数与既有状态不符
	KindConfiguration
	// KindIntegrity 签名或 AEAD 校验失败
	KindIntegrity
	// KindTimeout 网络操作未完成，调用方可以重试
	KindTimeout
	// KindState 在已关闭或已结束的句柄上操作
	KindState
)

// String 返回类别名称
func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "Authorization"
	case KindNotFound:
		return "NotFound"
	case KindConfiguration:
		return "Configuration"
	case KindIntegrity:
		return "Integrity"
	case KindTimeout:
		return "Timeout"
	case KindState:
		return "State"
	default:
		return "Generic"
	}
}

// kindTable 哨兵错误到类别的映射，按顺序匹配
var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{KindAuthorization, []error{
		dht.ErrNotWritable,
		dht.ErrInvalidWriter,
		loopback.ErrUnauthorized,
	}},
	{KindIntegrity, []error{
		crypto.ErrDecrypt,
		crypto.ErrVerify,
		dht.ErrInvalidValue,
		loopback.ErrInvalidSignature,
		tablestore.ErrInvalidDeviceKey,
	}},
	{KindNotFound, []error{
		dht.ErrRecordNotFound,
		dht.ErrRecordNotOpen,
		tablestore.ErrNotFound,
		tablestore.ErrTableNotFound,
		engine.ErrNotFound,
	}},
	{KindConfiguration, []error{
		tablestore.ErrColumnMismatch,
		tablestore.ErrInvalidColumn,
		tablestore.ErrInvalidName,
		types.ErrInvalidSchema,
		types.ErrInvalidSubkeyRange,
		types.ErrInvalidCryptoKind,
		types.ErrInvalidSafetySelection,
		types.ErrInvalidReportScope,
		dht.ErrSubkeyOutOfRange,
		dht.ErrValueTooLarge,
		crypto.ErrInvalidSalt,
		watch.ErrNoSubkeys,
		watch.ErrExpired,
	}},
	{KindTimeout, []error{
		context.DeadlineExceeded,
		context.Canceled,
		attachment.ErrNotAttached,
		loopback.ErrNotJoined,
		dht.ErrWatchRejected,
	}},
	{KindState, []error{
		ErrNotStarted,
		ErrAlreadyStarted,
		ErrClosed,
		dht.ErrClosed,
		watch.ErrClosed,
		tablestore.ErrClosed,
		tablestore.ErrTransactionDone,
		tablestore.ErrTableOpen,
		attachment.ErrClosed,
		loopback.ErrClosed,
		eventbus.ErrClosed,
		engine.ErrClosed,
	}},
}

// KindOf 返回错误的类别，nil 返回 KindGeneric
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindGeneric
	}
	for _, entry := range kindTable {
		for _, target := range entry.errs {
			if errors.Is(err, target) {
				return entry.kind
			}
		}
	}
	return KindGeneric
}

// IsRetryable 错误是否可以由调用方原样重试
func IsRetryable(err error) bool {
	return KindOf(err) == KindTimeout
}
