package loopback

import "errors"

var (
	// ErrNotJoined 节点尚未加入网络
	ErrNotJoined = errors.New("loopback: not joined")

	// ErrClosed 传输已关闭
	ErrClosed = errors.New("loopback: transport closed")

	// ErrInvalidDescriptor 记录描述符与记录键不符
	ErrInvalidDescriptor = errors.New("loopback: invalid record descriptor")

	// ErrSubkeyOutOfRange 子键超出模式范围
	ErrSubkeyOutOfRange = errors.New("loopback: subkey out of range")

	// ErrValueTooLarge 值超过单子键上限
	ErrValueTooLarge = errors.New("loopback: value too large")

	// ErrUnauthorized 写者无权写入该子键
	ErrUnauthorized = errors.New("loopback: writer not authorized")

	// ErrInvalidSignature 签名校验失败
	ErrInvalidSignature = errors.New("loopback: invalid signature")

	// ErrSeqTooOld 序列号低于已存值
	ErrSeqTooOld = errors.New("loopback: sequence number too old")

	// ErrUnsupportedKind 不支持的密码套件
	ErrUnsupportedKind = errors.New("loopback: unsupported crypto kind")
)
