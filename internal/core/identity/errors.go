package identity

import "errors"

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrKeyPairMismatch 密钥对不匹配
	ErrKeyPairMismatch = errors.New("identity: key pair mismatch")

	// ErrCorruptIdentity 保存的身份无法解析
	ErrCorruptIdentity = errors.New("identity: corrupt stored identity")
)
