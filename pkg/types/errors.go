package types

import "errors"

// ============================================================================
//                              解析相关错误
// ============================================================================

var (
	// ErrInvalidCryptoKind 无效的密码套件标识
	ErrInvalidCryptoKind = errors.New("invalid crypto kind")

	// ErrInvalidKeyLength 密钥长度无效
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrInvalidEncoding 编码无效
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrInvalidKeyPair 无效的密钥对字符串
	ErrInvalidKeyPair = errors.New("invalid key pair")

	// ErrInvalidTypedKey 无效的类型化密钥字符串
	ErrInvalidTypedKey = errors.New("invalid typed key")
)

// ============================================================================
//                              DHT 相关错误
// ============================================================================

var (
	// ErrInvalidSchema 模式定义无效
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidSubkeyRange 子键范围无效
	ErrInvalidSubkeyRange = errors.New("invalid subkey range")

	// ErrInvalidReportScope 无效的检查范围
	ErrInvalidReportScope = errors.New("invalid report scope")
)

// ============================================================================
//                              路由相关错误
// ============================================================================

var (
	// ErrInvalidSafetySelection 无效的安全选择
	ErrInvalidSafetySelection = errors.New("invalid safety selection")

	// ErrInvalidSequencing 无效的顺序保证
	ErrInvalidSequencing = errors.New("invalid sequencing")

	// ErrInvalidStability 无效的稳定性
	ErrInvalidStability = errors.New("invalid stability")

	// ErrInvalidAttachmentState 无效的连接状态
	ErrInvalidAttachmentState = errors.New("invalid attachment state")
)
