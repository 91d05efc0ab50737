package crypto

import (
	"errors"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrInvalidKind 不支持或未启用的套件
	ErrInvalidKind = types.ErrInvalidCryptoKind

	// ErrInvalidKeyLength 密钥长度错误
	ErrInvalidKeyLength = types.ErrInvalidKeyLength

	// ErrInvalidKeyPair 公钥与私钥不匹配
	ErrInvalidKeyPair = types.ErrInvalidKeyPair

	// ErrInvalidKey 公钥不是合法的曲线点
	ErrInvalidKey = errors.New("invalid public key")

	// ErrInvalidSalt 盐长度超出允许范围
	ErrInvalidSalt = errors.New("invalid salt length")

	// ErrInvalidFormat 口令哈希格式错误
	ErrInvalidFormat = errors.New("invalid password hash format")

	// ErrDecrypt 认证解密失败
	ErrDecrypt = errors.New("decryption failed")

	// ErrVerify 签名验证失败
	ErrVerify = errors.New("signature verification failed")
)

// IsIntegrityError 是否为完整性错误（解密或验签失败）
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrDecrypt) || errors.Is(err, ErrVerify)
}
