package interfaces

import (
	"io"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
// CryptoSystem 接口
// ════════════════════════════════════════════════════════════════════════════

// CryptoSystem 单个密码套件的全部原语
//
// 除随机数来源外，所有操作都是输入的纯函数。
type CryptoSystem interface {
	// Kind 套件标识
	Kind() types.CryptoKind

	// 生成
	GenerateKeyPair() (types.KeyPair, error)
	RandomBytes(n int) ([]byte, error)
	RandomNonce() types.Nonce
	RandomSharedSecret() types.SharedSecret
	GenerateHash(data []byte) types.HashDigest
	GenerateHashReader(r io.Reader) (types.HashDigest, error)

	// 校验
	ValidateKeyPair(key types.PublicKey, secret types.SecretKey) bool
	ValidateHash(data []byte, digest types.HashDigest) bool

	// 距离度量
	Distance(a, b types.PublicKey) types.HashDigest

	// 口令
	DefaultSaltLength() int
	HashPassword(password, salt []byte) (string, error)
	VerifyPassword(password []byte, passwordHash string) (bool, error)
	DeriveSharedSecret(password, salt []byte) (types.SharedSecret, error)

	// 密钥协商
	ComputeDH(key types.PublicKey, secret types.SecretKey) (types.SharedSecret, error)
	GenerateSharedSecret(key types.PublicKey, secret types.SecretKey, domain []byte) (types.SharedSecret, error)

	// 认证加密
	AeadOverhead() int
	EncryptAead(body []byte, nonce types.Nonce, secret types.SharedSecret, associatedData []byte) ([]byte, error)
	DecryptAead(body []byte, nonce types.Nonce, secret types.SharedSecret, associatedData []byte) ([]byte, error)

	// 无认证流加密（加解密对称）
	CryptNoAuth(body []byte, nonce types.Nonce, secret types.SharedSecret) []byte

	// 签名
	Sign(key types.PublicKey, secret types.SecretKey, data []byte) (types.Signature, error)
	// Verify 签名不匹配时返回错误而不是布尔值
	Verify(key types.PublicKey, data []byte, signature types.Signature) error
}

// ════════════════════════════════════════════════════════════════════════════
// Crypto 接口
// ════════════════════════════════════════════════════════════════════════════

// Crypto 密码学提供者，按套件标识分发
type Crypto interface {
	// ValidCryptoKinds 当前进程支持的全部套件，最优套件在前
	ValidCryptoKinds() []types.CryptoKind
	// BestCryptoKind 首选套件
	BestCryptoKind() types.CryptoKind
	// Get 获取指定套件
	Get(kind types.CryptoKind) (CryptoSystem, error)
	// Best 获取首选套件
	Best() CryptoSystem
	// CachedDH 带缓存的 DH
	CachedDH(kind types.CryptoKind, key types.PublicKey, secret types.SecretKey) (types.SharedSecret, error)
}
