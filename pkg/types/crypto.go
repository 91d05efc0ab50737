package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              长度常量
// ============================================================================

const (
	// PublicKeyLength 公钥长度
	PublicKeyLength = 32
	// SecretKeyLength 私钥长度
	SecretKeyLength = 32
	// SignatureLength 签名长度
	SignatureLength = 64
	// NonceLength 随机数长度（XChaCha20）
	NonceLength = 24
	// SharedSecretLength 共享密钥长度
	SharedSecretLength = 32
	// HashDigestLength 哈希摘要长度
	HashDigestLength = 32
)

// ============================================================================
//                              CryptoKind
// ============================================================================

// CryptoKind 密码套件标识（FourCC）
type CryptoKind [4]byte

var (
	// CryptoKindVLD0 默认密码套件：Ed25519 + Blake3 + XChaCha20-Poly1305 + Argon2id
	CryptoKindVLD0 = CryptoKind{'V', 'L', 'D', '0'}

	// CryptoKindNONE 不安全的测试套件，仅在显式启用时有效
	CryptoKindNONE = CryptoKind{'N', 'O', 'N', 'E'}
)

// String 返回 FourCC 字符串
func (k CryptoKind) String() string {
	return string(k[:])
}

// IsZero 是否为空标识
func (k CryptoKind) IsZero() bool {
	return k == CryptoKind{}
}

// MarshalText 实现 encoding.TextMarshaler
func (k CryptoKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *CryptoKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCryptoKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseCryptoKind 解析 FourCC 字符串
//
// 只校验格式（4 个可打印 ASCII 字符），是否受支持由 Crypto Provider 判断。
func ParseCryptoKind(s string) (CryptoKind, error) {
	if len(s) != 4 {
		return CryptoKind{}, fmt.Errorf("%w: %q", ErrInvalidCryptoKind, s)
	}
	var k CryptoKind
	for i := 0; i < 4; i++ {
		c := s[i]
		if c < 0x21 || c > 0x7e {
			return CryptoKind{}, fmt.Errorf("%w: %q", ErrInvalidCryptoKind, s)
		}
		k[i] = c
	}
	return k, nil
}

// ============================================================================
//                              定长字节类型
// ============================================================================

// PublicKey 公钥
type PublicKey [PublicKeyLength]byte

// SecretKey 私钥（Ed25519 种子）
type SecretKey [SecretKeyLength]byte

// Signature 签名
type Signature [SignatureLength]byte

// Nonce AEAD 随机数
type Nonce [NonceLength]byte

// SharedSecret 对称共享密钥
type SharedSecret [SharedSecretLength]byte

// HashDigest 哈希摘要
type HashDigest [HashDigestLength]byte

// String 返回 Base58 编码
func (k PublicKey) String() string { return base58.Encode(k[:]) }

// String 返回 Base58 编码
func (k SecretKey) String() string { return base58.Encode(k[:]) }

// String 返回 Base58 编码
func (s Signature) String() string { return base58.Encode(s[:]) }

// String 返回 Base58 编码
func (n Nonce) String() string { return base58.Encode(n[:]) }

// String 返回 Base58 编码
func (s SharedSecret) String() string { return base58.Encode(s[:]) }

// String 返回 Base58 编码
func (h HashDigest) String() string { return base58.Encode(h[:]) }

// IsZero 是否为全零
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

// Bytes 返回字节副本
func (k PublicKey) Bytes() []byte { return bytes.Clone(k[:]) }

// MarshalText 实现 encoding.TextMarshaler
func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *PublicKey) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), k[:])
}

// MarshalText 实现 encoding.TextMarshaler
func (k SecretKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *SecretKey) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), k[:])
}

// MarshalText 实现 encoding.TextMarshaler
func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *Signature) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), s[:])
}

// MarshalText 实现 encoding.TextMarshaler
func (n Nonce) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (n *Nonce) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), n[:])
}

// MarshalText 实现 encoding.TextMarshaler
func (s SharedSecret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *SharedSecret) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), s[:])
}

// MarshalText 实现 encoding.TextMarshaler
func (h HashDigest) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (h *HashDigest) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), h[:])
}

// ParsePublicKey 从 Base58 字符串解析公钥
func ParsePublicKey(s string) (PublicKey, error) {
	var k PublicKey
	err := decodeFixed(s, k[:])
	return k, err
}

// ParseSecretKey 从 Base58 字符串解析私钥
func ParseSecretKey(s string) (SecretKey, error) {
	var k SecretKey
	err := decodeFixed(s, k[:])
	return k, err
}

// PublicKeyFromBytes 从原始字节构造公钥
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var k PublicKey
	if len(b) != PublicKeyLength {
		return k, fmt.Errorf("%w: public key %d", ErrInvalidKeyLength, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// NonceFromBytes 从原始字节构造随机数
func NonceFromBytes(b []byte) (Nonce, error) {
	var n Nonce
	if len(b) != NonceLength {
		return n, fmt.Errorf("%w: nonce %d", ErrInvalidKeyLength, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// SharedSecretFromBytes 从原始字节构造共享密钥
func SharedSecretFromBytes(b []byte) (SharedSecret, error) {
	var s SharedSecret
	if len(b) != SharedSecretLength {
		return s, fmt.Errorf("%w: shared secret %d", ErrInvalidKeyLength, len(b))
	}
	copy(s[:], b)
	return s, nil
}

func decodeFixed(s string, out []byte) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(raw) != len(out) {
		return fmt.Errorf("%w: want %d got %d", ErrInvalidKeyLength, len(out), len(raw))
	}
	copy(out, raw)
	return nil
}

// ============================================================================
//                              KeyPair
// ============================================================================

// KeyPair 公私钥对
//
// 字符串形式为 "public:secret"，两部分均为 Base58。
type KeyPair struct {
	Key    PublicKey
	Secret SecretKey
}

// String 返回 "public:secret"
func (kp KeyPair) String() string {
	return kp.Key.String() + ":" + kp.Secret.String()
}

// MarshalText 实现 encoding.TextMarshaler
func (kp KeyPair) MarshalText() ([]byte, error) { return []byte(kp.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (kp *KeyPair) UnmarshalText(text []byte) error {
	parsed, err := ParseKeyPair(string(text))
	if err != nil {
		return err
	}
	*kp = parsed
	return nil
}

// ParseKeyPair 解析 "public:secret"
func ParseKeyPair(s string) (KeyPair, error) {
	pub, sec, ok := strings.Cut(s, ":")
	if !ok || strings.Contains(sec, ":") {
		return KeyPair{}, fmt.Errorf("%w: %q", ErrInvalidKeyPair, s)
	}
	key, err := ParsePublicKey(pub)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: public: %v", ErrInvalidKeyPair, err)
	}
	secret, err := ParseSecretKey(sec)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: secret: %v", ErrInvalidKeyPair, err)
	}
	return KeyPair{Key: key, Secret: secret}, nil
}

// ============================================================================
//                              Typed 类型
// ============================================================================

// TypedKey 带套件标识的公钥，字符串形式 "VLD0:<base58>"
type TypedKey struct {
	Kind  CryptoKind
	Value PublicKey
}

// NewTypedKey 构造 TypedKey
func NewTypedKey(kind CryptoKind, value PublicKey) TypedKey {
	return TypedKey{Kind: kind, Value: value}
}

// String 返回 "KIND:base58"
func (k TypedKey) String() string {
	return k.Kind.String() + ":" + k.Value.String()
}

// IsZero 是否为空
func (k TypedKey) IsZero() bool {
	return k.Kind.IsZero() && k.Value.IsZero()
}

// MarshalText 实现 encoding.TextMarshaler
func (k TypedKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *TypedKey) UnmarshalText(text []byte) error {
	parsed, err := ParseTypedKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseTypedKey 解析 "KIND:base58"
func ParseTypedKey(s string) (TypedKey, error) {
	kindStr, keyStr, ok := strings.Cut(s, ":")
	if !ok {
		return TypedKey{}, fmt.Errorf("%w: %q", ErrInvalidTypedKey, s)
	}
	kind, err := ParseCryptoKind(kindStr)
	if err != nil {
		return TypedKey{}, err
	}
	key, err := ParsePublicKey(keyStr)
	if err != nil {
		return TypedKey{}, fmt.Errorf("%w: %v", ErrInvalidTypedKey, err)
	}
	return TypedKey{Kind: kind, Value: key}, nil
}

// RecordKey DHT 记录键
type RecordKey = TypedKey

// TypedKeyPair 带套件标识的密钥对
type TypedKeyPair struct {
	Kind CryptoKind
	KeyPair
}

// String 返回 "KIND:public:secret"
func (kp TypedKeyPair) String() string {
	return kp.Kind.String() + ":" + kp.KeyPair.String()
}

// TypedKey 返回公钥部分
func (kp TypedKeyPair) TypedKey() TypedKey {
	return TypedKey{Kind: kp.Kind, Value: kp.Key}
}

// ParseTypedKeyPair 解析 "KIND:public:secret" 或 "public:secret"
//
// 后者没有套件标识时使用 defaultKind。
func ParseTypedKeyPair(s string, defaultKind CryptoKind) (TypedKeyPair, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		kp, err := ParseKeyPair(s)
		if err != nil {
			return TypedKeyPair{}, err
		}
		return TypedKeyPair{Kind: defaultKind, KeyPair: kp}, nil
	case 3:
		kind, err := ParseCryptoKind(parts[0])
		if err != nil {
			return TypedKeyPair{}, err
		}
		kp, err := ParseKeyPair(parts[1] + ":" + parts[2])
		if err != nil {
			return TypedKeyPair{}, err
		}
		return TypedKeyPair{Kind: kind, KeyPair: kp}, nil
	default:
		return TypedKeyPair{}, fmt.Errorf("%w: %q", ErrInvalidKeyPair, s)
	}
}
