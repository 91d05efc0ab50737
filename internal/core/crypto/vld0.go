package crypto

import (
	"bytes"
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"lukechampine.com/blake3"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// Argon2id 参数（m=19456 KiB, t=2, p=1）
const (
	argon2Memory  uint32 = 19 * 1024
	argon2Time    uint32 = 2
	argon2Threads uint8  = 1
	argon2KeyLen  uint32 = 32
	argon2Version        = argon2.Version
)

// 校验外部哈希串时接受的参数上限
const (
	argon2MaxMemory uint32 = 1 << 21 // KiB
	argon2MaxTime   uint32 = 16
	argon2MaxKeyLen        = 64
)

const (
	vld0DefaultSaltLength = 16
	vld0MinSaltLength     = 8
	vld0MaxSaltLength     = 64
)

// phcEncoding PHC 字符串使用无填充的标准 base64
var phcEncoding = base64.RawStdEncoding

// ed25519ph 预哈希签名选项（空上下文）
var ed25519phOptions = &ed25519.Options{Hash: stdcrypto.SHA512}

// VLD0 默认密码套件
type VLD0 struct{}

var _ interfaces.CryptoSystem = VLD0{}

// Kind 返回 VLD0
func (VLD0) Kind() types.CryptoKind { return types.CryptoKindVLD0 }

// ============================================================================
//                              生成
// ============================================================================

// GenerateKeyPair 生成 Ed25519 密钥对，私钥为 32 字节种子
func (VLD0) GenerateKeyPair() (types.KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.KeyPair{}, err
	}
	var kp types.KeyPair
	copy(kp.Key[:], pub)
	copy(kp.Secret[:], priv.Seed())
	return kp, nil
}

// RandomBytes 生成 n 字节随机数
func (VLD0) RandomBytes(n int) ([]byte, error) { return randomBytes(n) }

// RandomNonce 生成随机 nonce
func (VLD0) RandomNonce() types.Nonce { return randomNonce() }

// RandomSharedSecret 生成随机共享密钥
func (VLD0) RandomSharedSecret() types.SharedSecret { return randomSharedSecret() }

// GenerateHash Blake3-256
func (VLD0) GenerateHash(data []byte) types.HashDigest { return blake3Hash(data) }

// GenerateHashReader 对流式输入做 Blake3-256
func (VLD0) GenerateHashReader(r io.Reader) (types.HashDigest, error) {
	return blake3HashReader(r)
}

// ============================================================================
//                              校验
// ============================================================================

// ValidateKeyPair 对固定消息签名并验签
func (v VLD0) ValidateKeyPair(key types.PublicKey, secret types.SecretKey) bool {
	sig, err := v.Sign(key, secret, validateKeyPairMessage)
	if err != nil {
		return false
	}
	return v.Verify(key, validateKeyPairMessage, sig) == nil
}

// ValidateHash 校验数据的哈希
func (VLD0) ValidateHash(data []byte, digest types.HashDigest) bool {
	h := blake3Hash(data)
	return subtle.ConstantTimeCompare(h[:], digest[:]) == 1
}

// Distance 异或距离
func (VLD0) Distance(a, b types.PublicKey) types.HashDigest { return xorDistance(a, b) }

// ============================================================================
//                              口令
// ============================================================================

// DefaultSaltLength 默认盐长度
func (VLD0) DefaultSaltLength() int { return vld0DefaultSaltLength }

// HashPassword 生成 Argon2id PHC 字符串
//
// 格式: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
func (VLD0) HashPassword(password, salt []byte) (string, error) {
	if err := checkSalt(salt, vld0MinSaltLength, vld0MaxSaltLength); err != nil {
		return "", err
	}
	hash := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version, argon2Memory, argon2Time, argon2Threads,
		phcEncoding.EncodeToString(salt), phcEncoding.EncodeToString(hash)), nil
}

// VerifyPassword 校验口令与 PHC 字符串，格式错误返回 error
func (VLD0) VerifyPassword(password []byte, passwordHash string) (bool, error) {
	p, err := parsePHC(passwordHash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey(password, p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(got, p.hash) == 1, nil
}

// DeriveSharedSecret 由口令派生 32 字节密钥
func (VLD0) DeriveSharedSecret(password, salt []byte) (types.SharedSecret, error) {
	if err := checkSalt(salt, vld0MinSaltLength, vld0MaxSaltLength); err != nil {
		return types.SharedSecret{}, err
	}
	var out types.SharedSecret
	copy(out[:], argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen))
	return out, nil
}

type phcParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func parsePHC(s string) (phcParams, error) {
	var p phcParams
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, ErrInvalidFormat
	}
	if parts[2] != "v="+strconv.Itoa(argon2Version) {
		return p, fmt.Errorf("%w: unsupported version %q", ErrInvalidFormat, parts[2])
	}
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return p, ErrInvalidFormat
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return p, fmt.Errorf("%w: %s", ErrInvalidFormat, kv)
		}
		switch k {
		case "m":
			if uint32(n) > argon2MaxMemory {
				return p, fmt.Errorf("%w: %s", ErrInvalidFormat, kv)
			}
			p.memory = uint32(n)
		case "t":
			if uint32(n) > argon2MaxTime {
				return p, fmt.Errorf("%w: %s", ErrInvalidFormat, kv)
			}
			p.time = uint32(n)
		case "p":
			if n == 0 || n > 255 {
				return p, fmt.Errorf("%w: %s", ErrInvalidFormat, kv)
			}
			p.threads = uint8(n)
		default:
			return p, fmt.Errorf("%w: unknown param %q", ErrInvalidFormat, k)
		}
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return p, ErrInvalidFormat
	}
	var err error
	if p.salt, err = phcEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("%w: salt: %v", ErrInvalidFormat, err)
	}
	if p.hash, err = phcEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 || len(p.hash) > argon2MaxKeyLen {
		return p, fmt.Errorf("%w: hash", ErrInvalidFormat)
	}
	return p, nil
}

// ============================================================================
//                              密钥协商
// ============================================================================

// ComputeDH 将 Ed25519 密钥转换到 Curve25519 后做 X25519
func (VLD0) ComputeDH(key types.PublicKey, secret types.SecretKey) (types.SharedSecret, error) {
	point, err := new(edwards25519.Point).SetBytes(key[:])
	if err != nil {
		return types.SharedSecret{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	h := sha512.Sum512(secret[:])
	// X25519 内部会做 clamping
	out, err := curve25519.X25519(h[:32], point.BytesMontgomery())
	if err != nil {
		return types.SharedSecret{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	var ss types.SharedSecret
	copy(ss[:], out)
	return ss, nil
}

// GenerateSharedSecret hash(dh || domain || "VLD0API")
func (v VLD0) GenerateSharedSecret(key types.PublicKey, secret types.SecretKey, domain []byte) (types.SharedSecret, error) {
	dh, err := v.ComputeDH(key, secret)
	if err != nil {
		return types.SharedSecret{}, err
	}
	return types.SharedSecret(blake3Hash(concat(dh[:], domain, apiDomainSuffix))), nil
}

// ============================================================================
//                              加密
// ============================================================================

// AeadOverhead Poly1305 标签长度
func (VLD0) AeadOverhead() int { return chacha20poly1305.Overhead }

// EncryptAead XChaCha20-Poly1305 加密
func (VLD0) EncryptAead(body []byte, nonce types.Nonce, secret types.SharedSecret, associatedData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(secret[:])
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce[:], body, associatedData), nil
}

// DecryptAead XChaCha20-Poly1305 解密
func (VLD0) DecryptAead(body []byte, nonce types.Nonce, secret types.SharedSecret, associatedData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(secret[:])
	if err != nil {
		return nil, err
	}
	out, err := aead.Open(nil, nonce[:], body, associatedData)
	if err != nil {
		return nil, ErrDecrypt
	}
	return out, nil
}

// CryptNoAuth XChaCha20 流加密，加解密为同一操作
func (VLD0) CryptNoAuth(body []byte, nonce types.Nonce, secret types.SharedSecret) []byte {
	c, err := chacha20.NewUnauthenticatedCipher(secret[:], nonce[:])
	if err != nil {
		// 密钥与 nonce 长度由类型保证
		panic(err)
	}
	out := make([]byte, len(body))
	c.XORKeyStream(out, body)
	return out
}

// ============================================================================
//                              签名
// ============================================================================

// Sign Ed25519ph 签名，预哈希为 Blake3-512
//
// 签名后立即验签，密钥对不匹配时返回 ErrInvalidKeyPair。
func (v VLD0) Sign(key types.PublicKey, secret types.SecretKey, data []byte) (types.Signature, error) {
	priv := ed25519.NewKeyFromSeed(secret[:])
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), key[:]) {
		return types.Signature{}, ErrInvalidKeyPair
	}
	digest := blake3.Sum512(data)
	raw, err := priv.Sign(nil, digest[:], ed25519phOptions)
	if err != nil {
		return types.Signature{}, err
	}
	var sig types.Signature
	copy(sig[:], raw)
	if err := v.Verify(key, data, sig); err != nil {
		return types.Signature{}, err
	}
	return sig, nil
}

// Verify Ed25519ph 验签
func (VLD0) Verify(key types.PublicKey, data []byte, signature types.Signature) error {
	digest := blake3.Sum512(data)
	if err := ed25519.VerifyWithOptions(ed25519.PublicKey(key[:]), digest[:], signature[:], ed25519phOptions); err != nil {
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	return nil
}
