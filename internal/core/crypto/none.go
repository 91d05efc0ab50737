package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"lukechampine.com/blake3"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

const (
	noneDefaultSaltLength = 4
	noneMinSaltLength     = 4
	noneMaxSaltLength     = 64
	noneAeadOverhead      = types.PublicKeyLength
)

var noneEncoding = base64.RawURLEncoding

// NONE 不安全的测试套件
//
// 私钥是公钥的按位取反，签名与加密都只是异或，绝不能用于生产。
type NONE struct{}

var _ interfaces.CryptoSystem = NONE{}

// Kind 返回 NONE
func (NONE) Kind() types.CryptoKind { return types.CryptoKindNONE }

// GenerateKeyPair 随机公钥，私钥取反
func (NONE) GenerateKeyPair() (types.KeyPair, error) {
	var kp types.KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.Key[:]); err != nil {
		return types.KeyPair{}, err
	}
	for i := range kp.Key {
		kp.Secret[i] = ^kp.Key[i]
	}
	return kp, nil
}

// RandomBytes 生成 n 字节随机数
func (NONE) RandomBytes(n int) ([]byte, error) { return randomBytes(n) }

// RandomNonce 生成随机 nonce
func (NONE) RandomNonce() types.Nonce { return randomNonce() }

// RandomSharedSecret 生成随机共享密钥
func (NONE) RandomSharedSecret() types.SharedSecret { return randomSharedSecret() }

// GenerateHash Blake3-256
func (NONE) GenerateHash(data []byte) types.HashDigest { return blake3Hash(data) }

// GenerateHashReader 对流式输入做 Blake3-256
func (NONE) GenerateHashReader(r io.Reader) (types.HashDigest, error) {
	return blake3HashReader(r)
}

// ValidateKeyPair 对固定消息签名并验签
func (n NONE) ValidateKeyPair(key types.PublicKey, secret types.SecretKey) bool {
	sig, err := n.Sign(key, secret, validateKeyPairMessage)
	if err != nil {
		return false
	}
	return n.Verify(key, validateKeyPairMessage, sig) == nil
}

// ValidateHash 校验数据的哈希
func (NONE) ValidateHash(data []byte, digest types.HashDigest) bool {
	return blake3Hash(data) == digest
}

// Distance 异或距离
func (NONE) Distance(a, b types.PublicKey) types.HashDigest { return xorDistance(a, b) }

// DefaultSaltLength 默认盐长度
func (NONE) DefaultSaltLength() int { return noneDefaultSaltLength }

// HashPassword 格式: base64url(salt):base64url(password)
func (NONE) HashPassword(password, salt []byte) (string, error) {
	if err := checkSalt(salt, noneMinSaltLength, noneMaxSaltLength); err != nil {
		return "", err
	}
	return noneEncoding.EncodeToString(salt) + ":" + noneEncoding.EncodeToString(password), nil
}

// VerifyPassword 用哈希中的盐重新计算并比较
func (n NONE) VerifyPassword(password []byte, passwordHash string) (bool, error) {
	saltPart, _, ok := strings.Cut(passwordHash, ":")
	if !ok {
		return false, ErrInvalidFormat
	}
	salt, err := noneEncoding.DecodeString(saltPart)
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrInvalidFormat, err)
	}
	h, err := n.HashPassword(password, salt)
	if err != nil {
		return false, err
	}
	return h == passwordHash, nil
}

// DeriveSharedSecret blake3(HashPassword(password, salt))
func (n NONE) DeriveSharedSecret(password, salt []byte) (types.SharedSecret, error) {
	h, err := n.HashPassword(password, salt)
	if err != nil {
		return types.SharedSecret{}, err
	}
	return types.SharedSecret(blake3Hash([]byte(h))), nil
}

// ComputeDH key ^ secret
func (NONE) ComputeDH(key types.PublicKey, secret types.SecretKey) (types.SharedSecret, error) {
	var out types.SharedSecret
	for i := range out {
		out[i] = key[i] ^ secret[i]
	}
	return out, nil
}

// GenerateSharedSecret hash(dh || domain || "VLD0API")
func (n NONE) GenerateSharedSecret(key types.PublicKey, secret types.SecretKey, domain []byte) (types.SharedSecret, error) {
	dh, err := n.ComputeDH(key, secret)
	if err != nil {
		return types.SharedSecret{}, err
	}
	return types.SharedSecret(blake3Hash(concat(dh[:], domain, apiDomainSuffix))), nil
}

// AeadOverhead 附加的密钥块长度
func (NONE) AeadOverhead() int { return noneAeadOverhead }

// noneKeyBlob (nonce || 0^8) ^ secret
func noneKeyBlob(nonce types.Nonce, secret types.SharedSecret) []byte {
	blob := make([]byte, noneAeadOverhead)
	copy(blob, nonce[:])
	for i := range blob {
		blob[i] ^= secret[i]
	}
	return blob
}

func xorWithKey(body, key []byte) []byte {
	out := make([]byte, len(body))
	for i := range body {
		out[i] = body[i] ^ key[i%len(key)]
	}
	return out
}

// EncryptAead 异或后追加密钥块，忽略关联数据
func (NONE) EncryptAead(body []byte, nonce types.Nonce, secret types.SharedSecret, _ []byte) ([]byte, error) {
	blob := noneKeyBlob(nonce, secret)
	return append(xorWithKey(body, blob), blob...), nil
}

// DecryptAead 校验尾部密钥块后异或还原
func (NONE) DecryptAead(body []byte, nonce types.Nonce, secret types.SharedSecret, _ []byte) ([]byte, error) {
	if len(body) < noneAeadOverhead {
		return nil, fmt.Errorf("%w: invalid length", ErrDecrypt)
	}
	blob := noneKeyBlob(nonce, secret)
	cut := len(body) - noneAeadOverhead
	if string(body[cut:]) != string(blob) {
		return nil, fmt.Errorf("%w: invalid keyblob", ErrDecrypt)
	}
	return xorWithKey(body[:cut], blob), nil
}

// CryptNoAuth 与密钥块异或
func (NONE) CryptNoAuth(body []byte, nonce types.Nonce, secret types.SharedSecret) []byte {
	return xorWithKey(body, noneKeyBlob(nonce, secret))
}

// Sign blake3-512(data)，后半部分与私钥异或
func (NONE) Sign(key types.PublicKey, secret types.SecretKey, data []byte) (types.Signature, error) {
	for i := range key {
		if key[i]^secret[i] != 0xFF {
			return types.Signature{}, ErrInvalidKeyPair
		}
	}
	digest := blake3.Sum512(data)
	var sig types.Signature
	copy(sig[:32], digest[:32])
	for i := 0; i < 32; i++ {
		sig[32+i] = digest[32+i] ^ secret[i]
	}
	return sig, nil
}

// Verify 前半部分等于摘要，后半部分与摘要异或后为公钥取反
func (NONE) Verify(key types.PublicKey, data []byte, signature types.Signature) error {
	digest := blake3.Sum512(data)
	for i := 0; i < 32; i++ {
		if digest[i] != signature[i] {
			return fmt.Errorf("%w: signature 0..32 is invalid", ErrVerify)
		}
	}
	for i := 0; i < 32; i++ {
		if digest[32+i]^signature[32+i]^key[i] != 0xFF {
			return fmt.Errorf("%w: signature 32..64 is invalid", ErrVerify)
		}
	}
	return nil
}
