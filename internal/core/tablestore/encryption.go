package tablestore

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// valueCipher 表值加解密
//
// 为 nil 时值以明文存储。
type valueCipher struct {
	cs  interfaces.CryptoSystem
	key types.SharedSecret
}

func (c *valueCipher) seal(col uint32, key, value []byte) ([]byte, error) {
	if c == nil {
		return value, nil
	}
	nonce := c.cs.RandomNonce()
	ct, err := c.cs.EncryptAead(value, nonce, c.key, associatedData(col, key))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, types.NonceLength+len(ct))
	out = append(out, nonce[:]...)
	return append(out, ct...), nil
}

func (c *valueCipher) open(col uint32, key, stored []byte) ([]byte, error) {
	if c == nil {
		return stored, nil
	}
	if len(stored) < types.NonceLength+c.cs.AeadOverhead() {
		return nil, fmt.Errorf("%w: value too short", ErrDecrypt)
	}
	nonce, _ := types.NonceFromBytes(stored[:types.NonceLength])
	return c.cs.DecryptAead(stored[types.NonceLength:], nonce, c.key, associatedData(col, key))
}

// ============================================================================
//                              设备加密密钥
// ============================================================================

// loadOrCreateDeviceKey 读取设备加密密钥，不存在时生成并保存
func loadOrCreateDeviceKey(eng engine.Engine, crypto interfaces.Crypto, password string) (*valueCipher, error) {
	raw, err := eng.Get([]byte(deviceKeyEntry))
	switch {
	case err == nil:
		kind, key, err := unprotectDeviceKey(crypto, raw, password)
		if err != nil {
			return nil, err
		}
		cs, _ := crypto.Get(kind)
		return &valueCipher{cs: cs, key: key}, nil

	case errors.Is(err, engine.ErrNotFound):
		cs := crypto.Best()
		key := cs.RandomSharedSecret()
		protected, err := protectDeviceKey(cs, key, password)
		if err != nil {
			return nil, err
		}
		if err := eng.Put([]byte(deviceKeyEntry), protected); err != nil {
			return nil, err
		}
		logger.Info("已生成设备加密密钥", "kind", cs.Kind(), "protected", password != "")
		return &valueCipher{cs: cs, key: key}, nil

	default:
		return nil, err
	}
}

// protectDeviceKey 编码设备加密密钥
//
// 无口令: kind || key
// 有口令: kind || AEAD(key) || nonce，AEAD 密钥由口令以 nonce 为盐派生
func protectDeviceKey(cs interfaces.CryptoSystem, key types.SharedSecret, password string) ([]byte, error) {
	kind := cs.Kind()
	out := append([]byte(nil), kind[:]...)
	if password == "" {
		return append(out, key[:]...), nil
	}

	nonce := cs.RandomNonce()
	secret, err := cs.DeriveSharedSecret([]byte(password), nonce[:])
	if err != nil {
		return nil, fmt.Errorf("derive device key secret: %w", err)
	}
	ct, err := cs.EncryptAead(key[:], nonce, secret, nil)
	if err != nil {
		return nil, err
	}
	out = append(out, ct...)
	return append(out, nonce[:]...), nil
}

func unprotectDeviceKey(crypto interfaces.Crypto, raw []byte, password string) (types.CryptoKind, types.SharedSecret, error) {
	var kind types.CryptoKind
	if len(raw) < 4+types.SharedSecretLength {
		return kind, types.SharedSecret{}, fmt.Errorf("%w: too short", ErrInvalidDeviceKey)
	}
	copy(kind[:], raw[:4])
	cs, err := crypto.Get(kind)
	if err != nil {
		return kind, types.SharedSecret{}, fmt.Errorf("%w: %v", ErrInvalidDeviceKey, err)
	}

	if password == "" {
		if len(raw) != 4+types.SharedSecretLength {
			return kind, types.SharedSecret{}, fmt.Errorf("%w: key is password protected", ErrInvalidDeviceKey)
		}
		key, _ := types.SharedSecretFromBytes(raw[4:])
		return kind, key, nil
	}

	ctLen := types.SharedSecretLength + cs.AeadOverhead()
	if len(raw) != 4+ctLen+types.NonceLength {
		return kind, types.SharedSecret{}, fmt.Errorf("%w: key is not password protected", ErrInvalidDeviceKey)
	}
	nonce, _ := types.NonceFromBytes(raw[4+ctLen:])
	secret, err := cs.DeriveSharedSecret([]byte(password), nonce[:])
	if err != nil {
		return kind, types.SharedSecret{}, err
	}
	plain, err := cs.DecryptAead(raw[4:4+ctLen], nonce, secret, nil)
	if err != nil {
		return kind, types.SharedSecret{}, fmt.Errorf("%w: wrong password: %v", ErrInvalidDeviceKey, err)
	}
	key, err := types.SharedSecretFromBytes(plain)
	if err != nil {
		return kind, types.SharedSecret{}, fmt.Errorf("%w: %v", ErrInvalidDeviceKey, err)
	}
	return kind, key, nil
}
