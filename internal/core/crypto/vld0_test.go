package crypto

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
// 签名测试
// ============================================================================

func TestVLD0_SignVerify(t *testing.T) {
	v := VLD0{}
	kp, err := v.GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("test message")
	sig, err := v.Sign(kp.Key, kp.Secret, data)
	require.NoError(t, err)
	assert.NoError(t, v.Verify(kp.Key, data, sig))

	// 篡改数据
	err = v.Verify(kp.Key, []byte("test messagE"), sig)
	assert.ErrorIs(t, err, ErrVerify)

	// 篡改签名
	sig[0] ^= 0x01
	assert.ErrorIs(t, v.Verify(kp.Key, data, sig), ErrVerify)
}

func TestVLD0_SignWithMismatchedKeyPair(t *testing.T) {
	v := VLD0{}
	a, err := v.GenerateKeyPair()
	require.NoError(t, err)
	b, err := v.GenerateKeyPair()
	require.NoError(t, err)

	_, err = v.Sign(a.Key, b.Secret, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeyPair)
}

func TestVLD0_ValidateKeyPair(t *testing.T) {
	v := VLD0{}
	a, err := v.GenerateKeyPair()
	require.NoError(t, err)
	b, err := v.GenerateKeyPair()
	require.NoError(t, err)

	assert.True(t, v.ValidateKeyPair(a.Key, a.Secret))
	assert.False(t, v.ValidateKeyPair(a.Key, b.Secret))
	assert.False(t, v.ValidateKeyPair(types.PublicKey{}, types.SecretKey{}))
}

// ============================================================================
// 哈希测试
// ============================================================================

func TestVLD0_Hash(t *testing.T) {
	v := VLD0{}
	for _, data := range [][]byte{nil, {}, []byte("a"), bytes.Repeat([]byte{7}, 4096)} {
		h := v.GenerateHash(data)
		assert.True(t, v.ValidateHash(data, h))

		hr, err := v.GenerateHashReader(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, h, hr)
	}
	assert.False(t, v.ValidateHash([]byte("a"), v.GenerateHash([]byte("b"))))
}

func TestVLD0_Distance(t *testing.T) {
	v := VLD0{}
	a, _ := v.GenerateKeyPair()
	b, _ := v.GenerateKeyPair()

	assert.Equal(t, types.HashDigest{}, v.Distance(a.Key, a.Key))
	assert.Equal(t, v.Distance(a.Key, b.Key), v.Distance(b.Key, a.Key))
}

// ============================================================================
// 口令测试
// ============================================================================

func TestVLD0_Password(t *testing.T) {
	v := VLD0{}
	salt, err := v.RandomBytes(v.DefaultSaltLength())
	require.NoError(t, err)

	hash, err := v.HashPassword([]byte("abc123"), salt)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"))

	ok, err := v.VerifyPassword([]byte("abc123"), hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.VerifyPassword([]byte("abc124"), hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.VerifyPassword([]byte("abc1234567"), hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVLD0_PasswordErrors(t *testing.T) {
	v := VLD0{}
	_, err := v.HashPassword([]byte("x"), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidSalt)

	_, err = v.HashPassword([]byte("x"), make([]byte, 65))
	assert.ErrorIs(t, err, ErrInvalidSalt)

	for _, bad := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$AAAA$AAAA", "$argon2id$v=19$m=x,t=1,p=1$AAAA$AAAA"} {
		_, err = v.VerifyPassword([]byte("x"), bad)
		assert.ErrorIs(t, err, ErrInvalidFormat, bad)
	}
}

func TestVLD0_VerifyPasswordRejectsCostlyParams(t *testing.T) {
	v := VLD0{}
	salt, err := v.RandomBytes(v.DefaultSaltLength())
	require.NoError(t, err)
	hash, err := v.HashPassword([]byte("abc123"), salt)
	require.NoError(t, err)
	parts := strings.Split(hash, "$")
	require.Len(t, parts, 6)

	tests := []struct {
		name   string
		params string
		hash   string
	}{
		{"huge memory", "m=4294967295,t=2,p=1", parts[5]},
		{"memory above limit", "m=2097153,t=2,p=1", parts[5]},
		{"huge time", "m=19456,t=200000,p=1", parts[5]},
		{"time above limit", "m=19456,t=17,p=1", parts[5]},
		{"long hash", "m=19456,t=2,p=1", phcEncoding.EncodeToString(make([]byte, 96))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := strings.Join([]string{"", parts[1], parts[2], tt.params, parts[4], tt.hash}, "$")
			start := time.Now()
			ok, err := v.VerifyPassword([]byte("abc123"), bad)
			assert.ErrorIs(t, err, ErrInvalidFormat)
			assert.False(t, ok)
			assert.Less(t, time.Since(start), time.Second)
		})
	}

	// 上限内的参数照常校验
	ok, err := v.VerifyPassword([]byte("abc123"), hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVLD0_DeriveSharedSecret(t *testing.T) {
	v := VLD0{}
	salt := []byte("0123456789abcdef")
	a, err := v.DeriveSharedSecret([]byte("pw"), salt)
	require.NoError(t, err)
	b, err := v.DeriveSharedSecret([]byte("pw"), salt)
	require.NoError(t, err)
	c, err := v.DeriveSharedSecret([]byte("pw2"), salt)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

// ============================================================================
// 密钥协商与加密测试
// ============================================================================

func TestVLD0_DHSymmetric(t *testing.T) {
	v := VLD0{}
	a, _ := v.GenerateKeyPair()
	b, _ := v.GenerateKeyPair()

	ab, err := v.ComputeDH(b.Key, a.Secret)
	require.NoError(t, err)
	ba, err := v.ComputeDH(a.Key, b.Secret)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	sab, err := v.GenerateSharedSecret(b.Key, a.Secret, []byte("domain"))
	require.NoError(t, err)
	sba, err := v.GenerateSharedSecret(a.Key, b.Secret, []byte("domain"))
	require.NoError(t, err)
	assert.Equal(t, sab, sba)
	assert.NotEqual(t, types.SharedSecret(ab), sab)

	other, err := v.GenerateSharedSecret(b.Key, a.Secret, []byte("other"))
	require.NoError(t, err)
	assert.NotEqual(t, sab, other)
}

func TestVLD0_Aead(t *testing.T) {
	v := VLD0{}
	nonce := v.RandomNonce()
	secret := v.RandomSharedSecret()
	body := []byte("hello aead")
	ad := []byte("ad")

	ct, err := v.EncryptAead(body, nonce, secret, ad)
	require.NoError(t, err)
	assert.Len(t, ct, len(body)+v.AeadOverhead())

	pt, err := v.DecryptAead(ct, nonce, secret, ad)
	require.NoError(t, err)
	assert.Equal(t, body, pt)

	_, err = v.DecryptAead(ct, nonce, secret, []byte("other"))
	assert.ErrorIs(t, err, ErrDecrypt)
	assert.True(t, IsIntegrityError(err))

	ct[0] ^= 1
	_, err = v.DecryptAead(ct, nonce, secret, ad)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestVLD0_CryptNoAuth(t *testing.T) {
	v := VLD0{}
	nonce := v.RandomNonce()
	secret := v.RandomSharedSecret()
	body := []byte("stream cipher body")

	ct := v.CryptNoAuth(body, nonce, secret)
	assert.NotEqual(t, body, ct)
	assert.Equal(t, body, v.CryptNoAuth(ct, nonce, secret))
}
