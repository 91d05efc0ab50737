package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNONE_KeyPairAndSign(t *testing.T) {
	n := NONE{}
	kp, err := n.GenerateKeyPair()
	require.NoError(t, err)
	for i := range kp.Key {
		require.Equal(t, ^kp.Key[i], kp.Secret[i])
	}
	assert.True(t, n.ValidateKeyPair(kp.Key, kp.Secret))

	data := []byte("payload")
	sig, err := n.Sign(kp.Key, kp.Secret, data)
	require.NoError(t, err)
	assert.NoError(t, n.Verify(kp.Key, data, sig))
	assert.ErrorIs(t, n.Verify(kp.Key, []byte("other"), sig), ErrVerify)

	other, _ := n.GenerateKeyPair()
	assert.ErrorIs(t, n.Verify(other.Key, data, sig), ErrVerify)
	_, err = n.Sign(kp.Key, other.Secret, data)
	assert.ErrorIs(t, err, ErrInvalidKeyPair)
}

func TestNONE_Password(t *testing.T) {
	n := NONE{}
	salt := []byte{1, 2, 3, 4}
	h, err := n.HashPassword([]byte("pw"), salt)
	require.NoError(t, err)
	assert.Equal(t, "AQIDBA:cHc", h)

	ok, err := n.VerifyPassword([]byte("pw"), h)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = n.VerifyPassword([]byte("px"), h)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = n.VerifyPassword([]byte("pw"), "nocolon")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = n.HashPassword([]byte("pw"), []byte{1})
	assert.ErrorIs(t, err, ErrInvalidSalt)
}

func TestNONE_AeadAndDH(t *testing.T) {
	n := NONE{}
	a, _ := n.GenerateKeyPair()
	b, _ := n.GenerateKeyPair()

	sab, err := n.GenerateSharedSecret(b.Key, a.Secret, []byte("d"))
	require.NoError(t, err)
	sba, err := n.GenerateSharedSecret(a.Key, b.Secret, []byte("d"))
	require.NoError(t, err)
	assert.Equal(t, sab, sba)

	nonce := n.RandomNonce()
	ct, err := n.EncryptAead([]byte("hello"), nonce, sab, nil)
	require.NoError(t, err)
	assert.Len(t, ct, 5+n.AeadOverhead())

	pt, err := n.DecryptAead(ct, nonce, sab, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)

	_, err = n.DecryptAead(ct, nonce, n.RandomSharedSecret(), nil)
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = n.DecryptAead([]byte("short"), nonce, sab, nil)
	assert.ErrorIs(t, err, ErrDecrypt)

	assert.Equal(t, []byte("abc"), n.CryptNoAuth(n.CryptNoAuth([]byte("abc"), nonce, sab), nonce, sab))
}
