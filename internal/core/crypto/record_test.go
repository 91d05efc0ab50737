package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/pkg/types"
)

func TestRecordKey_Deterministic(t *testing.T) {
	v := VLD0{}
	owner, err := v.GenerateKeyPair()
	require.NoError(t, err)

	a := RecordKey(v, owner.Key, types.NewDFLTSchema(2))
	b := RecordKey(v, owner.Key, types.NewDFLTSchema(2))
	c := RecordKey(v, owner.Key, types.NewDFLTSchema(3))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, types.CryptoKindVLD0, a.Kind)
}

func TestCheckDescriptor(t *testing.T) {
	v := VLD0{}
	owner, err := v.GenerateKeyPair()
	require.NoError(t, err)
	schema := types.NewDFLTSchema(1)
	desc := types.DHTRecordDescriptor{Key: RecordKey(v, owner.Key, schema), Owner: owner.Key, Schema: schema}

	assert.NoError(t, CheckDescriptor(v, desc))

	wrongSchema := desc
	wrongSchema.Schema = types.NewDFLTSchema(4)
	assert.ErrorIs(t, CheckDescriptor(v, wrongSchema), ErrInvalidKey)

	invalid := desc
	invalid.Schema = types.NewDFLTSchema(0)
	assert.ErrorIs(t, CheckDescriptor(v, invalid), types.ErrInvalidSchema)

	assert.ErrorIs(t, CheckDescriptor(NONE{}, desc), ErrInvalidKind)
}

func TestSignVerifyValue(t *testing.T) {
	v := VLD0{}
	owner, err := v.GenerateKeyPair()
	require.NoError(t, err)
	writer, err := v.GenerateKeyPair()
	require.NoError(t, err)

	value := types.ValueData{Seq: 3, Data: []byte("payload"), Writer: writer.Key}
	signed, err := SignValue(v, owner.Key, 1, value, writer)
	require.NoError(t, err)
	assert.NoError(t, VerifyValue(v, owner.Key, 1, signed))

	// 签名绑定子键与所有者
	assert.ErrorIs(t, VerifyValue(v, owner.Key, 2, signed), ErrVerify)
	assert.ErrorIs(t, VerifyValue(v, writer.Key, 1, signed), ErrVerify)

	bumped := signed
	bumped.Seq++
	assert.ErrorIs(t, VerifyValue(v, owner.Key, 1, bumped), ErrVerify)

	_, err = SignValue(v, owner.Key, 1, value, owner)
	assert.ErrorIs(t, err, ErrInvalidKeyPair)
}
