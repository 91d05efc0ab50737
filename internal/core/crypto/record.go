package crypto

import (
	"fmt"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
//                              记录相关原语
// ============================================================================

// RecordKey 计算记录键
//
//	key = hash(owner || compiled schema)
func RecordKey(cs interfaces.CryptoSystem, owner types.PublicKey, schema types.DHTSchema) types.RecordKey {
	digest := cs.GenerateHash(concat(owner[:], schema.Compile()))
	return types.NewTypedKey(cs.Kind(), types.PublicKey(digest))
}

// CheckDescriptor 校验描述符的模式与记录键是否一致
func CheckDescriptor(cs interfaces.CryptoSystem, desc types.DHTRecordDescriptor) error {
	if err := desc.Schema.Validate(); err != nil {
		return err
	}
	if desc.Key.Kind != cs.Kind() {
		return fmt.Errorf("%w: record %s, system %s", ErrInvalidKind, desc.Key.Kind, cs.Kind())
	}
	if RecordKey(cs, desc.Owner, desc.Schema) != desc.Key {
		return fmt.Errorf("%w: record key does not match owner and schema", ErrInvalidKey)
	}
	return nil
}

// SignValue 以 writer 对子键值签名
func SignValue(cs interfaces.CryptoSystem, owner types.PublicKey, subkey types.ValueSubkey, value types.ValueData, writer types.KeyPair) (types.SignedValueData, error) {
	if value.Writer != writer.Key {
		return types.SignedValueData{}, fmt.Errorf("%w: value writer differs from signing key", ErrInvalidKeyPair)
	}
	sig, err := cs.Sign(writer.Key, writer.Secret, types.SignatureBytes(owner, subkey, value))
	if err != nil {
		return types.SignedValueData{}, err
	}
	return types.SignedValueData{ValueData: value, Signature: sig}, nil
}

// VerifyValue 校验子键值签名
func VerifyValue(cs interfaces.CryptoSystem, owner types.PublicKey, subkey types.ValueSubkey, value types.SignedValueData) error {
	return cs.Verify(value.Writer, types.SignatureBytes(owner, subkey, value.ValueData), value.Signature)
}
