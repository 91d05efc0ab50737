package identity

import (
	"fmt"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
//                              Identity
// ============================================================================

// Identity 节点身份
type Identity struct {
	kp types.TypedKeyPair
	cs interfaces.CryptoSystem
}

// New 由密钥对创建身份，密钥对必须通过套件校验
func New(c interfaces.Crypto, kp types.TypedKeyPair) (*Identity, error) {
	cs, err := c.Get(kp.Kind)
	if err != nil {
		return nil, err
	}
	if !cs.ValidateKeyPair(kp.Key, kp.Secret) {
		return nil, ErrKeyPairMismatch
	}
	return &Identity{kp: kp, cs: cs}, nil
}

// Generate 用首选套件生成新身份
func Generate(c interfaces.Crypto) (*Identity, error) {
	cs := c.Best()
	kp, err := cs.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate node key: %w", err)
	}
	return &Identity{kp: types.TypedKeyPair{Kind: cs.Kind(), KeyPair: kp}, cs: cs}, nil
}

// ID 节点 ID
func (i *Identity) ID() types.TypedKey {
	return i.kp.TypedKey()
}

// Kind 身份所属套件
func (i *Identity) Kind() types.CryptoKind {
	return i.kp.Kind
}

// KeyPair 返回密钥对
func (i *Identity) KeyPair() types.TypedKeyPair {
	return i.kp
}

// Sign 以节点私钥签名
func (i *Identity) Sign(data []byte) (types.Signature, error) {
	return i.cs.Sign(i.kp.Key, i.kp.Secret, data)
}

// Verify 校验节点签名
func (i *Identity) Verify(data []byte, sig types.Signature) error {
	return i.cs.Verify(i.kp.Key, data, sig)
}
