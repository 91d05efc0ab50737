package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"lukechampine.com/blake3"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// apiDomainSuffix 共享密钥派生时追加在域之后的固定后缀
var apiDomainSuffix = []byte("VLD0API")

// validateKeyPairMessage 校验密钥对时签名的固定消息
var validateKeyPairMessage = make([]byte, 512)

// ============================================================================
//                              随机数
// ============================================================================

func randomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

func randomNonce() types.Nonce {
	var n types.Nonce
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failure: %v", err))
	}
	return n
}

func randomSharedSecret() types.SharedSecret {
	var s types.SharedSecret
	if _, err := io.ReadFull(rand.Reader, s[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failure: %v", err))
	}
	return s
}

// ============================================================================
//                              哈希
// ============================================================================

func blake3Hash(data []byte) types.HashDigest {
	return types.HashDigest(blake3.Sum256(data))
}

func blake3HashReader(r io.Reader) (types.HashDigest, error) {
	h := blake3.New(types.HashDigestLength, nil)
	if _, err := io.Copy(h, r); err != nil {
		return types.HashDigest{}, err
	}
	var out types.HashDigest
	copy(out[:], h.Sum(nil))
	return out, nil
}

func xorDistance(a, b types.PublicKey) types.HashDigest {
	var out types.HashDigest
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func checkSalt(salt []byte, min, max int) error {
	if len(salt) < min || len(salt) > max {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidSalt, len(salt), min, max)
	}
	return nil
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
