package identity

import (
	"fmt"

	"github.com/dep2p/go-veilcore/internal/core/tablestore"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

const (
	tableName   = "__veilcore_identity"
	identityKey = "node_identity"
)

// ============================================================================
//                              身份持久化
// ============================================================================

// LoadOrCreate 从表存储加载身份，不存在时生成并保存
//
// 返回的 created 表示本次新生成了身份。
func LoadOrCreate(ts interfaces.TableStore, c interfaces.Crypto) (id *Identity, created bool, err error) {
	db, err := ts.Open(tableName, 1)
	if err != nil {
		return nil, false, fmt.Errorf("open identity table: %w", err)
	}
	defer db.Close()

	raw, err := db.Load(0, []byte(identityKey))
	switch {
	case err == nil:
		kp, perr := types.ParseTypedKeyPair(string(raw), c.BestCryptoKind())
		if perr != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptIdentity, perr)
		}
		id, err = New(c, kp)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptIdentity, err)
		}
		return id, false, nil
	case !tablestore.IsNotFound(err):
		return nil, false, fmt.Errorf("load identity: %w", err)
	}

	id, err = Generate(c)
	if err != nil {
		return nil, false, err
	}
	if err := db.Store(0, []byte(identityKey), []byte(id.kp.String())); err != nil {
		return nil, false, fmt.Errorf("save identity: %w", err)
	}
	logger.Info("已生成新的节点身份", "node", id.ID().String())
	return id, true, nil
}
