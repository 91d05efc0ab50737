package tablestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

// maxDeleteRetries 读后删冲突时的重试次数
const maxDeleteRetries = 8

// table 进程内共享的表状态
type table struct {
	store   *Store
	id      string
	columns uint32
	// refs 由 store.mu 保护
	refs int
	// dead 存储关闭后置位
	dead atomic.Bool

	nameMu sync.RWMutex
	name   string
}

func (t *table) getName() string {
	t.nameMu.RLock()
	defer t.nameMu.RUnlock()
	return t.name
}

func (t *table) setName(name string) {
	t.nameMu.Lock()
	t.name = name
	t.nameMu.Unlock()
}

// TableDB 表句柄
type TableDB struct {
	t      *table
	closed atomic.Bool
}

var _ interfaces.TableDB = (*TableDB)(nil)

func newHandle(t *table) *TableDB {
	return &TableDB{t: t}
}

func (h *TableDB) check(col uint32) error {
	if h.closed.Load() || h.t.dead.Load() {
		return ErrClosed
	}
	if col >= h.t.columns {
		return fmt.Errorf("%w: %d >= %d", ErrInvalidColumn, col, h.t.columns)
	}
	return nil
}

func (h *TableDB) eng() engine.Engine { return h.t.store.eng }

// Name 表名
func (h *TableDB) Name() string { return h.t.getName() }

// ColumnCount 列数
func (h *TableDB) ColumnCount() uint32 { return h.t.columns }

// GetKeys 列中当前所有键的快照
func (h *TableDB) GetKeys(col uint32) ([][]byte, error) {
	if err := h.check(col); err != nil {
		return nil, err
	}
	prefix := columnPrefix(h.t.id, col)
	it := h.eng().NewPrefixIterator(prefix, true)
	defer it.Close()

	keys := [][]byte{}
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, it.Key()[len(prefix):])
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Store 写入
func (h *TableDB) Store(col uint32, key, value []byte) error {
	if err := h.check(col); err != nil {
		return err
	}
	sealed, err := h.t.store.cipher.seal(col, key, value)
	if err != nil {
		return err
	}
	return h.eng().Put(dataKey(h.t.id, col, key), sealed)
}

// Load 读取，不存在时返回 ErrNotFound
func (h *TableDB) Load(col uint32, key []byte) ([]byte, error) {
	if err := h.check(col); err != nil {
		return nil, err
	}
	raw, err := h.eng().Get(dataKey(h.t.id, col, key))
	if errors.Is(err, engine.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return h.t.store.cipher.open(col, key, raw)
}

// Delete 删除并返回旧值
func (h *TableDB) Delete(col uint32, key []byte) ([]byte, error) {
	if err := h.check(col); err != nil {
		return nil, err
	}
	dk := dataKey(h.t.id, col, key)

	for attempt := 0; ; attempt++ {
		old, found, err := h.deleteOnce(dk)
		if engine.IsConflict(err) && attempt < maxDeleteRetries {
			continue
		}
		if err != nil || !found {
			return nil, err
		}
		return h.t.store.cipher.open(col, key, old)
	}
}

func (h *TableDB) deleteOnce(dk []byte) ([]byte, bool, error) {
	txn := h.eng().NewTransaction(true)
	defer txn.Discard()

	old, err := txn.Get(dk)
	if errors.Is(err, engine.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := txn.Delete(dk); err != nil {
		return nil, false, err
	}
	if err := txn.Commit(); err != nil {
		return nil, false, err
	}
	return old, true, nil
}

// StoreJSON 以 JSON 编码写入
func (h *TableDB) StoreJSON(col uint32, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.Store(col, key, data)
}

// LoadJSON 读取并以 JSON 解码
func (h *TableDB) LoadJSON(col uint32, key []byte, v any) error {
	data, err := h.Load(col, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// CreateTransaction 开始一个缓冲事务
func (h *TableDB) CreateTransaction() interfaces.TableDBTransaction {
	return &Transaction{h: h}
}

// Close 释放句柄，可重复调用
func (h *TableDB) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.t.store.release(h.t)
	return nil
}
