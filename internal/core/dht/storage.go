package dht

import (
	"encoding/binary"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-veilcore/internal/core/tablestore"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// 本地记录表
const (
	recordTable   = "dht_local_records"
	recordColumns = 2
)

// 列
const (
	colMeta   uint32 = 0
	colValues uint32 = 1
)

// recordMeta 持久化的记录元数据
//
// 描述符不含所有者私钥。Seqs 与模式子键一一对应。
type recordMeta struct {
	Descriptor types.DHTRecordDescriptor `json:"descriptor"`
	Safety     types.SafetySelection     `json:"safety"`
	Seqs       []types.ValueSeqNum       `json:"seqs"`
	Sizes      []int                     `json:"sizes"`
	Offline    types.ValueSubkeyRangeSet `json:"offline"`
}

func newRecordMeta(desc types.DHTRecordDescriptor, safety types.SafetySelection) *recordMeta {
	n := desc.Schema.SubkeyCount()
	seqs := make([]types.ValueSeqNum, n)
	for i := range seqs {
		seqs[i] = types.ValueSeqNumNone
	}
	return &recordMeta{
		Descriptor: desc.WithoutSecret(),
		Safety:     safety,
		Seqs:       seqs,
		Sizes:      make([]int, n),
	}
}

func (m *recordMeta) clone() *recordMeta {
	out := *m
	out.Seqs = append([]types.ValueSeqNum(nil), m.Seqs...)
	out.Sizes = append([]int(nil), m.Sizes...)
	return &out
}

// totalSize 全部子键数据总大小
func (m *recordMeta) totalSize() int {
	n := 0
	for _, s := range m.Sizes {
		n += s
	}
	return n
}

// seq 子键的本地序列号
func (m *recordMeta) seq(subkey types.ValueSubkey) types.ValueSeqNum {
	if int(subkey) >= len(m.Seqs) {
		return types.ValueSeqNumNone
	}
	return m.Seqs[subkey]
}

// ============================================================================
//                              recordStorage
// ============================================================================

// recordStorage 本地记录表与元数据缓存
//
// 调用方负责按记录加锁。
type recordStorage struct {
	db    interfaces.TableDB
	cache *lru.Cache[types.RecordKey, *recordMeta]
}

func openRecordStorage(ts interfaces.TableStore, cacheSize int) (*recordStorage, error) {
	db, err := ts.Open(recordTable, recordColumns)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", recordTable, err)
	}
	cache, err := lru.New[types.RecordKey, *recordMeta](cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &recordStorage{db: db, cache: cache}, nil
}

func metaKey(key types.RecordKey) []byte {
	return []byte(key.String())
}

func valueKey(key types.RecordKey, subkey types.ValueSubkey) []byte {
	return binary.BigEndian.AppendUint32([]byte(key.String()+"/"), subkey)
}

// loadMeta 读取元数据，不存在时返回 nil
//
// 返回值由缓存共享，调用方不得修改，需要修改时先 clone。
func (s *recordStorage) loadMeta(key types.RecordKey) (*recordMeta, error) {
	if m, ok := s.cache.Get(key); ok {
		return m, nil
	}
	var m recordMeta
	if err := s.db.LoadJSON(colMeta, metaKey(key), &m); err != nil {
		if tablestore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	s.cache.Add(key, &m)
	return &m, nil
}

// loadValue 读取子键值，不存在时返回 nil
func (s *recordStorage) loadValue(key types.RecordKey, subkey types.ValueSubkey) (*types.SignedValueData, error) {
	var v types.SignedValueData
	if err := s.db.LoadJSON(colValues, valueKey(key, subkey), &v); err != nil {
		if tablestore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// storeMeta 只写元数据
func (s *recordStorage) storeMeta(key types.RecordKey, m *recordMeta) error {
	if err := s.db.StoreJSON(colMeta, metaKey(key), m); err != nil {
		s.cache.Remove(key)
		return err
	}
	s.cache.Add(key, m)
	return nil
}

// storeValue 在一个事务中写入子键值并更新元数据
func (s *recordStorage) storeValue(key types.RecordKey, m *recordMeta, subkey types.ValueSubkey, v types.SignedValueData) error {
	tx := s.db.CreateTransaction()
	if err := tx.StoreJSON(colValues, valueKey(key, subkey), v); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.StoreJSON(colMeta, metaKey(key), m); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		s.cache.Remove(key)
		return err
	}
	s.cache.Add(key, m)
	return nil
}

// deleteRecord 删除元数据与全部子键值，返回记录是否存在
func (s *recordStorage) deleteRecord(key types.RecordKey) (bool, error) {
	m, err := s.loadMeta(key)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	tx := s.db.CreateTransaction()
	for i := range m.Seqs {
		if err := tx.Delete(colValues, valueKey(key, types.ValueSubkey(i))); err != nil {
			tx.Rollback()
			return false, err
		}
	}
	if err := tx.Delete(colMeta, metaKey(key)); err != nil {
		tx.Rollback()
		return false, err
	}
	s.cache.Remove(key)
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// keys 本地全部记录键
func (s *recordStorage) keys() ([]types.RecordKey, error) {
	raw, err := s.db.GetKeys(colMeta)
	if err != nil {
		return nil, err
	}
	out := make([]types.RecordKey, 0, len(raw))
	var errs []error
	for _, k := range raw {
		key, err := types.ParseTypedKey(string(k))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, key)
	}
	if len(errs) > 0 {
		logger.Warn("跳过无法解析的记录键", "count", len(errs), "error", errors.Join(errs...))
	}
	return out, nil
}

func (s *recordStorage) close() error {
	s.cache.Purge()
	return s.db.Close()
}
