package tablestore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

var logger = log.Logger("core/tablestore")

// Options 表存储选项
type Options struct {
	// Namespace 命名空间，为空表示全局
	Namespace string

	// Encrypt 启用值加密
	Encrypt bool

	// DeviceKeyPassword 设备加密密钥口令
	DeviceKeyPassword string
}

// Store 表存储
type Store struct {
	eng    engine.Engine
	opts   Options
	cipher *valueCipher

	mu     sync.Mutex
	closed bool
	// 已打开的表，按表 ID 索引
	open map[string]*table
}

var _ interfaces.TableStore = (*Store)(nil)

// New 在引擎之上创建表存储，Store 拥有引擎并在 Close 时关闭它
func New(eng engine.Engine, crypto interfaces.Crypto, opts Options) (*Store, error) {
	s := &Store{
		eng:  eng,
		opts: opts,
		open: make(map[string]*table),
	}
	if opts.Encrypt {
		c, err := loadOrCreateDeviceKey(eng, crypto, opts.DeviceKeyPassword)
		if err != nil {
			return nil, err
		}
		s.cipher = c
	}
	return s, nil
}

// ============================================================================
//                              表管理
// ============================================================================

// Open 打开或创建表
func (s *Store) Open(name string, columnCount uint32) (interfaces.TableDB, error) {
	if columnCount == 0 {
		return nil, fmt.Errorf("%w: column count must be >= 1", ErrInvalidColumn)
	}
	stored, err := namespacedName(s.opts.Namespace, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	id, err := s.lookupID(stored)
	if err != nil && !errors.Is(err, ErrTableNotFound) {
		return nil, err
	}

	if id != "" {
		if t, ok := s.open[id]; ok {
			if t.columns != columnCount {
				return nil, fmt.Errorf("%w: %s is open with %d columns, requested %d",
					ErrColumnMismatch, name, t.columns, columnCount)
			}
			t.refs++
			return newHandle(t), nil
		}
	}

	txn := s.eng.NewTransaction(true)
	defer txn.Discard()

	created := false
	if id == "" {
		id = uuid.NewString()
		if err := txn.Set(nameKey(stored), []byte(id)); err != nil {
			return nil, err
		}
		created = true
	}

	storedCols := uint32(0)
	if raw, err := txn.Get(metaKey(id)); err == nil {
		if storedCols, err = decodeColumnCount(raw); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, engine.ErrNotFound) {
		return nil, err
	}
	// 列数只增不减，句柄按请求的列数受限
	if columnCount > storedCols {
		if err := txn.Set(metaKey(id), encodeColumnCount(columnCount)); err != nil {
			return nil, err
		}
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}

	t := &table{
		store:   s,
		name:    name,
		id:      id,
		columns: columnCount,
		refs:    1,
	}
	s.open[id] = t
	logger.Debug("打开表", "name", name, "columns", columnCount, "created", created)
	return newHandle(t), nil
}

// Delete 删除表，返回表是否存在
func (s *Store) Delete(name string) (bool, error) {
	stored, err := namespacedName(s.opts.Namespace, name)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	id, err := s.lookupID(stored)
	if errors.Is(err, ErrTableNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, ok := s.open[id]; ok {
		return false, fmt.Errorf("%w: %s", ErrTableOpen, name)
	}

	// 先删除名称映射，数据清理失败也不会被再次打开
	txn := s.eng.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Delete(nameKey(stored)); err != nil {
		return false, err
	}
	if err := txn.Delete(metaKey(id)); err != nil {
		return false, err
	}
	if err := txn.Commit(); err != nil {
		return false, err
	}

	n, err := s.deletePrefix(tablePrefix(id))
	if err != nil {
		logger.Warn("清理表数据失败", "name", name, "error", err)
		return true, err
	}
	logger.Debug("删除表", "name", name, "keys", n)
	return true, nil
}

// Rename 重命名表
func (s *Store) Rename(oldName, newName string) error {
	oldStored, err := namespacedName(s.opts.Namespace, oldName)
	if err != nil {
		return err
	}
	newStored, err := namespacedName(s.opts.Namespace, newName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	txn := s.eng.NewTransaction(true)
	defer txn.Discard()

	raw, err := txn.Get(nameKey(oldStored))
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, oldName)
	}
	if err != nil {
		return err
	}
	if _, err := txn.Get(nameKey(newStored)); err == nil {
		return fmt.Errorf("%w: %s", ErrTableExists, newName)
	} else if !errors.Is(err, engine.ErrNotFound) {
		return err
	}
	if err := txn.Delete(nameKey(oldStored)); err != nil {
		return err
	}
	if err := txn.Set(nameKey(newStored), raw); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}

	if t, ok := s.open[string(raw)]; ok {
		t.setName(newName)
	}
	return nil
}

// List 列出当前命名空间内的表名（已排序）
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	it := s.eng.NewPrefixIterator([]byte(namePrefix), true)
	defer it.Close()

	var names []string
	for it.First(); it.Valid(); it.Next() {
		stored := string(it.Key()[len(namePrefix):])
		if name, ok := userName(s.opts.Namespace, stored); ok {
			names = append(names, name)
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// DeleteAll 删除全部表，任何表处于打开状态时失败
//
// 设备加密密钥保留。
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.open) > 0 {
		return fmt.Errorf("%w: %d tables open", ErrTableOpen, len(s.open))
	}
	var total int
	for _, p := range []string{namePrefix, metaPrefix, dataPrefix} {
		n, err := s.deletePrefix([]byte(p))
		if err != nil {
			return err
		}
		total += n
	}
	logger.Info("已清空所有表", "keys", total)
	return nil
}

// OpenTables 当前打开的表名及句柄数
func (s *Store) OpenTables() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.open))
	for _, t := range s.open {
		out[t.getName()] = t.refs
	}
	return out
}

// Stats 底层引擎统计
func (s *Store) Stats() *engine.Stats {
	return s.eng.Stats()
}

// Encrypted 是否启用值加密
func (s *Store) Encrypted() bool {
	return s.cipher != nil
}

// Close 关闭表存储及底层引擎，未关闭的句柄随之失效
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, t := range s.open {
		t.dead.Store(true)
		delete(s.open, id)
	}
	s.mu.Unlock()
	return s.eng.Close()
}

// ============================================================================
//                              内部方法
// ============================================================================

// lookupID 调用方持有 s.mu
func (s *Store) lookupID(stored string) (string, error) {
	raw, err := s.eng.Get(nameKey(stored))
	if errors.Is(err, engine.ErrNotFound) {
		return "", ErrTableNotFound
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// deletePrefix 分批删除前缀下的全部键
func (s *Store) deletePrefix(prefix []byte) (int, error) {
	it := s.eng.NewPrefixIterator(prefix, true)
	var keys [][]byte
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, it.Key())
	}
	err := it.Error()
	it.Close()
	if err != nil {
		return 0, err
	}

	b := s.eng.NewBatch()
	defer b.Cancel()
	for _, k := range keys {
		b.Delete(k)
	}
	if err := b.Write(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// release 句柄关闭时调用
func (s *Store) release(t *table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.refs--
	if t.refs <= 0 {
		if cur, ok := s.open[t.id]; ok && cur == t {
			delete(s.open, t.id)
		}
	}
}
