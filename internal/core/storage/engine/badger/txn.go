package badger

import (
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
)

// Transaction BadgerDB 事务
type Transaction struct {
	eng       *Engine
	txn       *badger.Txn
	writable  bool
	writes    int64
	deletes   int64
	committed atomic.Bool
	discarded atomic.Bool
}

var _ engine.Transaction = (*Transaction)(nil)

func (t *Transaction) usable() error {
	if t.discarded.Load() || t.committed.Load() {
		return engine.ErrTransactionDiscarded
	}
	if t.eng.closed.Load() {
		return engine.ErrClosed
	}
	return nil
}

// Get 在事务中读取
func (t *Transaction) Get(key []byte) ([]byte, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, engine.ErrEmptyKey
	}
	item, err := t.txn.Get(key)
	if err != nil {
		return nil, convertError(err)
	}
	return item.ValueCopy(nil)
}

// Set 在事务中写入
func (t *Transaction) Set(key, value []byte) error {
	if err := t.usable(); err != nil {
		return err
	}
	if !t.writable {
		return engine.ErrReadOnly
	}
	if err := t.txn.Set(key, value); err != nil {
		return convertError(err)
	}
	t.writes++
	return nil
}

// Delete 在事务中删除
func (t *Transaction) Delete(key []byte) error {
	if err := t.usable(); err != nil {
		return err
	}
	if !t.writable {
		return engine.ErrReadOnly
	}
	if err := t.txn.Delete(key); err != nil {
		return convertError(err)
	}
	t.deletes++
	return nil
}

// Commit 提交事务
func (t *Transaction) Commit() error {
	if err := t.usable(); err != nil {
		return err
	}
	t.committed.Store(true)
	if err := t.txn.Commit(); err != nil {
		return convertError(err)
	}
	t.eng.stats.numWrites.Add(t.writes)
	t.eng.stats.numDeletes.Add(t.deletes)
	return nil
}

// Discard 丢弃事务
func (t *Transaction) Discard() {
	if t.discarded.Swap(true) || t.committed.Load() {
		return
	}
	t.txn.Discard()
}
