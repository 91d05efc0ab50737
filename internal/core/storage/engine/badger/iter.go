package badger

import (
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
)

// Iterator BadgerDB 前缀迭代器
type Iterator struct {
	txn     *badger.Txn
	iter    *badger.Iterator
	prefix  []byte
	ownsTxn bool
	started bool
	closed  atomic.Bool
	err     error
}

var _ engine.Iterator = (*Iterator)(nil)

func newIterator(txn *badger.Txn, prefix []byte, keysOnly, ownsTxn bool) *Iterator {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !keysOnly
	return &Iterator{
		txn:     txn,
		iter:    txn.NewIterator(opts),
		prefix:  prefix,
		ownsTxn: ownsTxn,
	}
}

// First 定位到第一个键
func (it *Iterator) First() bool {
	if it.closed.Load() {
		return false
	}
	it.started = true
	if len(it.prefix) > 0 {
		it.iter.Seek(it.prefix)
	} else {
		it.iter.Rewind()
	}
	return it.iter.Valid()
}

// Next 前进一步
func (it *Iterator) Next() bool {
	if it.closed.Load() {
		return false
	}
	if !it.started {
		return it.First()
	}
	it.iter.Next()
	return it.iter.Valid()
}

// Valid 当前位置是否有效
func (it *Iterator) Valid() bool {
	return !it.closed.Load() && it.started && it.iter.Valid()
}

// Key 当前键的副本
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.iter.Item().KeyCopy(nil)
}

// Value 当前值的副本
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	v, err := it.iter.Item().ValueCopy(nil)
	if err != nil {
		it.err = err
		return nil
	}
	return v
}

// Close 关闭迭代器
func (it *Iterator) Close() {
	if it.closed.Swap(true) {
		return
	}
	it.iter.Close()
	if it.ownsTxn {
		it.txn.Discard()
	}
}

// Error 迭代过程中的错误
func (it *Iterator) Error() error {
	return it.err
}
