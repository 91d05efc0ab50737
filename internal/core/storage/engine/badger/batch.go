package badger

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
)

// WriteBatch BadgerDB 批量写入
type WriteBatch struct {
	db     *Engine
	batch  *badger.WriteBatch
	count  int
	err    error
	closed bool
}

var _ engine.Batch = (*WriteBatch)(nil)

// Put 添加写入操作，错误推迟到 Write 返回
func (b *WriteBatch) Put(key, value []byte) {
	if b.closed || b.err != nil || len(key) == 0 {
		return
	}
	b.err = b.batch.Set(key, value)
	b.count++
}

// Delete 添加删除操作
func (b *WriteBatch) Delete(key []byte) {
	if b.closed || b.err != nil || len(key) == 0 {
		return
	}
	b.err = b.batch.Delete(key)
	b.count++
}

// Write 刷新全部操作
func (b *WriteBatch) Write() error {
	if b.closed {
		return engine.ErrBatchClosed
	}
	if b.db.closed.Load() {
		return engine.ErrClosed
	}
	if b.db.config.ReadOnly {
		return engine.ErrReadOnly
	}
	if b.err != nil {
		err := b.err
		b.batch.Cancel()
		b.reset()
		return convertError(err)
	}
	if err := b.batch.Flush(); err != nil {
		b.reset()
		return convertError(err)
	}
	b.db.stats.numWrites.Add(int64(b.count))
	b.reset()
	return nil
}

// reset 刷新后的 WriteBatch 不能复用，重新创建
func (b *WriteBatch) reset() {
	b.count = 0
	b.err = nil
	b.batch = b.db.db.NewWriteBatch()
}

// Size 待写入的操作数量
func (b *WriteBatch) Size() int {
	return b.count
}

// Cancel 放弃未写入的操作
func (b *WriteBatch) Cancel() {
	if b.closed {
		return
	}
	b.closed = true
	b.batch.Cancel()
}
