package tablestore

import (
	"encoding/json"
	"sync"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
)

type txnOp struct {
	col    uint32
	key    []byte
	value  []byte
	delete bool
}

// Transaction 缓冲事务
//
// 操作按调用顺序缓冲，Commit 时在一个引擎事务中应用，同键以最后一次为准。
type Transaction struct {
	h *TableDB

	mu   sync.Mutex
	ops  []txnOp
	done bool
}

var _ interfaces.TableDBTransaction = (*Transaction)(nil)

func (tx *Transaction) add(op txnOp) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTransactionDone
	}
	if err := tx.h.check(op.col); err != nil {
		return err
	}
	op.key = append([]byte(nil), op.key...)
	if !op.delete {
		op.value = append([]byte(nil), op.value...)
	}
	tx.ops = append(tx.ops, op)
	return nil
}

// Store 缓冲写入
func (tx *Transaction) Store(col uint32, key, value []byte) error {
	return tx.add(txnOp{col: col, key: key, value: value})
}

// Delete 缓冲删除
func (tx *Transaction) Delete(col uint32, key []byte) error {
	return tx.add(txnOp{col: col, key: key, delete: true})
}

// StoreJSON 以 JSON 编码缓冲写入
func (tx *Transaction) StoreJSON(col uint32, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Store(col, key, data)
}

// Commit 原子应用全部操作，失败时存储保持不变
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTransactionDone
	}
	tx.done = true
	ops := tx.ops
	tx.ops = nil

	if tx.h.closed.Load() || tx.h.t.dead.Load() {
		return ErrClosed
	}
	if len(ops) == 0 {
		return nil
	}

	t := tx.h.t
	txn := t.store.eng.NewTransaction(true)
	defer txn.Discard()
	for _, op := range ops {
		dk := dataKey(t.id, op.col, op.key)
		if op.delete {
			if err := txn.Delete(dk); err != nil {
				return err
			}
			continue
		}
		sealed, err := t.store.cipher.seal(op.col, op.key, op.value)
		if err != nil {
			return err
		}
		if err := txn.Set(dk, sealed); err != nil {
			return err
		}
	}
	return txn.Commit()
}

// Rollback 丢弃全部缓冲操作
func (tx *Transaction) Rollback() {
	tx.mu.Lock()
	tx.done = true
	tx.ops = nil
	tx.mu.Unlock()
}
