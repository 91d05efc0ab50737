package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

var logger = log.Logger("storage/badger")

// Engine BadgerDB 键值引擎
type Engine struct {
	db     *badger.DB
	config *engine.Config
	closed atomic.Bool

	stats struct {
		numReads   atomic.Int64
		numWrites  atomic.Int64
		numDeletes atomic.Int64
		numGCRuns  atomic.Int64
	}

	startOnce sync.Once
	gcCtx     context.Context
	gcCancel  context.CancelFunc
	gcWg      sync.WaitGroup
}

var _ engine.Engine = (*Engine)(nil)

// New 打开 BadgerDB 引擎
func New(cfg *engine.Config) (*Engine, error) {
	if cfg == nil {
		return nil, engine.ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, err
	}

	db, err := badger.Open(buildBadgerOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		db:       db,
		config:   cfg,
		gcCtx:    ctx,
		gcCancel: cancel,
	}, nil
}

func buildBadgerOptions(cfg *engine.Config) badger.Options {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path).
			WithSyncWrites(cfg.SyncWrites).
			WithReadOnly(cfg.ReadOnly)
	}

	opts = opts.
		WithNumVersionsToKeep(1).
		WithMemTableSize(cfg.MemTableSize).
		WithBlockCacheSize(cfg.BlockCacheSize)

	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}
	return opts
}

// ============================================================================
//                              日志适配
// ============================================================================

// slogAdapter 将 badger 的 printf 风格日志转发到组件日志
type slogAdapter struct {
	l *log.LazyLogger
}

// NewLogger 返回转发到组件日志的 badger 日志适配器
func NewLogger(component string) engine.Logger {
	return &slogAdapter{l: log.Logger(component)}
}

func (a *slogAdapter) Errorf(format string, args ...interface{}) {
	a.l.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...interface{}) {
	a.l.Warn(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, args...))
}

// ============================================================================
//                              后台 GC
// ============================================================================

// Start 启动值日志 GC，可重复调用
func (e *Engine) Start() error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if e.config.InMemory || e.config.ReadOnly || e.config.GCInterval <= 0 {
		return nil
	}
	e.startOnce.Do(func() {
		e.gcWg.Add(1)
		go e.gcLoop()
	})
	return nil
}

func (e *Engine) gcLoop() {
	defer e.gcWg.Done()

	ticker := time.NewTicker(e.config.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.gcCtx.Done():
			return
		case <-ticker.C:
			e.runGC()
		}
	}
}

func (e *Engine) runGC() {
	for !e.closed.Load() {
		err := e.db.RunValueLogGC(e.config.GCDiscardRatio)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				logger.Debug("值日志 GC 结束", "error", err)
			}
			return
		}
		e.stats.numGCRuns.Add(1)
	}
}

// ============================================================================
//                              基础操作
// ============================================================================

// Get 读取值
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}
	if len(key) == 0 {
		return nil, engine.ErrEmptyKey
	}

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	e.stats.numReads.Add(1)
	if err != nil {
		return nil, convertError(err)
	}
	return value, nil
}

// Put 写入键值对
func (e *Engine) Put(key, value []byte) error {
	if err := e.checkWritable(key); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err == nil {
		e.stats.numWrites.Add(1)
	}
	return convertError(err)
}

// Delete 删除键
func (e *Engine) Delete(key []byte) error {
	if err := e.checkWritable(key); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err == nil {
		e.stats.numDeletes.Add(1)
	}
	return convertError(err)
}

// Has 检查键是否存在
func (e *Engine) Has(key []byte) (bool, error) {
	_, err := e.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, engine.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (e *Engine) checkWritable(key []byte) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if e.config.ReadOnly {
		return engine.ErrReadOnly
	}
	if len(key) == 0 {
		return engine.ErrEmptyKey
	}
	return nil
}

// ============================================================================
//                              扩展操作
// ============================================================================

// NewBatch 创建批量写入对象
func (e *Engine) NewBatch() engine.Batch {
	return &WriteBatch{db: e, batch: e.db.NewWriteBatch()}
}

// NewPrefixIterator 创建前缀迭代器
func (e *Engine) NewPrefixIterator(prefix []byte, keysOnly bool) engine.Iterator {
	txn := e.db.NewTransaction(false)
	return newIterator(txn, prefix, keysOnly, true)
}

// NewTransaction 创建事务
func (e *Engine) NewTransaction(writable bool) engine.Transaction {
	return &Transaction{
		eng:      e,
		txn:      e.db.NewTransaction(writable),
		writable: writable,
	}
}

// DropAll 删除全部数据
func (e *Engine) DropAll() error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if e.config.ReadOnly {
		return engine.ErrReadOnly
	}
	return e.db.DropAll()
}

// Sync 同步数据到磁盘
func (e *Engine) Sync() error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if e.config.InMemory {
		return nil
	}
	return e.db.Sync()
}

// Stats 统计信息快照
func (e *Engine) Stats() *engine.Stats {
	s := &engine.Stats{
		NumReads:   e.stats.numReads.Load(),
		NumWrites:  e.stats.numWrites.Load(),
		NumDeletes: e.stats.numDeletes.Load(),
		NumGCRuns:  e.stats.numGCRuns.Load(),
	}
	if !e.closed.Load() {
		s.LSMSize, s.VlogSize = e.db.Size()
	}
	return s
}

// Close 关闭引擎
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.gcCancel()
	e.gcWg.Wait()
	return e.db.Close()
}

// convertError 转换 BadgerDB 错误
func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return engine.ErrNotFound
	case errors.Is(err, badger.ErrEmptyKey):
		return engine.ErrEmptyKey
	case errors.Is(err, badger.ErrTxnTooBig):
		return engine.ErrTransactionTooLarge
	case errors.Is(err, badger.ErrConflict):
		return engine.ErrTransactionConflict
	case errors.Is(err, badger.ErrDiscardedTxn):
		return engine.ErrTransactionDiscarded
	case errors.Is(err, badger.ErrReadOnlyTxn):
		return engine.ErrReadOnly
	default:
		return err
	}
}
