package dht

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// offlineMode 本地提交时对离线子键集合的处理
type offlineMode int

const (
	offlineKeep offlineMode = iota
	offlineMark
	offlineClear
)

// ============================================================================
//                              写入
// ============================================================================

// SetValue 写入子键
//
// writer 只对本次调用生效，缺省时使用打开记录时绑定的写者。
// 数据与写者都和当前值相同时不产生新版本。已连接时先推送到网络，
// 网络持有更新的值时采纳并返回该值；未连接时只写本地并记为离线子键。
func (m *Manager) SetValue(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkey types.ValueSubkey, data []byte, writer *types.KeyPair) (newer *types.ValueData, err error) {
	const op = "set_value"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, fail(op, key, err)
	}
	o, err := m.openState(key)
	if err != nil {
		return nil, fail(op, key, err)
	}
	cs, err := m.system(key.Kind)
	if err != nil {
		return nil, fail(op, key, err)
	}

	w := o.writer
	if writer != nil {
		if !cs.ValidateKeyPair(writer.Key, writer.Secret) {
			return nil, fail(op, key, ErrInvalidWriter)
		}
		w = writer
	}
	if w == nil {
		return nil, fail(op, key, ErrNotWritable)
	}

	unlockWrite := m.writes.lock(key)
	defer unlockWrite()

	meta, err := m.loadOpenMeta(key)
	if err != nil {
		return nil, fail(op, key, err)
	}
	desc := meta.Descriptor
	if int(subkey) >= desc.Schema.SubkeyCount() {
		return nil, fail(op, key, fmt.Errorf("%w: %d >= %d", ErrSubkeyOutOfRange, subkey, desc.Schema.SubkeyCount()))
	}
	if len(data) > m.cfg.MaxSubkeySize {
		return nil, fail(op, key, fmt.Errorf("%w: %d > %d", ErrValueTooLarge, len(data), m.cfg.MaxSubkeySize))
	}
	if !desc.Schema.CheckSubkeyWriter(desc.Owner, subkey, w.Key) {
		return nil, fail(op, key, fmt.Errorf("%w: subkey %d", ErrNotWritable, subkey))
	}

	current, err := m.storage.loadValue(key, subkey)
	if err != nil {
		return nil, fail(op, key, err)
	}
	if current != nil && current.Writer == w.Key && bytes.Equal(current.Data, data) {
		return nil, nil
	}
	if total := meta.totalSize() - meta.Sizes[subkey] + len(data); total > m.cfg.MaxRecordDataSize {
		return nil, fail(op, key, fmt.Errorf("%w: record total %d > %d", ErrValueTooLarge, total, m.cfg.MaxRecordDataSize))
	}

	seq := types.ValueSeqNum(0)
	if cur := meta.seq(subkey); cur != types.ValueSeqNumNone {
		seq = cur + 1
	}
	signed, err := crypto.SignValue(cs, desc.Owner, subkey, types.ValueData{
		Seq:    seq,
		Data:   append([]byte(nil), data...),
		Writer: w.Key,
	}, *w)
	if err != nil {
		return nil, fail(op, key, err)
	}

	if !m.attach.IsAttached() {
		if _, err := m.commitLocal(key, subkey, signed, offlineMark); err != nil {
			return nil, fail(op, key, err)
		}
		logger.Debug("离线写入", "key", key.String(), "subkey", subkey, "seq", seq)
		return nil, nil
	}

	nctx, cancel := context.WithTimeout(ctx, m.cfg.SetTimeout)
	defer cancel()
	resp, err := m.transport.SetValue(nctx, interfaces.SetValueRequest{
		Safety:     safety,
		Descriptor: desc.WithoutSecret(),
		Subkey:     subkey,
		Value:      signed,
	})
	if err != nil {
		return nil, fail(op, key, err)
	}
	if resp.Newer != nil {
		if err := m.validateValue(cs, desc, subkey, *resp.Newer); err != nil {
			return nil, fail(op, key, err)
		}
		if _, err := m.commitLocal(key, subkey, *resp.Newer, offlineClear); err != nil {
			return nil, fail(op, key, err)
		}
		logger.Debug("网络持有更新的值", "key", key.String(), "subkey", subkey, "seq", resp.Newer.Seq)
		return cloneValueData(resp.Newer.ValueData), nil
	}
	if _, err := m.commitLocal(key, subkey, signed, offlineClear); err != nil {
		return nil, fail(op, key, err)
	}
	return nil, nil
}

// ============================================================================
//                              读取
// ============================================================================

// GetValue 读取子键
//
// 非强制时只读本地，从未写入返回 nil。强制时经网络获取，
// 同一子键的并发强制读取合并为一次网络调用。
func (m *Manager) GetValue(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkey types.ValueSubkey, forceRefresh bool) (value *types.ValueData, err error) {
	const op = "get_value"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, fail(op, key, err)
	}
	if _, err := m.openState(key); err != nil {
		return nil, fail(op, key, err)
	}
	meta, err := m.loadOpenMeta(key)
	if err != nil {
		return nil, fail(op, key, err)
	}
	if int(subkey) >= meta.Descriptor.Schema.SubkeyCount() {
		return nil, fail(op, key, fmt.Errorf("%w: %d", ErrSubkeyOutOfRange, subkey))
	}

	if !forceRefresh {
		local, err := m.storage.loadValue(key, subkey)
		if err != nil || local == nil {
			return nil, fail(op, key, err)
		}
		return cloneValueData(local.ValueData), nil
	}

	if err := m.attach.Check(); err != nil {
		return nil, fail(op, key, err)
	}
	v, err := m.fetchValue(ctx, safety, meta.Descriptor, subkey)
	if err != nil {
		return nil, fail(op, key, err)
	}
	// 与关闭并发时不返回结果
	if !m.isOpen(key) {
		return nil, fail(op, key, ErrRecordNotOpen)
	}
	if v == nil {
		return nil, nil
	}
	return cloneValueData(v.ValueData), nil
}

// fetchValue 从网络获取子键，采纳较新的值并返回本地最高版本
//
// 同一子键的并发获取合并为一次网络请求。请求本身不随任一调用方取消，
// 只受 GetTimeout 限制；每个调用方按自己的 ctx 提前返回。
func (m *Manager) fetchValue(ctx context.Context, safety types.SafetySelection, desc types.DHTRecordDescriptor, subkey types.ValueSubkey) (*types.SignedValueData, error) {
	key := desc.Key
	ch := m.group.DoChan(fmt.Sprintf("%s/%d", key, subkey), func() (interface{}, error) {
		cs, err := m.system(key.Kind)
		if err != nil {
			return nil, err
		}
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.GetTimeout)
		defer cancel()
		resp, err := m.transport.GetValue(nctx, interfaces.GetValueRequest{
			Safety: safety,
			Key:    key,
			Subkey: subkey,
		})
		if err != nil {
			return nil, err
		}
		if resp.Value != nil {
			if err := m.validateValue(cs, desc, subkey, *resp.Value); err != nil {
				return nil, err
			}
			if _, err := m.commitLocal(key, subkey, *resp.Value, offlineKeep); err != nil {
				return nil, err
			}
		}
		unlock := m.locks.lock(key)
		defer unlock()
		return m.storage.loadValue(key, subkey)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		v, _ := res.Val.(*types.SignedValueData)
		return v, nil
	}
}

// ============================================================================
//                              本地提交
// ============================================================================

// commitLocal 按序列号规则写入本地，返回值是否被采纳
//
// 较旧的序列号被忽略；相同序列号且内容不同时后到者胜出。
func (m *Manager) commitLocal(key types.RecordKey, subkey types.ValueSubkey, v types.SignedValueData, mode offlineMode) (bool, error) {
	unlock := m.locks.lock(key)
	defer unlock()

	meta, err := m.storage.loadMeta(key)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, ErrRecordNotFound
	}

	cur := meta.seq(subkey)
	if cur != types.ValueSeqNumNone {
		if v.Seq < cur {
			return false, nil
		}
		if v.Seq == cur {
			local, err := m.storage.loadValue(key, subkey)
			if err != nil {
				return false, err
			}
			if local != nil && local.SameContent(v.ValueData) {
				return false, nil
			}
		}
	}

	next := meta.clone()
	next.Seqs[subkey] = v.Seq
	next.Sizes[subkey] = len(v.Data)
	switch mode {
	case offlineMark:
		next.Offline = next.Offline.Union(types.SingleSubkey(subkey))
	case offlineClear:
		next.Offline = next.Offline.Difference(types.SingleSubkey(subkey))
	}
	if err := m.storage.storeValue(key, next, subkey, v); err != nil {
		return false, err
	}
	return true, nil
}

// clearOffline 从离线集合中移除子键
func (m *Manager) clearOffline(key types.RecordKey, subkey types.ValueSubkey) error {
	unlock := m.locks.lock(key)
	defer unlock()

	meta, err := m.storage.loadMeta(key)
	if err != nil || meta == nil || !meta.Offline.Contains(subkey) {
		return err
	}
	next := meta.clone()
	next.Offline = next.Offline.Difference(types.SingleSubkey(subkey))
	return m.storage.storeMeta(key, next)
}

// pushLocal 把本地子键值推送到网络，返回网络上的序列号
//
// 调用方持有该记录的写入锁。
func (m *Manager) pushLocal(ctx context.Context, safety types.SafetySelection, desc types.DHTRecordDescriptor, subkey types.ValueSubkey) (types.ValueSeqNum, error) {
	key := desc.Key
	v, err := m.loadValueLocked(key, subkey)
	if err != nil {
		return types.ValueSeqNumNone, err
	}
	if v == nil {
		return types.ValueSeqNumNone, nil
	}

	nctx, cancel := context.WithTimeout(ctx, m.cfg.SetTimeout)
	defer cancel()
	resp, err := m.transport.SetValue(nctx, interfaces.SetValueRequest{
		Safety:     safety,
		Descriptor: desc.WithoutSecret(),
		Subkey:     subkey,
		Value:      *v,
	})
	if err != nil {
		return types.ValueSeqNumNone, err
	}
	if resp.Newer != nil {
		cs, err := m.system(key.Kind)
		if err != nil {
			return types.ValueSeqNumNone, err
		}
		if err := m.validateValue(cs, desc, subkey, *resp.Newer); err != nil {
			return types.ValueSeqNumNone, err
		}
		if _, err := m.commitLocal(key, subkey, *resp.Newer, offlineClear); err != nil {
			return types.ValueSeqNumNone, err
		}
		return resp.Newer.Seq, m.clearOffline(key, subkey)
	}
	return v.Seq, m.clearOffline(key, subkey)
}

func (m *Manager) loadValueLocked(key types.RecordKey, subkey types.ValueSubkey) (*types.SignedValueData, error) {
	unlock := m.locks.lock(key)
	defer unlock()
	return m.storage.loadValue(key, subkey)
}
