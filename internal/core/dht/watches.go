package dht

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
//                              监听
// ============================================================================

// WatchValues 注册监听
//
// 空区间表示全部子键；expiration 为零值时取默认有效期，count 为 0 表示不限次数。
// 同一记录的多条注册并存，网络侧只保留它们的并集。
func (m *Manager) WatchValues(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkeys types.ValueSubkeyRangeSet, expiration time.Time, count uint32) (id types.WatchID, err error) {
	const op = "watch_values"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	if err := ctx.Err(); err != nil {
		return "", fail(op, key, err)
	}
	if _, err := m.openState(key); err != nil {
		return "", fail(op, key, err)
	}
	meta, err := m.loadOpenMeta(key)
	if err != nil {
		return "", fail(op, key, err)
	}
	resolved := meta.Descriptor.Schema.FullRange()
	if !subkeys.IsEmpty() {
		resolved = subkeys.Intersect(resolved)
		if resolved.IsEmpty() {
			return "", fail(op, key, fmt.Errorf("%w: %s", ErrSubkeyOutOfRange, subkeys))
		}
	}
	if err := m.attach.Check(); err != nil {
		return "", fail(op, key, err)
	}

	reg, err := m.watches.Add(key, resolved, expiration, count, safety)
	if err != nil {
		return "", fail(op, key, err)
	}
	if err := m.syncNetworkWatch(ctx, safety, key); err != nil {
		m.watches.Remove(key, reg.ID)
		return "", fail(op, key, err)
	}
	logger.Debug("注册监听", "key", key.String(), "id", string(reg.ID), "subkeys", resolved.String(), "count", reg.Count)
	return reg.ID, nil
}

// CancelWatch 从记录的全部注册中取消区间，返回是否仍有注册存活
//
// 空区间取消全部注册。最后一条注册移除时同时撤销网络侧监听。
func (m *Manager) CancelWatch(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkeys types.ValueSubkeyRangeSet) (active bool, err error) {
	const op = "cancel_watch"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	if err := ctx.Err(); err != nil {
		return false, fail(op, key, err)
	}
	if _, err := m.openState(key); err != nil {
		return false, fail(op, key, err)
	}

	active = m.watches.Cancel(key, subkeys)
	if !m.attach.IsAttached() {
		return active, nil
	}
	if err := m.syncNetworkWatch(ctx, safety, key); err != nil {
		// 本地注册已经变化，网络侧失败不回滚
		logger.Warn("同步网络监听失败", "key", key.String(), "error", err)
	}
	return active, nil
}

// syncNetworkWatch 把本地注册的并集同步到网络，没有注册时撤销
func (m *Manager) syncNetworkWatch(ctx context.Context, safety types.SafetySelection, key types.RecordKey) error {
	subkeys, exp, ok := m.watches.Coverage(key)
	nctx, cancel := context.WithTimeout(ctx, m.cfg.SetTimeout)
	defer cancel()

	resp, err := m.transport.WatchValue(nctx, interfaces.WatchValueRequest{
		Safety:     safety,
		Key:        key,
		Subkeys:    subkeys,
		Expiration: exp,
		Active:     ok,
	})
	if err != nil {
		return err
	}
	if ok && !resp.Accepted {
		return ErrWatchRejected
	}
	return nil
}

// releaseWatches 记录关闭时移除全部注册，并在后台撤销网络侧监听
func (m *Manager) releaseWatches(key types.RecordKey, safety types.SafetySelection) {
	if m.watches.Drop(key) == 0 || !m.attach.IsAttached() {
		return
	}
	m.cancelNetworkWatch(key, safety)
}

// onWatchIdle 注册过期或次数耗尽后撤销网络侧监听
func (m *Manager) onWatchIdle(key types.RecordKey) {
	if !m.attach.IsAttached() {
		return
	}
	o, err := m.openState(key)
	if err != nil {
		return
	}
	m.cancelNetworkWatch(key, o.safety)
}

func (m *Manager) cancelNetworkWatch(key types.RecordKey, safety types.SafetySelection) {
	m.goBackground(func(ctx context.Context) {
		nctx, cancel := context.WithTimeout(ctx, m.cfg.SetTimeout)
		defer cancel()
		_, err := m.transport.WatchValue(nctx, interfaces.WatchValueRequest{
			Safety: safety,
			Key:    key,
			Active: false,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("撤销网络监听失败", "key", key.String(), "error", err)
		}
	})
}

// ============================================================================
//                              网络推送与重连
// ============================================================================

// onValueChanged 处理网络推送的值变化
//
// 本地没有该记录或值未通过校验时丢弃；被采纳的新值通知匹配的监听。
func (m *Manager) onValueChanged(key types.RecordKey, subkey types.ValueSubkey, value types.SignedValueData) {
	meta, err := m.loadMeta(key)
	if err != nil || meta == nil {
		return
	}
	cs, err := m.system(key.Kind)
	if err != nil {
		return
	}
	if err := m.validateValue(cs, meta.Descriptor, subkey, value); err != nil {
		logger.Warn("丢弃无效的推送值", "key", key.String(), "subkey", subkey, "error", err)
		return
	}
	accepted, err := m.commitLocal(key, subkey, value, offlineKeep)
	if err != nil {
		logger.Warn("保存推送值失败", "key", key.String(), "subkey", subkey, "error", err)
		return
	}
	if !accepted {
		return
	}
	n := m.watches.Notify(key, subkey, &value.ValueData)
	logger.Debug("收到值变化", "key", key.String(), "subkey", subkey, "seq", value.Seq, "notified", n)
}

// onAttachmentChange 重新连接后推送离线写入并恢复网络侧监听
func (m *Manager) onAttachmentChange(old, next types.AttachmentState) {
	if !next.IsAttached() || old.IsAttached() {
		return
	}
	m.goBackground(m.resync)
}

// resync 遍历打开的记录，使用打开时的安全选择推送离线子键并恢复监听
func (m *Manager) resync(ctx context.Context) {
	for _, info := range m.OpenRecords() {
		if ctx.Err() != nil {
			return
		}
		if err := m.flushOffline(ctx, info.Key); err != nil {
			logger.Warn("推送离线写入失败", "key", info.Key.String(), "error", err)
		}
		if _, _, ok := m.watches.Coverage(info.Key); ok {
			if err := m.syncNetworkWatch(ctx, info.Safety, info.Key); err != nil {
				logger.Warn("恢复网络监听失败", "key", info.Key.String(), "error", err)
			}
		}
	}
}

// flushOffline 推送记录的离线子键
func (m *Manager) flushOffline(ctx context.Context, key types.RecordKey) error {
	unlock := m.writes.lock(key)
	defer unlock()

	meta, err := m.loadMeta(key)
	if err != nil || meta == nil || meta.Offline.IsEmpty() {
		return err
	}
	var errs []error
	for _, sk := range meta.Offline.Subkeys() {
		if _, err := m.pushLocal(ctx, meta.Safety, meta.Descriptor, sk); err != nil {
			errs = append(errs, fmt.Errorf("subkey %d: %w", sk, err))
		}
	}
	if len(errs) == 0 {
		logger.Debug("离线写入已推送", "key", key.String(), "subkeys", meta.Offline.String())
	}
	return errors.Join(errs...)
}
