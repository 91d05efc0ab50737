package dht

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
//                              记录生命周期
// ============================================================================

// CreateRecord 创建记录并以所有者身份打开
//
// owner 为 nil 时生成新的所有者密钥；kind 为零值时使用最佳套件。
// 记录只写入本地，首次 SetValue 时随值发布到网络。
func (m *Manager) CreateRecord(ctx context.Context, safety types.SafetySelection, schema types.DHTSchema, kind types.CryptoKind, owner *types.KeyPair) (desc types.DHTRecordDescriptor, err error) {
	const op = "create_record"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	if err := ctx.Err(); err != nil {
		return desc, fail(op, types.RecordKey{}, err)
	}
	if err := m.checkClosed(); err != nil {
		return desc, fail(op, types.RecordKey{}, err)
	}
	if err := schema.Validate(); err != nil {
		return desc, fail(op, types.RecordKey{}, err)
	}
	if kind.IsZero() {
		kind = m.crypto.BestCryptoKind()
	}
	cs, err := m.system(kind)
	if err != nil {
		return desc, fail(op, types.RecordKey{}, err)
	}

	var ownerKP types.KeyPair
	if owner == nil {
		if ownerKP, err = cs.GenerateKeyPair(); err != nil {
			return desc, fail(op, types.RecordKey{}, err)
		}
	} else {
		if !cs.ValidateKeyPair(owner.Key, owner.Secret) {
			return desc, fail(op, types.RecordKey{}, ErrInvalidWriter)
		}
		ownerKP = *owner
	}

	key := crypto.RecordKey(cs, ownerKP.Key, schema)
	unlock := m.locks.lock(key)
	defer unlock()

	existing, err := m.storage.loadMeta(key)
	if err != nil {
		return desc, fail(op, key, err)
	}
	if existing != nil {
		return desc, fail(op, key, ErrRecordExists)
	}

	secret := ownerKP.Secret
	desc = types.DHTRecordDescriptor{
		Key:         key,
		Owner:       ownerKP.Key,
		OwnerSecret: &secret,
		Schema:      schema,
	}
	if err := m.storage.storeMeta(key, newRecordMeta(desc, safety)); err != nil {
		return types.DHTRecordDescriptor{}, fail(op, key, err)
	}
	if err := m.markOpen(key, &ownerKP, safety); err != nil {
		return types.DHTRecordDescriptor{}, fail(op, key, err)
	}

	logger.Debug("创建记录", "key", key.String(), "schema", schema.String())
	return desc, nil
}

// OpenRecord 打开记录
//
// 本地不存在时从网络获取描述符。writer 为所有者或成员时记录可写，
// 否则以只读方式打开。重复打开增加引用计数，并可升级写者。
func (m *Manager) OpenRecord(ctx context.Context, safety types.SafetySelection, key types.RecordKey, writer *types.KeyPair) (desc types.DHTRecordDescriptor, err error) {
	const op = "open_record"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	if err := ctx.Err(); err != nil {
		return desc, fail(op, key, err)
	}
	if err := m.checkClosed(); err != nil {
		return desc, fail(op, key, err)
	}
	cs, err := m.system(key.Kind)
	if err != nil {
		return desc, fail(op, key, err)
	}

	meta, err := m.loadMeta(key)
	if err != nil {
		return desc, fail(op, key, err)
	}
	if meta == nil {
		// 网络往返不持有记录锁
		fetched, value, err := m.fetchRecord(ctx, safety, cs, key)
		if err != nil {
			return desc, fail(op, key, err)
		}
		if meta, err = m.storeFetched(key, fetched, value); err != nil {
			return desc, fail(op, key, err)
		}
	}

	bound, err := boundWriter(cs, meta.Descriptor, writer)
	if err != nil {
		return desc, fail(op, key, err)
	}

	if !meta.Safety.Equal(safety) {
		unlock := m.locks.lock(key)
		if cur, lerr := m.storage.loadMeta(key); lerr == nil && cur != nil {
			next := cur.clone()
			next.Safety = safety
			if serr := m.storage.storeMeta(key, next); serr != nil {
				logger.Warn("保存记录安全选择失败", "key", key.String(), "error", serr)
			}
		}
		unlock()
	}

	if err := m.markOpen(key, bound, safety); err != nil {
		return desc, fail(op, key, err)
	}

	desc = meta.Descriptor
	if o, err := m.openState(key); err == nil && o.writer != nil && o.writer.Key == desc.Owner {
		secret := o.writer.Secret
		desc.OwnerSecret = &secret
	}
	logger.Debug("打开记录", "key", key.String(), "writable", bound != nil)
	return desc, nil
}

// CloseRecord 关闭记录
//
// 引用计数归零时移除该记录的全部监听。不等待进行中的网络调用。
func (m *Manager) CloseRecord(ctx context.Context, key types.RecordKey) (err error) {
	const op = "close_record"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fail(op, key, ErrClosed)
	}
	o, ok := m.opened[key]
	if !ok {
		m.mu.Unlock()
		return fail(op, key, ErrRecordNotOpen)
	}
	o.refs--
	last := o.refs <= 0
	if last {
		delete(m.opened, key)
	}
	safety := o.safety
	m.mu.Unlock()

	if last {
		m.releaseWatches(key, safety)
		logger.Debug("关闭记录", "key", key.String())
	}
	return nil
}

// DeleteRecord 删除本地记录，打开状态的记录先被关闭
func (m *Manager) DeleteRecord(ctx context.Context, key types.RecordKey) (err error) {
	const op = "delete_record"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fail(op, key, ErrClosed)
	}
	o, wasOpen := m.opened[key]
	delete(m.opened, key)
	m.mu.Unlock()

	if wasOpen {
		m.releaseWatches(key, o.safety)
	}

	unlock := m.locks.lock(key)
	defer unlock()
	existed, err := m.storage.deleteRecord(key)
	if err != nil {
		return fail(op, key, err)
	}
	if !existed {
		return fail(op, key, ErrRecordNotFound)
	}
	logger.Debug("删除记录", "key", key.String(), "wasOpen", wasOpen)
	return nil
}

// ============================================================================
//                              内部辅助
// ============================================================================

func (m *Manager) checkClosed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// markOpen 增加引用计数，writer 非空时替换绑定的写者
func (m *Manager) markOpen(key types.RecordKey, writer *types.KeyPair, safety types.SafetySelection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	o, ok := m.opened[key]
	if !ok {
		o = &openedRecord{}
		m.opened[key] = o
	}
	o.refs++
	if writer != nil {
		w := *writer
		o.writer = &w
	}
	o.safety = safety
	return nil
}

// loadMeta 加锁读取元数据
func (m *Manager) loadMeta(key types.RecordKey) (*recordMeta, error) {
	unlock := m.locks.lock(key)
	defer unlock()
	return m.storage.loadMeta(key)
}

// loadOpenMeta 读取已打开记录的元数据
func (m *Manager) loadOpenMeta(key types.RecordKey) (*recordMeta, error) {
	meta, err := m.loadMeta(key)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrRecordNotFound
	}
	return meta, nil
}

// boundWriter 校验写者，非所有者且非成员的写者不绑定
func boundWriter(cs interfaces.CryptoSystem, desc types.DHTRecordDescriptor, writer *types.KeyPair) (*types.KeyPair, error) {
	if writer == nil {
		return nil, nil
	}
	if !cs.ValidateKeyPair(writer.Key, writer.Secret) {
		return nil, ErrInvalidWriter
	}
	if writer.Key != desc.Owner && !desc.Schema.IsMember(writer.Key) {
		return nil, nil
	}
	w := *writer
	return &w, nil
}

// fetchRecord 从网络获取描述符与子键 0
func (m *Manager) fetchRecord(ctx context.Context, safety types.SafetySelection, cs interfaces.CryptoSystem, key types.RecordKey) (*recordMeta, *types.SignedValueData, error) {
	if err := m.attach.Check(); err != nil {
		return nil, nil, fmt.Errorf("%w: not in local storage and %v", ErrRecordNotFound, err)
	}
	nctx, cancel := context.WithTimeout(ctx, m.cfg.GetTimeout)
	defer cancel()

	resp, err := m.transport.GetValue(nctx, interfaces.GetValueRequest{
		Safety:         safety,
		Key:            key,
		Subkey:         0,
		WantDescriptor: true,
	})
	if err != nil {
		return nil, nil, err
	}
	if resp.Descriptor == nil {
		return nil, nil, ErrRecordNotFound
	}
	desc := resp.Descriptor.WithoutSecret()
	if desc.Key != key {
		return nil, nil, fmt.Errorf("%w: descriptor for %s", ErrInvalidValue, desc.Key)
	}
	if err := crypto.CheckDescriptor(cs, desc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	meta := newRecordMeta(desc, safety)
	if resp.Value == nil {
		return meta, nil, nil
	}
	if err := m.validateValue(cs, desc, 0, *resp.Value); err != nil {
		logger.Warn("丢弃无效的网络值", "key", key.String(), "error", err)
		return meta, nil, nil
	}
	return meta, resp.Value, nil
}

// storeFetched 保存从网络获取的记录；并发打开时以先保存者为准
func (m *Manager) storeFetched(key types.RecordKey, meta *recordMeta, value *types.SignedValueData) (*recordMeta, error) {
	unlock := m.locks.lock(key)
	defer unlock()

	existing, err := m.storage.loadMeta(key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if value == nil {
		return meta, m.storage.storeMeta(key, meta)
	}
	meta.Seqs[0] = value.Seq
	meta.Sizes[0] = len(value.Data)
	return meta, m.storage.storeValue(key, meta, 0, *value)
}

// validateValue 校验网络值的子键、大小、写者与签名
func (m *Manager) validateValue(cs interfaces.CryptoSystem, desc types.DHTRecordDescriptor, subkey types.ValueSubkey, v types.SignedValueData) error {
	if int(subkey) >= desc.Schema.SubkeyCount() {
		return fmt.Errorf("%w: subkey %d", ErrInvalidValue, subkey)
	}
	if len(v.Data) > m.cfg.MaxSubkeySize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidValue, len(v.Data))
	}
	if !desc.Schema.CheckSubkeyWriter(desc.Owner, subkey, v.Writer) {
		return fmt.Errorf("%w: writer %s not allowed", ErrInvalidValue, v.Writer)
	}
	if err := crypto.VerifyValue(cs, desc.Owner, subkey, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}
