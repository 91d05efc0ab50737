package loopback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

func defaultCryptoConfig() config.CryptoConfig {
	c := config.DefaultCryptoConfig()
	c.EnableNone = true
	return c
}

// Transport 节点到 Hub 的通道
type Transport struct {
	hub    *Hub
	id     types.TypedKey
	netKey NetworkKey

	joined atomic.Bool
	closed atomic.Bool

	mu         sync.Mutex
	handler    interfaces.ValueChangedHandler
	lastSafety types.SafetySelection
	calls      uint64

	inbox *inbox
}

var _ interfaces.Transport = (*Transport)(nil)

// NodeID 本节点标识
func (t *Transport) NodeID() types.TypedKey {
	return t.id
}

// NetworkKey 所在分区
func (t *Transport) NetworkKey() NetworkKey {
	return t.netKey
}

// Join 加入网络
func (t *Transport) Join(ctx context.Context) (int, error) {
	if err := t.begin(ctx, types.SafetySelection{}, false); err != nil {
		return 0, err
	}
	n := t.hub.partition(t.netKey).join(t)
	t.joined.Store(true)
	logger.Debug("节点加入网络", "hub", t.hub.name, "node", t.id.String(), "peers", n)
	return n, nil
}

// Leave 离开网络，同时撤销该节点的全部网络侧监听
func (t *Transport) Leave(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.joined.Swap(false) {
		return nil
	}
	t.hub.partition(t.netKey).leave(t.id)
	logger.Debug("节点离开网络", "hub", t.hub.name, "node", t.id.String())
	return nil
}

// Peers 可见的对等节点数
func (t *Transport) Peers() int {
	if !t.joined.Load() {
		return 0
	}
	return t.hub.partition(t.netKey).peers(t.id)
}

// GetValue 读取子键
func (t *Transport) GetValue(ctx context.Context, req interfaces.GetValueRequest) (interfaces.GetValueResponse, error) {
	if err := t.begin(ctx, req.Safety, true); err != nil {
		return interfaces.GetValueResponse{}, err
	}
	v, desc, err := t.hub.partition(t.netKey).get(req.Key, req.Subkey)
	if err != nil {
		return interfaces.GetValueResponse{}, err
	}
	resp := interfaces.GetValueResponse{Value: v}
	if req.WantDescriptor {
		resp.Descriptor = desc
	}
	return resp, nil
}

// SetValue 写入子键
//
// 已存值更新时返回该值，不视为错误。
func (t *Transport) SetValue(ctx context.Context, req interfaces.SetValueRequest) (interfaces.SetValueResponse, error) {
	if err := t.begin(ctx, req.Safety, true); err != nil {
		return interfaces.SetValueResponse{}, err
	}
	if err := t.hub.validate(req.Descriptor, req.Subkey, req.Value); err != nil {
		return interfaces.SetValueResponse{}, err
	}

	p := t.hub.partition(t.netKey)
	changed, current, err := p.store(req.Descriptor, req.Subkey, req.Value, t.id)
	if errors.Is(err, ErrSeqTooOld) {
		return interfaces.SetValueResponse{Newer: current}, nil
	}
	if err != nil {
		return interfaces.SetValueResponse{}, err
	}
	if changed {
		logger.Debug("值已更新", "key", req.Descriptor.Key.String(), "subkey", req.Subkey, "seq", req.Value.Seq)
	}
	return interfaces.SetValueResponse{}, nil
}

// InspectValue 获取子键序列号
func (t *Transport) InspectValue(ctx context.Context, req interfaces.InspectValueRequest) (interfaces.InspectValueResponse, error) {
	if err := t.begin(ctx, req.Safety, true); err != nil {
		return interfaces.InspectValueResponse{}, err
	}
	return interfaces.InspectValueResponse{
		Seqs: t.hub.partition(t.netKey).inspect(req.Key, req.Subkeys),
	}, nil
}

// WatchValue 注册或取消网络侧监听
func (t *Transport) WatchValue(ctx context.Context, req interfaces.WatchValueRequest) (interfaces.WatchValueResponse, error) {
	if err := t.begin(ctx, req.Safety, true); err != nil {
		return interfaces.WatchValueResponse{}, err
	}
	p := t.hub.partition(t.netKey)
	if !req.Active {
		p.unwatch(req.Key, t.id)
		return interfaces.WatchValueResponse{}, nil
	}
	p.watch(req.Key, t.id, req.Subkeys, req.Expiration)
	return interfaces.WatchValueResponse{Accepted: true}, nil
}

// SetValueChangedHandler 设置推送回调
func (t *Transport) SetValueChangedHandler(h interfaces.ValueChangedHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// LastSafety 最近一次调用使用的 SafetySelection
func (t *Transport) LastSafety() types.SafetySelection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSafety
}

// Calls 网络调用次数
func (t *Transport) Calls() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Close 离开网络并停止推送
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.joined.Swap(false) {
		t.hub.partition(t.netKey).leave(t.id)
	}
	t.inbox.close()
	return nil
}

// begin 调用前的公共检查：关闭、加入、安全选择、延迟与 ctx
func (t *Transport) begin(ctx context.Context, safety types.SafetySelection, needJoin bool) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if needJoin {
		if !t.joined.Load() {
			return ErrNotJoined
		}
		if err := safety.Validate(t.hub.maxHops); err != nil {
			return err
		}
		t.mu.Lock()
		t.lastSafety = safety
		t.calls++
		t.mu.Unlock()
	}
	if t.hub.latency > 0 {
		timer := time.NewTimer(t.hub.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *Transport) dispatch(c change) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(c.key, c.subkey, c.value)
	}
}

// ============================================================================
//                              校验
// ============================================================================

// validate 校验描述符、子键范围、大小、写者授权与签名
func (h *Hub) validate(desc types.DHTRecordDescriptor, subkey types.ValueSubkey, v types.SignedValueData) error {
	cs, err := h.crypto.Get(desc.Key.Kind)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, desc.Key.Kind)
	}
	if err := crypto.CheckDescriptor(cs, desc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if int(subkey) >= desc.Schema.SubkeyCount() {
		return fmt.Errorf("%w: %d", ErrSubkeyOutOfRange, subkey)
	}
	if len(v.Data) > h.maxSubkeySize {
		return fmt.Errorf("%w: %d > %d", ErrValueTooLarge, len(v.Data), h.maxSubkeySize)
	}
	if !desc.Schema.CheckSubkeyWriter(desc.Owner, subkey, v.Writer) {
		return fmt.Errorf("%w: subkey %d", ErrUnauthorized, subkey)
	}
	if err := crypto.VerifyValue(cs, desc.Owner, subkey, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
