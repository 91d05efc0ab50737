package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// MockTransport 模拟 Transport 接口实现
type MockTransport struct {
	mu sync.Mutex

	// 默认返回值
	IDValue    types.TypedKey
	PeersValue int

	// 可覆盖的方法
	JoinFunc         func(ctx context.Context) (int, error)
	LeaveFunc        func(ctx context.Context) error
	GetValueFunc     func(ctx context.Context, req interfaces.GetValueRequest) (interfaces.GetValueResponse, error)
	SetValueFunc     func(ctx context.Context, req interfaces.SetValueRequest) (interfaces.SetValueResponse, error)
	InspectValueFunc func(ctx context.Context, req interfaces.InspectValueRequest) (interfaces.InspectValueResponse, error)
	WatchValueFunc   func(ctx context.Context, req interfaces.WatchValueRequest) (interfaces.WatchValueResponse, error)

	// 调用记录
	joinCalls    int
	leaveCalls   int
	getCalls     []interfaces.GetValueRequest
	setCalls     []interfaces.SetValueRequest
	inspectCalls []interfaces.InspectValueRequest
	watchCalls   []interfaces.WatchValueRequest

	handler interfaces.ValueChangedHandler
}

var _ interfaces.Transport = (*MockTransport)(nil)

// NodeID 返回节点标识
func (m *MockTransport) NodeID() types.TypedKey {
	return m.IDValue
}

// Join 加入网络
func (m *MockTransport) Join(ctx context.Context) (int, error) {
	m.mu.Lock()
	m.joinCalls++
	m.mu.Unlock()

	if m.JoinFunc != nil {
		return m.JoinFunc(ctx)
	}
	return m.Peers(), nil
}

// Leave 离开网络
func (m *MockTransport) Leave(ctx context.Context) error {
	m.mu.Lock()
	m.leaveCalls++
	m.mu.Unlock()

	if m.LeaveFunc != nil {
		return m.LeaveFunc(ctx)
	}
	return nil
}

// Peers 对等节点数
func (m *MockTransport) Peers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PeersValue
}

// SetPeers 修改对等节点数
func (m *MockTransport) SetPeers(n int) {
	m.mu.Lock()
	m.PeersValue = n
	m.mu.Unlock()
}

// GetValue 读取
func (m *MockTransport) GetValue(ctx context.Context, req interfaces.GetValueRequest) (interfaces.GetValueResponse, error) {
	m.mu.Lock()
	m.getCalls = append(m.getCalls, req)
	m.mu.Unlock()

	if m.GetValueFunc != nil {
		return m.GetValueFunc(ctx, req)
	}
	return interfaces.GetValueResponse{}, nil
}

// SetValue 写入
func (m *MockTransport) SetValue(ctx context.Context, req interfaces.SetValueRequest) (interfaces.SetValueResponse, error) {
	m.mu.Lock()
	m.setCalls = append(m.setCalls, req)
	m.mu.Unlock()

	if m.SetValueFunc != nil {
		return m.SetValueFunc(ctx, req)
	}
	return interfaces.SetValueResponse{}, nil
}

// InspectValue 检查
func (m *MockTransport) InspectValue(ctx context.Context, req interfaces.InspectValueRequest) (interfaces.InspectValueResponse, error) {
	m.mu.Lock()
	m.inspectCalls = append(m.inspectCalls, req)
	m.mu.Unlock()

	if m.InspectValueFunc != nil {
		return m.InspectValueFunc(ctx, req)
	}
	seqs := make([]types.ValueSeqNum, req.Subkeys.Len())
	for i := range seqs {
		seqs[i] = types.ValueSeqNumNone
	}
	return interfaces.InspectValueResponse{Seqs: seqs}, nil
}

// WatchValue 监听
func (m *MockTransport) WatchValue(ctx context.Context, req interfaces.WatchValueRequest) (interfaces.WatchValueResponse, error) {
	m.mu.Lock()
	m.watchCalls = append(m.watchCalls, req)
	m.mu.Unlock()

	if m.WatchValueFunc != nil {
		return m.WatchValueFunc(ctx, req)
	}
	return interfaces.WatchValueResponse{Accepted: true}, nil
}

// SetValueChangedHandler 设置推送回调
func (m *MockTransport) SetValueChangedHandler(h interfaces.ValueChangedHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// PushValueChange 模拟网络推送一次值变化
func (m *MockTransport) PushValueChange(key types.RecordKey, subkey types.ValueSubkey, value types.SignedValueData) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(key, subkey, value)
	}
}

// ============================================================================
//                              调用记录
// ============================================================================

// JoinCalls Join 调用次数
func (m *MockTransport) JoinCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joinCalls
}

// LeaveCalls Leave 调用次数
func (m *MockTransport) LeaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveCalls
}

// GetValueCalls GetValue 调用记录
func (m *MockTransport) GetValueCalls() []interfaces.GetValueRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.GetValueRequest(nil), m.getCalls...)
}

// SetValueCalls SetValue 调用记录
func (m *MockTransport) SetValueCalls() []interfaces.SetValueRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.SetValueRequest(nil), m.setCalls...)
}

// InspectValueCalls InspectValue 调用记录
func (m *MockTransport) InspectValueCalls() []interfaces.InspectValueRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.InspectValueRequest(nil), m.inspectCalls...)
}

// WatchValueCalls WatchValue 调用记录
func (m *MockTransport) WatchValueCalls() []interfaces.WatchValueRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.WatchValueRequest(nil), m.watchCalls...)
}
