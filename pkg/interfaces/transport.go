package interfaces

import (
	"context"
	"time"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
// Transport 接口
// ════════════════════════════════════════════════════════════════════════════

// Transport 到记录权威副本集的网络通道
//
// 所有调用都携带发起方的 SafetySelection，由实现决定路径；
// 必须遵守 ctx 的取消与超时。
type Transport interface {
	// NodeID 本节点标识
	NodeID() types.TypedKey

	// Join 加入网络，返回当前可见的对等节点数
	Join(ctx context.Context) (int, error)
	// Leave 离开网络
	Leave(ctx context.Context) error
	// Peers 当前可见的对等节点数
	Peers() int

	// GetValue 获取子键的当前值（以及可选的记录描述符）
	GetValue(ctx context.Context, req GetValueRequest) (GetValueResponse, error)
	// SetValue 推送新值，权威方持有更新的值时返回该值
	SetValue(ctx context.Context, req SetValueRequest) (SetValueResponse, error)
	// InspectValue 获取子键序列号
	InspectValue(ctx context.Context, req InspectValueRequest) (InspectValueResponse, error)
	// WatchValue 注册或取消网络侧的变化推送
	WatchValue(ctx context.Context, req WatchValueRequest) (WatchValueResponse, error)

	// SetValueChangedHandler 设置变化推送回调（发起写入的节点自身不会收到）
	SetValueChangedHandler(h ValueChangedHandler)
}

// ValueChangedHandler 网络推送的值变化
type ValueChangedHandler func(key types.RecordKey, subkey types.ValueSubkey, value types.SignedValueData)

// GetValueRequest 读取请求
type GetValueRequest struct {
	Safety         types.SafetySelection
	Key            types.RecordKey
	Subkey         types.ValueSubkey
	WantDescriptor bool
}

// GetValueResponse 读取响应
type GetValueResponse struct {
	// Value 子键从未写入时为 nil
	Value *types.SignedValueData
	// Descriptor 仅在 WantDescriptor 时返回，不含私钥
	Descriptor *types.DHTRecordDescriptor
}

// SetValueRequest 写入请求
type SetValueRequest struct {
	Safety     types.SafetySelection
	Descriptor types.DHTRecordDescriptor
	Subkey     types.ValueSubkey
	Value      types.SignedValueData
}

// SetValueResponse 写入响应
type SetValueResponse struct {
	// Newer 权威方持有的更新值；写入被接受时为 nil
	Newer *types.SignedValueData
}

// InspectValueRequest 检查请求
type InspectValueRequest struct {
	Safety  types.SafetySelection
	Key     types.RecordKey
	Subkeys types.ValueSubkeyRangeSet
}

// InspectValueResponse 检查响应，Seqs 与 Subkeys 展开后对齐
type InspectValueResponse struct {
	Seqs []types.ValueSeqNum
}

// WatchValueRequest 监听请求
type WatchValueRequest struct {
	Safety     types.SafetySelection
	Key        types.RecordKey
	Subkeys    types.ValueSubkeyRangeSet
	Expiration time.Time
	// Active=false 表示取消
	Active bool
}

// WatchValueResponse 监听响应
type WatchValueResponse struct {
	Accepted bool
}
