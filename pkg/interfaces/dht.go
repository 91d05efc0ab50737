package interfaces

import (
	"context"
	"time"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
// DHT 记录存储接口
// ════════════════════════════════════════════════════════════════════════════

// DHT 记录生命周期与读写授权
//
// 每个涉及网络的操作都带有调用方 Routing Context 的 SafetySelection。
//
// 记录状态：Closed → OpenReadOnly / OpenWritable → Closed。
type DHT interface {
	// CreateRecord 创建记录并以可写方式打开；owner 为 nil 时生成新的所有者密钥
	CreateRecord(ctx context.Context, safety types.SafetySelection, schema types.DHTSchema, kind types.CryptoKind, owner *types.KeyPair) (types.DHTRecordDescriptor, error)

	// OpenRecord 打开记录，writer 决定只读或可写
	OpenRecord(ctx context.Context, safety types.SafetySelection, key types.RecordKey, writer *types.KeyPair) (types.DHTRecordDescriptor, error)

	// CloseRecord 关闭记录
	CloseRecord(ctx context.Context, key types.RecordKey) error

	// DeleteRecord 删除本地记录（打开状态会先关闭）
	DeleteRecord(ctx context.Context, key types.RecordKey) error

	// SetValue 写入子键；writer 只对本次调用生效。网络持有更新的值时返回该值
	SetValue(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkey types.ValueSubkey, data []byte, writer *types.KeyPair) (*types.ValueData, error)

	// GetValue 读取子键；forceRefresh 时必须经过网络
	GetValue(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkey types.ValueSubkey, forceRefresh bool) (*types.ValueData, error)

	// WatchValues 注册监听；空区间表示全部子键，零值表示默认过期与次数
	WatchValues(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkeys types.ValueSubkeyRangeSet, expiration time.Time, count uint32) (types.WatchID, error)

	// CancelWatch 取消监听区间，返回是否仍有注册存活
	CancelWatch(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkeys types.ValueSubkeyRangeSet) (bool, error)

	// InspectRecord 检查子键序列号
	InspectRecord(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkeys types.ValueSubkeyRangeSet, scope types.DHTReportScope) (types.DHTRecordReport, error)
}
