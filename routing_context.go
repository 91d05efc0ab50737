package veilcore

import (
	"context"
	"time"

	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              RoutingContext
// ════════════════════════════════════════════════════════════════════════════

// RoutingContext 路由上下文
//
// 值类型：每个 WithX 返回新的上下文，原值不变，可以在多个协程间共享。
// 上下文只携带安全选择，不持有任何记录状态；所有 DHT 操作经它转发到记录存储。
type RoutingContext struct {
	core   *Core
	safety types.SafetySelection
}

// Safety 当前安全选择
func (rc RoutingContext) Safety() types.SafetySelection {
	return rc.safety
}

// WithDefaultSafety 恢复默认安全选择
func (rc RoutingContext) WithDefaultSafety() RoutingContext {
	rc.safety = rc.core.defaultSafety()
	return rc
}

// WithSafety 替换安全选择
//
// Safe 变体的跳数必须在 [1, network.max_route_hop_count] 内。
func (rc RoutingContext) WithSafety(sel types.SafetySelection) (RoutingContext, error) {
	if err := sel.Validate(rc.core.cfg.Network.MaxRouteHopCount); err != nil {
		return rc, err
	}
	rc.safety = sel
	return rc, nil
}

// WithSequencing 只替换顺序保证
func (rc RoutingContext) WithSequencing(seq types.Sequencing) RoutingContext {
	rc.safety = rc.safety.WithSequencing(seq)
	return rc
}

// WithPrivacy 使用默认跳数的安全路由，保留当前顺序保证
func (rc RoutingContext) WithPrivacy() RoutingContext {
	return rc.WithCustomPrivacy(types.StabilityLowLatency)
}

// WithCustomPrivacy 使用指定稳定性的安全路由，保留当前顺序保证
func (rc RoutingContext) WithCustomPrivacy(stability types.Stability) RoutingContext {
	spec := types.SafetySpec{
		HopCount:   rc.core.cfg.Network.DefaultRouteHopCount,
		Stability:  stability,
		Sequencing: rc.safety.Sequencing(),
	}
	if cur, ok := rc.safety.SafetySpec(); ok {
		spec.PreferredRoute = cur.PreferredRoute
	}
	rc.safety = types.Safe(spec)
	return rc
}

// ════════════════════════════════════════════════════════════════════════════
//                              DHT 操作
// ════════════════════════════════════════════════════════════════════════════

// CreateDHTRecord 创建记录并以所有者身份打开
//
// kind 为零值时使用最佳套件，owner 为 nil 时生成新的所有者密钥。
func (rc RoutingContext) CreateDHTRecord(ctx context.Context, schema types.DHTSchema, kind types.CryptoKind, owner *types.KeyPair) (types.DHTRecordDescriptor, error) {
	if err := rc.core.checkRunning(); err != nil {
		return types.DHTRecordDescriptor{}, err
	}
	return rc.core.records.CreateRecord(ctx, rc.safety, schema, kind, owner)
}

// OpenDHTRecord 打开记录；writer 不为 nil 且有写权限时以可写方式打开
func (rc RoutingContext) OpenDHTRecord(ctx context.Context, key types.RecordKey, writer *types.KeyPair) (types.DHTRecordDescriptor, error) {
	if err := rc.core.checkRunning(); err != nil {
		return types.DHTRecordDescriptor{}, err
	}
	return rc.core.records.OpenRecord(ctx, rc.safety, key, writer)
}

// CloseDHTRecord 关闭记录
func (rc RoutingContext) CloseDHTRecord(ctx context.Context, key types.RecordKey) error {
	if err := rc.core.checkRunning(); err != nil {
		return err
	}
	return rc.core.records.CloseRecord(ctx, key)
}

// DeleteDHTRecord 删除本地记录
func (rc RoutingContext) DeleteDHTRecord(ctx context.Context, key types.RecordKey) error {
	if err := rc.core.checkRunning(); err != nil {
		return err
	}
	return rc.core.records.DeleteRecord(ctx, key)
}

// SetDHTValue 写入子键
//
// writer 只对本次调用生效。网络持有更新的值时返回该值，否则返回 nil。
func (rc RoutingContext) SetDHTValue(ctx context.Context, key types.RecordKey, subkey types.ValueSubkey, data []byte, writer *types.KeyPair) (*types.ValueData, error) {
	if err := rc.core.checkRunning(); err != nil {
		return nil, err
	}
	return rc.core.records.SetValue(ctx, rc.safety, key, subkey, data, writer)
}

// GetDHTValue 读取子键，forceRefresh 时经过网络
func (rc RoutingContext) GetDHTValue(ctx context.Context, key types.RecordKey, subkey types.ValueSubkey, forceRefresh bool) (*types.ValueData, error) {
	if err := rc.core.checkRunning(); err != nil {
		return nil, err
	}
	return rc.core.records.GetValue(ctx, rc.safety, key, subkey, forceRefresh)
}

// WatchDHTValues 注册监听
//
// 空区间表示全部子键；expiration 为零值取默认有效期；count 为 0 表示不限次数。
func (rc RoutingContext) WatchDHTValues(ctx context.Context, key types.RecordKey, subkeys types.ValueSubkeyRangeSet, expiration time.Time, count uint32) (types.WatchID, error) {
	if err := rc.core.checkRunning(); err != nil {
		return "", err
	}
	return rc.core.records.WatchValues(ctx, rc.safety, key, subkeys, expiration, count)
}

// CancelDHTWatch 取消监听区间，返回是否仍有注册存活
func (rc RoutingContext) CancelDHTWatch(ctx context.Context, key types.RecordKey, subkeys types.ValueSubkeyRangeSet) (bool, error) {
	if err := rc.core.checkRunning(); err != nil {
		return false, err
	}
	return rc.core.records.CancelWatch(ctx, rc.safety, key, subkeys)
}

// InspectDHTRecord 检查子键序列号
func (rc RoutingContext) InspectDHTRecord(ctx context.Context, key types.RecordKey, subkeys types.ValueSubkeyRangeSet, scope types.DHTReportScope) (types.DHTRecordReport, error) {
	if err := rc.core.checkRunning(); err != nil {
		return types.DHTRecordReport{}, err
	}
	return rc.core.records.InspectRecord(ctx, rc.safety, key, subkeys, scope)
}
