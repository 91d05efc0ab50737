package veilcore

import (
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              核心状态
// ════════════════════════════════════════════════════════════════════════════

// State 核心状态
type State int

const (
	// StateIdle 已创建，未启动
	StateIdle State = iota

	// StateStarting 启动中（Fx App 启动中）
	StateStarting

	// StateRunning 运行中
	StateRunning

	// StateStopping 停止中
	StateStopping

	// StateStopped 已停止，不可重新启动
	StateStopped
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

type (
	// CryptoKind 密码套件标识
	CryptoKind = types.CryptoKind
	// KeyPair 密钥对
	KeyPair = types.KeyPair
	// TypedKey 带套件的公钥
	TypedKey = types.TypedKey
	// RecordKey 记录键
	RecordKey = types.RecordKey

	// DHTSchema 记录模式
	DHTSchema = types.DHTSchema
	// DHTRecordDescriptor 记录描述符
	DHTRecordDescriptor = types.DHTRecordDescriptor
	// DHTRecordReport 检查报告
	DHTRecordReport = types.DHTRecordReport
	// DHTReportScope 检查范围
	DHTReportScope = types.DHTReportScope
	// ValueData 子键值
	ValueData = types.ValueData
	// ValueSubkey 子键编号
	ValueSubkey = types.ValueSubkey
	// ValueSubkeyRangeSet 子键区间集合
	ValueSubkeyRangeSet = types.ValueSubkeyRangeSet
	// WatchID 监听注册标识
	WatchID = types.WatchID

	// SafetySelection 安全选择
	SafetySelection = types.SafetySelection
	// SafetySpec 安全路由参数
	SafetySpec = types.SafetySpec
	// Sequencing 顺序保证
	Sequencing = types.Sequencing
	// Stability 稳定性偏好
	Stability = types.Stability

	// AttachmentState 网络连接状态
	AttachmentState = types.AttachmentState

	// Update 更新事件
	Update = types.Update
	// LogUpdate 日志事件
	LogUpdate = types.LogUpdate
	// AttachmentUpdate 连接状态事件
	AttachmentUpdate = types.AttachmentUpdate
	// ValueChangeUpdate 值变化事件
	ValueChangeUpdate = types.ValueChangeUpdate
	// ShutdownUpdate 关闭事件
	ShutdownUpdate = types.ShutdownUpdate
)
