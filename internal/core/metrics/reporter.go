package metrics

import (
	"time"
)

// Reporter 记录核心运行指标
//
// 所有实现必须允许并发调用；*Metrics 的 nil 值同样满足接口且不记录任何内容。
type Reporter interface {
	// ObserveDHT 记录一次 DHT 操作的耗时与结果
	ObserveDHT(op string, start time.Time, err error)

	// WatchNotified 记录一次监听通知
	WatchNotified()

	// AttachmentChanged 记录一次连接状态切换
	AttachmentChanged(state string)

	// Snapshot 当前计数快照
	Snapshot() Snapshot
}

// 确保 Metrics 实现 Reporter 接口
var _ Reporter = (*Metrics)(nil)

// Snapshot 计数器快照
type Snapshot struct {
	// DHTOps 按操作名统计的调用次数
	DHTOps map[string]uint64 `json:"dht_ops"`
	// DHTErrors 按操作名统计的失败次数
	DHTErrors map[string]uint64 `json:"dht_errors"`
	// WatchNotifications 监听通知总数
	WatchNotifications uint64 `json:"watch_notifications"`
	// AttachmentTransitions 连接状态切换总数
	AttachmentTransitions uint64 `json:"attachment_transitions"`
}
