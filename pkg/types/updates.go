package types

import "time"

// ============================================================================
//                              更新事件
// ============================================================================
//
// 每种事件类型独立排队，同类事件先进先出，不同类之间不保证顺序。

// UpdateKind 更新事件类别
type UpdateKind string

const (
	// UpdateKindLog 日志
	UpdateKindLog UpdateKind = "Log"
	// UpdateKindAttachment 连接状态变化
	UpdateKindAttachment UpdateKind = "Attachment"
	// UpdateKindValueChange DHT 值变化通知
	UpdateKindValueChange UpdateKind = "ValueChange"
	// UpdateKindShutdown 核心关闭
	UpdateKindShutdown UpdateKind = "Shutdown"
)

// Update 所有更新事件的公共接口
type Update interface {
	Kind() UpdateKind
}

// LogUpdate 日志事件
type LogUpdate struct {
	Level     string    `json:"log_level"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Time      time.Time `json:"time"`
}

// Kind 实现 Update
func (LogUpdate) Kind() UpdateKind { return UpdateKindLog }

// AttachmentUpdate 连接状态变化事件
type AttachmentUpdate struct {
	State               AttachmentState `json:"state"`
	PublicInternetReady bool            `json:"public_internet_ready"`
	Peers               int             `json:"peers"`
}

// Kind 实现 Update
func (AttachmentUpdate) Kind() UpdateKind { return UpdateKindAttachment }

// ValueChangeUpdate 监听到的值变化
//
// Count 为该注册剩余的通知次数；Count == 0 且 Subkeys 为空表示注册已失效。
type ValueChangeUpdate struct {
	Key     RecordKey           `json:"key"`
	Subkeys ValueSubkeyRangeSet `json:"subkeys"`
	Count   uint32              `json:"count"`
	Value   *ValueData          `json:"value,omitempty"`
	WatchID WatchID             `json:"watch_id"`
}

// Kind 实现 Update
func (ValueChangeUpdate) Kind() UpdateKind { return UpdateKindValueChange }

// IsDead 注册是否已失效
func (u ValueChangeUpdate) IsDead() bool {
	return u.Count == 0 && u.Subkeys.IsEmpty()
}

// ShutdownUpdate 核心关闭事件
type ShutdownUpdate struct{}

// Kind 实现 Update
func (ShutdownUpdate) Kind() UpdateKind { return UpdateKindShutdown }
