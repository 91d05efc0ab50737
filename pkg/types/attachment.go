package types

import (
	"fmt"
	"strings"
)

// AttachmentState 网络连接状态
type AttachmentState int

const (
	// AttachmentDetached 未连接
	AttachmentDetached AttachmentState = iota
	// AttachmentAttaching 正在连接
	AttachmentAttaching
	// AttachmentAttachedWeak 已连接（对等节点很少）
	AttachmentAttachedWeak
	// AttachmentAttachedGood 已连接
	AttachmentAttachedGood
	// AttachmentAttachedStrong 已连接（对等节点充足）
	AttachmentAttachedStrong
	// AttachmentFullyAttached 完全连接
	AttachmentFullyAttached
	// AttachmentOverAttached 超额连接
	AttachmentOverAttached
	// AttachmentDetaching 正在断开
	AttachmentDetaching
)

var attachmentNames = [...]string{
	"Detached", "Attaching", "AttachedWeak", "AttachedGood",
	"AttachedStrong", "FullyAttached", "OverAttached", "Detaching",
}

// String 返回状态名称
func (s AttachmentState) String() string {
	if s >= 0 && int(s) < len(attachmentNames) {
		return attachmentNames[s]
	}
	return "Unknown"
}

// IsAttached 是否处于可执行网络操作的状态
func (s AttachmentState) IsAttached() bool {
	switch s {
	case AttachmentAttachedWeak, AttachmentAttachedGood, AttachmentAttachedStrong,
		AttachmentFullyAttached, AttachmentOverAttached:
		return true
	}
	return false
}

// MarshalText 实现 encoding.TextMarshaler
func (s AttachmentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *AttachmentState) UnmarshalText(text []byte) error {
	parsed, err := ParseAttachmentState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseAttachmentState 解析状态名称（不区分大小写）
func ParseAttachmentState(name string) (AttachmentState, error) {
	for i, n := range attachmentNames {
		if strings.EqualFold(n, name) {
			return AttachmentState(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAttachmentState, name)
}
