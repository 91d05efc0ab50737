package attachment

import "errors"

var (
	// ErrNotAttached 当前未连接网络
	ErrNotAttached = errors.New("attachment: not attached")

	// ErrClosed 状态机已关闭
	ErrClosed = errors.New("attachment: closed")
)
