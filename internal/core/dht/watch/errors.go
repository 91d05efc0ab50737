package watch

import "errors"

var (
	// ErrNoSubkeys 注册的子键集合为空
	ErrNoSubkeys = errors.New("watch: no subkeys to watch")

	// ErrExpired 过期时间已经过去
	ErrExpired = errors.New("watch: expiration is in the past")

	// ErrClosed 管理器已关闭
	ErrClosed = errors.New("watch: manager closed")
)
