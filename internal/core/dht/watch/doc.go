// Package watch 管理记录子键的本地监听注册
//
// 每条注册包含记录键、子键区间集合、过期时间与剩余通知次数。
// 同一记录可以存在多条相互重叠的注册，各自独立计数、独立通知。
//
// 通知以 types.ValueChangeUpdate 经事件总线发出。注册因过期或次数耗尽
// 失效时额外发出一条 Count == 0 且子键为空的通知。
//
// 过期注册由后台清理协程按固定间隔移除，Notify 时也会顺带检查。
package watch
