// Package attachment 实现网络连接状态机
//
// 状态流转：
//
//	Detached ──Attach──▶ Attaching ──Join 成功──▶ AttachedWeak / AttachedGood / FullyAttached
//	    ▲                    │
//	    │                Join 失败
//	    │                    ▼
//	    └──────────────── Detached
//
//	Attached* ──Detach──▶ Detaching ──▶ Detached
//
// 已连接状态的细分由传输层可见的对等节点数决定：
//
//	0      → AttachedWeak
//	1 ~ 3  → AttachedGood
//	>= 4   → FullyAttached
//
// 每次状态切换都会发射 types.AttachmentUpdate 事件，并同步调用
// OnStateChange 注册的回调。回调不得阻塞。
//
// WaitAttached 提供已连接 gate，供需要网络的组件等待。
package attachment
