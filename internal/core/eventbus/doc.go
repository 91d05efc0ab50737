// Package eventbus 实现进程内事件总线
//
// 提供类型安全的事件发布/订阅机制，支持：
//   - 多订阅者
//   - 每个订阅独立的无界队列（不丢事件，同一订阅内先进先出）
//   - 发射器引用计数
//   - 有状态模式（Stateful）：新订阅先收到最后一个事件
//
// 核心的四类更新（LogUpdate、AttachmentUpdate、ValueChangeUpdate、
// ShutdownUpdate）都经由总线投递，根包为每个用户回调建立一组订阅。
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.AttachmentUpdate))
//	defer sub.Close()
//	go func() {
//	    for evt := range sub.Out() {
//	        u := evt.(types.AttachmentUpdate)
//	        fmt.Println(u.State)
//	    }
//	}()
//
//	em, _ := bus.Emitter(new(types.AttachmentUpdate))
//	defer em.Close()
//	em.Emit(types.AttachmentUpdate{State: types.AttachmentAttaching})
//
// Close 会先排空全部订阅队列再返回，关闭前发出的事件仍然送达。
//
// # 架构定位
//
// Tier: Core Layer Level 1（无依赖）
//
// 依赖关系：
//   - 依赖：pkg/interfaces
//   - 被依赖：attachment, dht/watch, 根包 Core（更新回调）
//
// # 并发安全
//
// EventBus 使用 sync.RWMutex 和 atomic 保证并发安全：
//   - 订阅/取消订阅：RWMutex 保护
//   - 发射器引用计数：atomic.Int32
//   - 订阅队列：sync.Cond 唤醒 pump 协程
//
// 接口定义见 pkg/interfaces/eventbus.go。
package eventbus
