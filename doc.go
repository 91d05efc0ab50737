// Package veilcore 提供点对点应用底座的核心
//
// veilcore 由五个部分组成：
//
//   - Crypto Provider: 按密码套件参数化的密钥、哈希、口令、AEAD 与签名原语
//   - Table Store: 带列命名空间和事务批量提交的本地持久化表
//   - DHT Record Store: 按密钥寻址、按子键版本化的记录
//   - Watch Manager: 记录子键区间的变化订阅
//   - Routing Context: 决定 DHT 操作经过哪条网络路径的安全选择
//
// # 快速开始
//
//	import "github.com/dep2p/go-veilcore"
//
//	// 1. 创建并启动核心
//	core, err := veilcore.New(veilcore.WithInMemoryStorage())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Close()
//	if err := core.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// 2. 连接网络
//	if err := core.Attach(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// 3. 通过路由上下文读写记录
//	rc := core.RoutingContext().WithSequencing(types.SequencingEnsureOrdered)
//	desc, err := rc.CreateDHTRecord(ctx, types.NewDFLTSchema(2), types.CryptoKind{}, nil)
//	_, err = rc.SetDHTValue(ctx, desc.Key, 0, []byte("hello"), nil)
//	v, err := rc.GetDHTValue(ctx, desc.Key, 0, true)
//
// # 生命周期
//
//	New → Start → Attach ⇄ Detach → Stop / Close
//
// Start 之前或 Stop 之后的数据面操作返回 ErrNotStarted / ErrClosed。
//
// # 更新事件
//
// Subscribe 注册的回调接收 LogUpdate、AttachmentUpdate、ValueChangeUpdate
// 与 ShutdownUpdate。同类事件按顺序投递，不会丢弃。
//
// # 错误
//
// KindOf 把任意错误归入 Authorization、NotFound、Configuration、Integrity、
// Timeout、State 之一；Timeout 类错误可以由调用方重试，核心内部不自动重试。
package veilcore
