// Package dht 实现 DHT 记录存储
//
// 负责记录的创建、打开、关闭与删除，按所有权与写者凭据校验子键写入，
// 并通过 interfaces.Transport 与网络侧的权威副本同步。
//
// # 本地持久化
//
// 记录保存在表 dht_local_records 中：
//
//	列 0: 记录键 → 元数据 JSON（描述符、安全选择、各子键序列号、离线子键）
//	列 1: 记录键 || 子键(u32 BE) → 签名值 JSON
//
// 元数据前置 LRU 缓存。同一记录的状态修改由按 murmur3 分片的锁串行化，
// 写入另有一组分片锁，保证同一会话对同一子键的写入按提交顺序生效。
//
// # 打开状态
//
// 打开状态只存在于当前会话并按引用计数；关闭最后一个引用时移除该记录的
// 全部监听。打开时绑定的写者决定记录是否可写，SetValue 也可以为单次调用
// 提供写者。
//
// # 离线写入
//
// 未连接网络时的写入只落本地并记入离线子键，连接后在后台推送。
package dht
