// Package loopback 提供进程内的权威副本集网络
//
// Hub 保存所有记录的权威副本，挂在同一个 Hub 上的节点通过各自的
// Transport 访问它。Hub 按网络密钥（网络口令的 blake3 摘要）分区，
// 口令不同的节点互相不可见；空口令表示公开网络。
//
// # 写入校验
//
// 每个写入的值都经过完整校验：
//
//  1. 描述符：模式合法，记录键等于 hash(owner || compiled schema)
//  2. 子键在模式范围内，值不超过单子键上限
//  3. 写者授权：所有者子键只允许所有者，成员子键只允许对应成员
//  4. 签名：writer 对 SignatureBytes(owner, subkey, value) 的签名
//  5. 序列号：
//     - 低于已存值：拒绝，返回已存的较新值
//     - 等于已存值且内容相同：无操作
//     - 等于已存值但内容不同：接受，后到者胜出
//     - 高于已存值：接受
//
// 被接受的变化推送给所有注册了监听的节点，发起写入的节点除外。
// 每个节点的推送按到达顺序串行投递。
//
// # 路由
//
// 每次调用携带的 SafetySelection 会被校验（Safe 变体的跳数必须在
// [1, MaxRouteHopCount] 内），并记录在节点上供诊断使用。
//
// # 使用示例
//
//	hub := loopback.NewHub(nil)
//	a := hub.NewTransport(nodeA, "")
//	b := hub.NewTransport(nodeB, "")
//	_, _ = a.Join(ctx)
//	_, _ = b.Join(ctx)
package loopback
