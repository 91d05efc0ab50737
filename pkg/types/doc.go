// Package types 定义 veilcore 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 veilcore 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
// 密码学类型:
//   - crypto.go     - CryptoKind, PublicKey, SecretKey, KeyPair, TypedKey 等
//
// DHT 类型:
//   - schema.go     - DHTSchema（DFLT / SMPL）
//   - dht.go        - DHTRecordDescriptor, ValueData, SignedValueData, DHTRecordReport
//   - subkeys.go    - ValueSubkeyRange, ValueSubkeyRangeSet
//
// 路由类型:
//   - safety.go     - Sequencing, Stability, SafetySpec, SafetySelection
//
// 状态与事件:
//   - attachment.go - AttachmentState
//   - updates.go    - LogUpdate, AttachmentUpdate, ValueChangeUpdate, ShutdownUpdate
//   - errors.go     - 公共错误定义
package types
