// Package interfaces 定义 veilcore 的公共接口
//
// 一个接口文件对应一个实现目录：
//   - crypto.go     - 密码学提供者，对应 internal/core/crypto/
//   - tablestore.go - 表存储，对应 internal/core/tablestore/
//   - dht.go        - DHT 记录存储，对应 internal/core/dht/
//   - transport.go  - 网络传输，对应 internal/core/network/loopback/
//   - eventbus.go   - 事件总线，对应 internal/core/eventbus/
package interfaces
