// Package crypto 实现密码学提供者
//
// 提供者按套件标识（CryptoKind）分发密码学原语：
//   - VLD0: Ed25519 签名（Blake3-512 预哈希）、X25519 密钥协商、
//     Blake3 哈希、Argon2id 口令、XChaCha20-Poly1305 认证加密
//   - NONE: 不安全的测试套件，仅在配置显式启用时可用
//
// 除随机数来源外，所有原语都是输入的纯函数，可在任意 goroutine 中并发调用。
//
// 使用示例：
//
//	p, _ := crypto.NewProvider(config.DefaultCryptoConfig())
//	vld0 := p.Best()
//	kp, _ := vld0.GenerateKeyPair()
//	sig, _ := vld0.Sign(kp.Key, kp.Secret, data)
package crypto
