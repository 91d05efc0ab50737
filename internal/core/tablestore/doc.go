// Package tablestore 实现持久化的命名表存储
//
// 所有表共享一个键值引擎实例，键空间布局：
//
//	n/<名称>                    → 表 ID（UUID）
//	m/<表 ID>                   → 列数（u32 大端）
//	t/<表 ID>/<列 u32 大端><键>  → 值
//	s/device_encryption_key     → 设备加密密钥
//
// 表名与表 ID 分离，重命名只改写名称映射。
//
// 同名表在进程内共享一个 table 对象并按句柄计数；每次 Open 返回独立句柄，
// 句柄关闭后的任何操作返回 ErrClosed。
//
// 启用加密时，值以 nonce || XChaCha20-Poly1305(值) 存储，
// 关联数据为列号与键，篡改或挪动密文都会在读取时返回 ErrDecrypt。
package tablestore
