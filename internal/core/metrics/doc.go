// Package metrics 提供核心的监控指标收集
//
// 每个核心实例持有独立的 prometheus.Registry，不使用全局默认注册表，
// 同一进程内的多个核心互不干扰。
//
// # 快速开始
//
//	m := metrics.New()
//
//	start := time.Now()
//	_, err := dht.SetValue(...)
//	m.ObserveDHT("set_value", start, err)
//
//	// 导出文本格式
//	var buf bytes.Buffer
//	_ = m.WriteText(&buf)
//
// # 指标列表
//
//	veilcore_dht_operations_total{op,result}    DHT 操作计数
//	veilcore_dht_operation_seconds{op}          DHT 操作耗时
//	veilcore_watch_notifications_total          监听通知计数
//	veilcore_attachment_transitions_total{state} 连接状态切换计数
//
// 其余组件（密码学缓存、表存储、记录存储）通过 RegisterGaugeFunc
// 注册只读指标，采集时回调组件自身的 Stats。
//
// # 快照
//
// Snapshot 返回计数器的当前值，供诊断命令输出。
package metrics
